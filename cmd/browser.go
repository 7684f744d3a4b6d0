package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ainasago/FishBrowser-sub004/api/schemas"
	"github.com/ainasago/FishBrowser-sub004/internal/observability"
	"github.com/ainasago/FishBrowser-sub004/internal/store"
)

func newBrowserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browser",
		Short: "Manage browser records and launch sessions",
	}
	cmd.AddCommand(newBrowserCreateCmd())
	cmd.AddCommand(newBrowserListCmd())
	cmd.AddCommand(newBrowserLaunchCmd())
	cmd.AddCommand(newBrowserClearCmd())
	return cmd
}

// proxyFlags collects an optional upstream proxy.
type proxyFlags struct {
	server, username, password string
}

func (f *proxyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.server, "proxy-server", "", "upstream proxy, e.g. http://10.0.0.1:3128 or socks5://host:1080")
	cmd.Flags().StringVar(&f.username, "proxy-user", "", "proxy username")
	cmd.Flags().StringVar(&f.password, "proxy-pass", "", "proxy password")
}

func (f *proxyFlags) proxy() *schemas.Proxy {
	if f.server == "" {
		return nil
	}
	return &schemas.Proxy{Server: f.server, Username: f.username, Password: f.password}
}

func newBrowserCreateCmd() *cobra.Command {
	var (
		rec   store.BrowserRecord
		proxy proxyFlags
	)

	cmd := &cobra.Command{
		Use:   "create [id]",
		Short: "Create or update a browser record",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				rec.ID = args[0]
			}
			rec.Proxy = proxy.proxy()
			return withComponents(cmd, func(ctx context.Context, c *Components) error {
				if rec.ProfileID != "" {
					if _, err := c.Store.GetProfile(ctx, rec.ProfileID); err != nil {
						return err
					}
				}
				id, err := c.Store.SaveBrowser(ctx, &rec)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&rec.Name, "name", "", "display name")
	cmd.Flags().StringVar(&rec.ProfileID, "profile", "", "id of the stored profile to bind")
	proxy.register(cmd)
	return cmd
}

func newBrowserListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List browser records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(ctx context.Context, c *Components) error {
				list, err := c.Store.ListBrowsers(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tPROFILE\tPROXY")
				for _, b := range list {
					proxy := "-"
					if b.Proxy != nil {
						proxy = b.Proxy.Server
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.ID, b.Name, b.ProfileID, proxy)
				}
				return tw.Flush()
			})
		},
	}
}

func newBrowserLaunchCmd() *cobra.Command {
	var (
		profileFile string
		proxy       proxyFlags
		detach      bool
	)

	cmd := &cobra.Command{
		Use:   "launch <id>",
		Short: "Launch a browser session with its fingerprint applied",
		Long: `Launches the browser bound to <id> and waits until the window is closed or the
command is interrupted, which stops the session. --profile-file stores the given
profile and binds it first, which is how to launch with the in-memory store.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			browserID := args[0]
			return withComponents(cmd, func(ctx context.Context, c *Components) error {
				logger := observability.GetLogger()

				if profileFile != "" {
					p, err := readProfile(profileFile, cmd.InOrStdin())
					if err != nil {
						return err
					}
					if _, err := c.Store.SaveProfile(ctx, p); err != nil {
						return err
					}
					if err := bindBrowser(ctx, c.Store, browserID, p.ID); err != nil {
						return err
					}
				}
				if px := proxy.proxy(); px != nil {
					rec, err := c.Store.GetBrowser(ctx, browserID)
					if err != nil {
						return err
					}
					rec.Proxy = px
					if _, err := c.Store.SaveBrowser(ctx, rec); err != nil {
						return err
					}
				}

				rec, err := c.Orchestrator.Launch(ctx, browserID)
				if err != nil {
					return err
				}
				if err := writeJSON(cmd.OutOrStdout(), rec); err != nil {
					return err
				}
				if detach {
					return nil
				}

				select {
				case <-rec.Session.Done():
					logger.Info("Browser window closed", zap.String("browser_id", browserID))
				case <-ctx.Done():
					logger.Info("Interrupted, stopping browser", zap.String("browser_id", browserID))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&profileFile, "profile-file", "", "profile JSON file to store and bind before launching")
	cmd.Flags().BoolVar(&detach, "no-wait", false, "return after launch; the session ends with the command")
	proxy.register(cmd)
	return cmd
}

func newBrowserClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <id>",
		Short: "Delete the persistent user data directory of a browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(ctx context.Context, c *Components) error {
				return c.UserData.Clear(args[0])
			})
		},
	}
}
