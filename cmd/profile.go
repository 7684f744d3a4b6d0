package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ainasago/FishBrowser-sub004/api/schemas"
	"github.com/ainasago/FishBrowser-sub004/internal/catalog"
	"github.com/ainasago/FishBrowser-sub004/internal/compiler"
	"github.com/ainasago/FishBrowser-sub004/internal/config"
	"github.com/ainasago/FishBrowser-sub004/internal/fingerprint"
	"github.com/ainasago/FishBrowser-sub004/internal/observability"
	"github.com/ainasago/FishBrowser-sub004/internal/store"
)

// withComponents builds the components for one command run and always shuts
// them down afterwards.
func withComponents(cmd *cobra.Command, run func(ctx context.Context, c *Components) error) error {
	ctx := cmd.Context()
	c, err := NewComponents(ctx, config.Get())
	if err != nil {
		return err
	}
	defer c.Shutdown()
	return run(ctx, c)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// profileSource selects a profile either from the store or from a JSON file.
type profileSource struct {
	id   string
	file string
}

func (s *profileSource) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.id, "profile", "", "id of a stored profile")
	cmd.Flags().StringVarP(&s.file, "file", "f", "", "profile JSON file, or - for stdin")
	cmd.MarkFlagsMutuallyExclusive("profile", "file")
	cmd.MarkFlagsOneRequired("profile", "file")
}

func (s *profileSource) load(ctx context.Context, repo store.Repository, stdin io.Reader) (*fingerprint.Profile, error) {
	if s.id != "" {
		return repo.GetProfile(ctx, s.id)
	}
	return readProfile(s.file, stdin)
}

func readProfile(path string, stdin io.Reader) (*fingerprint.Profile, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open profile file: %w", err)
		}
		defer f.Close()
		r = f
	}
	var p fingerprint.Profile
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &p, nil
}

// parseLocks turns key=value pairs into typed values. Values are JSON; string
// and enum traits also accept bare text.
func parseLocks(cat *catalog.Catalog, pairs []string) (map[string]catalog.Value, error) {
	const op = "cmd.parseLocks"
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]catalog.Value, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, schemas.E(schemas.KindInvalidArgument, op, pair, fmt.Errorf("expected key=value"))
		}
		def, err := cat.GetDefinition(key)
		if err != nil {
			return nil, err
		}
		v, err := catalog.DecodeValue(def.ValueType, []byte(raw))
		if err != nil && (def.ValueType == catalog.TypeString || def.ValueType == catalog.TypeEnum) {
			v, err = catalog.DecodeValue(def.ValueType, []byte(strconv.Quote(raw)))
		}
		if err != nil {
			return nil, schemas.E(schemas.KindInvalidArgument, op, key, err)
		}
		out[key] = v
	}
	return out, nil
}

func newGenerateCmd() *cobra.Command {
	var (
		req       fingerprint.Request
		locks     []string
		save      bool
		browserID string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a fingerprint profile from the trait catalog",
		Long: `Samples a complete, internally consistent browser identity. Flags narrow the
sampling; --lock pins individual traits (for example --lock locale.locale=de-DE).
With --save the profile is compiled and stored, and --browser binds it to a browser id.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(ctx context.Context, c *Components) error {
				logger := observability.GetLogger()

				locked, err := parseLocks(c.Catalog, locks)
				if err != nil {
					return err
				}
				req.Locked = locked

				p, err := c.Generator.Generate(req)
				if err != nil {
					return err
				}

				if save || browserID != "" {
					if _, err := c.Compiler.Refresh(p, time.Now()); err != nil {
						return err
					}
					if _, err := c.Store.SaveProfile(ctx, p); err != nil {
						return err
					}
					logger.Info("Profile saved", zap.String("profile_id", p.ID))
				}
				if browserID != "" {
					if err := bindBrowser(ctx, c.Store, browserID, p.ID); err != nil {
						return err
					}
					logger.Info("Profile bound to browser", zap.String("browser_id", browserID), zap.String("profile_id", p.ID))
				}
				return writeJSON(cmd.OutOrStdout(), p)
			})
		},
	}

	cmd.Flags().StringVar(&req.OS, "os", "", "target OS: windows, macos, linux or android")
	cmd.Flags().StringVar(&req.DeviceClass, "device-class", "", "desktop or mobile")
	cmd.Flags().StringVar(&req.Region, "region", "", "preferred locale region (default generator.default_region)")
	cmd.Flags().StringVar(&req.Preset, "preset", "", "catalog preset applied before --lock values")
	cmd.Flags().Int64Var(&req.Seed, "seed", 0, "random seed for reproducible output (0 = random)")
	cmd.Flags().StringArrayVar(&locks, "lock", nil, "pin a trait as key=value (repeatable)")
	cmd.Flags().BoolVar(&save, "save", false, "compile and store the profile")
	cmd.Flags().StringVar(&browserID, "browser", "", "store the profile and bind it to this browser id")
	return cmd
}

// bindBrowser points browserID at profileID, keeping any existing name and proxy.
func bindBrowser(ctx context.Context, repo store.Repository, browserID, profileID string) error {
	rec, err := repo.GetBrowser(ctx, browserID)
	if err != nil {
		if schemas.KindOf(err) != schemas.KindNotFound {
			return err
		}
		rec = &store.BrowserRecord{ID: browserID}
	}
	rec.ProfileID = profileID
	_, err = repo.SaveBrowser(ctx, rec)
	return err
}

func newValidateCmd() *cobra.Command {
	var src profileSource

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Score a profile for consistency, realism and detection risk",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(ctx context.Context, c *Components) error {
				p, err := src.load(ctx, c.Store, cmd.InOrStdin())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), c.Validator.Validate(p))
			})
		},
	}
	src.register(cmd)
	return cmd
}

func newCompileCmd() *cobra.Command {
	var (
		src  profileSource
		save bool
	)

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a profile into headers, context options and init scripts",
		Long: `Compiles a profile and parses every generated init script before printing the
artifacts. With --save a stored profile keeps the refreshed artifacts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(ctx context.Context, c *Components) error {
				p, err := src.load(ctx, c.Store, cmd.InOrStdin())
				if err != nil {
					return err
				}

				var a compiler.Artifacts
				if save {
					if a, err = c.Compiler.Refresh(p, time.Now()); err != nil {
						return err
					}
					if _, err := c.Store.SaveProfile(ctx, p); err != nil {
						return err
					}
				} else {
					a = c.Compiler.Compile(p)
				}

				if err := compiler.Verify(a); err != nil {
					return fmt.Errorf("compiled scripts do not parse: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), a)
			})
		},
	}
	src.register(cmd)
	cmd.Flags().BoolVar(&save, "save", false, "store the refreshed artifacts on the profile")
	return cmd
}
