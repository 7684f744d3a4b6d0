package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ainasago/FishBrowser-sub004/api/schemas"
	"github.com/ainasago/FishBrowser-sub004/internal/compiler"
	"github.com/ainasago/FishBrowser-sub004/internal/config"
)

// Driver starts one Chrome process per session through chromedp.
type Driver struct {
	logger *zap.Logger
	cfg    config.BrowserConfig
}

// NewDriver creates a chromedp backed driver.
func NewDriver(cfg config.BrowserConfig, logger *zap.Logger) *Driver {
	return &Driver{logger: logger.Named("browser_driver"), cfg: cfg}
}

// allocatorOptions configures the flags for the browser executable.
func (d *Driver) allocatorOptions(spec SessionSpec) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	ctxOpts := spec.Artifacts.ContextOptions

	opts = append(opts,
		chromedp.Flag("headless", d.cfg.Headless),

		// Automation indicators.
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),

		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-session-crashed-bubble", true),
		chromedp.Flag("hide-crash-restore-bubble", true),
		chromedp.Flag("disable-gpu", d.cfg.Headless),

		chromedp.Flag("ignore-certificate-errors", d.cfg.IgnoreTLSErrors),
	)
	if d.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(d.cfg.ExecPath))
	}
	if spec.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(spec.UserDataDir))
	}
	if ctxOpts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(ctxOpts.UserAgent))
	}
	if ctxOpts.Locale != "" {
		opts = append(opts, chromedp.Flag("lang", ctxOpts.Locale))
	}
	if vp := ctxOpts.Viewport; vp != nil {
		opts = append(opts, chromedp.WindowSize(vp.Width, vp.Height))
	}
	if p := ctxOpts.Proxy; p != nil && p.Server != "" {
		if _, err := url.Parse(p.Server); err == nil {
			opts = append(opts, chromedp.ProxyServer(p.Server))
		} else {
			d.logger.Error("Invalid proxy server, launching without proxy",
				zap.String("browser_id", spec.BrowserID), zap.String("server", p.Server))
		}
	}
	for _, arg := range d.cfg.Args {
		name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts
}

// StartSession launches Chrome, applies the compiled overrides to its first
// tab and returns once they are in place.
func (d *Driver) StartSession(ctx context.Context, spec SessionSpec) (Session, error) {
	logger := d.logger.With(zap.String("browser_id", spec.BrowserID))

	// The session outlives the launch request, so it is rooted in Background.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), d.allocatorOptions(spec)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Errorf),
	)

	s := &chromeSession{
		ctx:         tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		done:        make(chan struct{}),
	}

	// Abort the start if the caller gives up before the overrides are applied.
	stop := context.AfterFunc(ctx, tabCancel)
	err := chromedp.Run(tabCtx, Apply(spec.Artifacts, logger))
	stop()
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("browser: start session: %w", err)
	}

	c := chromedp.FromContext(tabCtx)
	if c.Browser != nil && c.Browser.Process() != nil {
		s.pid = c.Browser.Process().Pid
	}
	targetID := c.Target.TargetID
	chromedp.ListenBrowser(tabCtx, func(ev interface{}) {
		if e, ok := ev.(*target.EventTargetDestroyed); ok && e.TargetID == targetID {
			s.finish()
		}
	})
	go func() {
		<-tabCtx.Done()
		s.finish()
	}()

	logger.Info("Browser session started", zap.Int("pid", s.pid), zap.Int("init_scripts", len(spec.Artifacts.InitScripts)))
	return s, nil
}

// Apply returns the CDP actions that install compiled artifacts on a tab.
func Apply(a compiler.Artifacts, logger *zap.Logger) chromedp.Action {
	opts := a.ContextOptions
	return chromedp.Tasks{
		network.Enable(),
		setExtraHTTPHeaders(a, logger),
		setUserAgent(opts, logger),
		setDeviceMetrics(opts, logger),
		setEnvironment(opts, logger),
		handleProxyAuth(opts.Proxy, logger),
		addInitScripts(a.InitScripts, logger),
		page.SetWebLifecycleState(page.SetWebLifecycleStateStateActive),
	}
}

func setExtraHTTPHeaders(a compiler.Artifacts, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		extra := compiler.SessionHeaders(a.Headers)
		if len(extra) == 0 {
			return nil
		}
		headers := network.Headers{}
		for _, h := range extra {
			headers[h.Name] = h.Value
		}
		if err := network.SetExtraHTTPHeaders(headers).Do(ctx); err != nil {
			logger.Error("Failed to set extra HTTP headers via CDP", zap.Error(err))
			return fmt.Errorf("browser: set extra http headers: %w", err)
		}
		return nil
	})
}

func setUserAgent(opts compiler.ContextOptions, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if opts.UserAgent == "" {
			return nil
		}
		override := emulation.SetUserAgentOverride(opts.UserAgent).
			WithPlatform(opts.Platform).
			WithAcceptLanguage(opts.AcceptLanguage)

		if ch := opts.ClientHints; ch != nil {
			override = override.WithUserAgentMetadata(userAgentMetadata(ch))
		}

		if err := override.Do(ctx); err != nil {
			logger.Error("Failed to set user agent override via CDP", zap.Error(err))
			return fmt.Errorf("browser: set user agent override: %w", err)
		}
		return nil
	})
}

// userAgentMetadata builds the Client-Hints metadata. The full version list
// repeats the brands with the full browser version, except for the GREASE
// brand whose version is already final.
func userAgentMetadata(ch *compiler.ClientHints) *emulation.UserAgentMetadata {
	meta := &emulation.UserAgentMetadata{
		Mobile:   ch.Mobile,
		Platform: ch.Platform,
	}
	if !ch.Mobile {
		meta.Architecture, meta.Bitness = "x86", "64"
	}
	for _, b := range ch.Brands {
		meta.Brands = append(meta.Brands, &emulation.UserAgentBrandVersion{Brand: b.Brand, Version: b.Version})
		full := b.Version
		if ch.FullVersion != "" && strings.HasPrefix(ch.FullVersion, b.Version+".") {
			full = ch.FullVersion
		}
		meta.FullVersionList = append(meta.FullVersionList, &emulation.UserAgentBrandVersion{Brand: b.Brand, Version: full})
	}
	return meta
}

func setDeviceMetrics(opts compiler.ContextOptions, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		mobile := opts.ClientHints != nil && opts.ClientHints.Mobile
		if vp := opts.Viewport; vp != nil {
			orientation := emulation.OrientationTypeLandscapePrimary
			if vp.Height > vp.Width {
				orientation = emulation.OrientationTypePortraitPrimary
			}
			err := emulation.SetDeviceMetricsOverride(int64(vp.Width), int64(vp.Height), 1.0, mobile).
				WithScreenOrientation(&emulation.ScreenOrientation{Type: orientation, Angle: 0}).
				Do(ctx)
			if err != nil {
				logger.Error("Failed to set device metrics override via CDP", zap.Error(err))
				return fmt.Errorf("browser: set device metrics: %w", err)
			}
		}
		if opts.MaxTouchPoints > 0 {
			if err := emulation.SetTouchEmulationEnabled(true).WithMaxTouchPoints(int64(opts.MaxTouchPoints)).Do(ctx); err != nil {
				logger.Error("Failed to enable touch emulation via CDP", zap.Error(err))
				return fmt.Errorf("browser: set touch emulation: %w", err)
			}
		}
		return nil
	})
}

func setEnvironment(opts compiler.ContextOptions, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if opts.Timezone != "" {
			if err := emulation.SetTimezoneOverride(opts.Timezone).Do(ctx); err != nil {
				logger.Error("Failed to set timezone override via CDP", zap.Error(err))
				return fmt.Errorf("browser: set timezone: %w", err)
			}
		}
		if opts.Locale != "" {
			locale := strings.ReplaceAll(opts.Locale, "_", "-")
			if err := emulation.SetLocaleOverride().WithLocale(locale).Do(ctx); err != nil {
				logger.Error("Failed to set locale override via CDP", zap.Error(err))
				return fmt.Errorf("browser: set locale: %w", err)
			}
		}
		return nil
	})
}

// handleProxyAuth answers proxy credential challenges through the Fetch
// domain. Proxies without credentials need no interception.
func handleProxyAuth(proxy *schemas.Proxy, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if proxy == nil || proxy.Username == "" {
			return nil
		}
		chromedp.ListenTarget(ctx, func(ev interface{}) {
			switch e := ev.(type) {
			case *fetch.EventAuthRequired:
				go func() {
					resp := &fetch.AuthChallengeResponse{
						Response: fetch.AuthChallengeResponseResponseProvideCredentials,
						Username: proxy.Username,
						Password: proxy.Password,
					}
					if err := chromedp.Run(ctx, fetch.ContinueWithAuth(e.RequestID, resp)); err != nil {
						logger.Warn("Failed to answer proxy auth challenge", zap.Error(err))
					}
				}()
			case *fetch.EventRequestPaused:
				go func() {
					_ = chromedp.Run(ctx, fetch.ContinueRequest(e.RequestID))
				}()
			}
		})
		if err := fetch.Enable().WithHandleAuthRequests(true).Do(ctx); err != nil {
			logger.Error("Failed to enable proxy auth handling via CDP", zap.Error(err))
			return fmt.Errorf("browser: enable fetch: %w", err)
		}
		return nil
	})
}

func addInitScripts(scripts []compiler.Script, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, s := range scripts {
			if _, err := page.AddScriptToEvaluateOnNewDocument(s.Source).Do(ctx); err != nil {
				logger.Error("Failed to register init script with CDP", zap.String("script", s.Name), zap.Error(err))
				return fmt.Errorf("browser: add init script %s: %w", s.Name, err)
			}
		}
		return nil
	})
}

type chromeSession struct {
	ctx         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	pid         int

	done     chan struct{}
	doneOnce sync.Once
}

func (s *chromeSession) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *chromeSession) Done() <-chan struct{} { return s.done }

func (s *chromeSession) PID() int { return s.pid }

// Close asks Chrome to close gracefully, then tears down the allocator which
// kills the process if it is still around.
func (s *chromeSession) Close(ctx context.Context) error {
	var err error
	select {
	case <-s.done:
	default:
		err = chromedp.Cancel(s.ctx)
	}
	s.tabCancel()
	s.allocCancel()

	select {
	case <-s.done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	if err != nil {
		return fmt.Errorf("browser: close session: %w", err)
	}
	return nil
}
