package scraper

import (
	"context"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/use-agent/tagscope/config"
	"github.com/use-agent/tagscope/fetcher"
	"github.com/use-agent/tagscope/models"
)

// RodFactory opens incognito sessions on a shared browser process.
// It is safe for concurrent use.
type RodFactory struct {
	browser *rod.Browser
	cfg     config.BrowserConfig
}

// LaunchBrowser starts Chromium and returns a factory bound to it.
func LaunchBrowser(cfg config.BrowserConfig) (*RodFactory, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScanError(models.ErrCodeSession, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScanError(models.ErrCodeSession, "failed to connect to browser", err)
	}
	return &RodFactory{browser: browser, cfg: cfg}, nil
}

// Open creates an incognito context with one stealth page in it.
func (f *RodFactory) Open(ctx context.Context) (Session, error) {
	// ── 1. Isolated cookie jar ──────────────────────────────────────
	inc, err := f.browser.Incognito()
	if err != nil {
		return nil, models.NewScanError(models.ErrCodeSession, "failed to create incognito context", err)
	}

	page, err := inc.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = inc.Close()
		return nil, models.NewScanError(models.ErrCodeSession, "failed to create page", err)
	}

	sess := &rodSession{browser: inc, page: page}
	if err := sess.setup(ctx, f.cfg); err != nil {
		_ = sess.Close()
		return nil, models.NewScanError(models.ErrCodeSession, "failed to prepare page", err)
	}
	return sess, nil
}

// Close kills the browser process.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (f *RodFactory) Close() error {
	slog.Info("closing browser")
	return f.browser.Close()
}

// setup must run before the first navigation: stealth JS and request
// capture only apply to documents loaded after they are installed.
func (s *rodSession) setup(ctx context.Context, cfg config.BrowserConfig) error {
	p := s.page.Context(ctx)

	// ── 2. Stealth injection ────────────────────────────────────────
	if _, err := p.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
	}

	// ── 3. Viewport and user agent ──────────────────────────────────
	width, height := cfg.ViewportWidth, cfg.ViewportHeight
	if width <= 0 || height <= 0 {
		width, height = 1920, 1080
	}
	if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return err
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = fetcher.DefaultUserAgent
	}
	if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      ua,
		AcceptLanguage: "en-US,en;q=0.9",
	}); err != nil {
		return err
	}

	// ── 4. Network capture ──────────────────────────────────────────
	if err := (proto.NetworkEnable{}).Call(p); err != nil {
		return err
	}
	listenCtx, cancel := context.WithCancel(context.Background())
	s.stopListen = cancel
	wait := s.page.Context(listenCtx).EachEvent(
		func(e *proto.NetworkRequestWillBeSent) {
			s.mu.Lock()
			s.requests = append(s.requests, e.Request.URL)
			s.mu.Unlock()
		},
		func(e *proto.NetworkResponseReceived) {
			if e.Type != proto.NetworkResourceTypeDocument || e.FrameID != s.page.FrameID {
				return
			}
			s.mu.Lock()
			s.docStatus = e.Response.Status
			s.docURL = e.Response.URL
			s.mu.Unlock()
		},
	)
	go wait()
	return nil
}

// rodSession is the rod-backed Session.
type rodSession struct {
	browser *rod.Browser // incognito context
	page    *rod.Page

	stopListen context.CancelFunc

	mu        sync.Mutex
	requests  []string
	docStatus int
	docURL    string
}
