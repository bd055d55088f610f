package dncform

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodConfig holds browser runtime configuration.
type RodConfig struct {
	Headless    bool
	Bin         string
	DebuggerURL string
	NavTimeout  time.Duration
}

// RodLauncher launches (or attaches to) a Chrome instance per request.
type RodLauncher struct {
	cfg    RodConfig
	logger *slog.Logger
}

func NewRodLauncher(cfg RodConfig, logger *slog.Logger) *RodLauncher {
	return &RodLauncher{cfg: cfg, logger: logger.With("component", "rod_launcher")}
}

// Launch connects to the configured debugger URL when set, otherwise starts
// a fresh headless Chrome.
func (l *RodLauncher) Launch(ctx context.Context) (Runtime, error) {
	controlURL := l.cfg.DebuggerURL
	var chrome *launcher.Launcher

	if controlURL == "" {
		chrome = launcher.New().Headless(l.cfg.Headless)
		if l.cfg.Bin != "" {
			chrome = chrome.Bin(l.cfg.Bin)
		}
		url, err := chrome.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		if chrome != nil {
			chrome.Cleanup()
		}
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	l.logger.DebugContext(ctx, "Browser runtime acquired", "control_url", controlURL)
	return &rodRuntime{
		browser:    browser,
		chrome:     chrome,
		navTimeout: l.cfg.NavTimeout,
		logger:     l.logger,
	}, nil
}

type rodRuntime struct {
	browser    *rod.Browser
	chrome     *launcher.Launcher // nil when attached to an external debugger
	navTimeout time.Duration
	logger     *slog.Logger
}

// NewSession opens a fresh incognito page. Each session is exclusive to one
// submission.
func (r *rodRuntime) NewSession(ctx context.Context) (FormSession, error) {
	incognito, err := r.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}
	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return &rodSession{page: page.Context(ctx), navTimeout: r.navTimeout}, nil
}

func (r *rodRuntime) Close() error {
	err := r.browser.Close()
	if r.chrome != nil {
		r.chrome.Cleanup()
	}
	return err
}

type rodSession struct {
	page       *rod.Page
	navTimeout time.Duration

	// pendingNav is registered before a click so the navigation it triggers
	// cannot be missed between the click and AwaitIdle.
	pendingNav func()
}

func (s *rodSession) Navigate(url string) error {
	if err := s.page.Timeout(s.navTimeout).Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (s *rodSession) AwaitIdle(timeout time.Duration) error {
	if s.pendingNav == nil {
		if err := s.page.Timeout(timeout).WaitLoad(); err != nil {
			return fmt.Errorf("wait for page load: %w", err)
		}
		return nil
	}

	wait := s.pendingNav
	s.pendingNav = nil

	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timed out after %s waiting for navigation", timeout)
	}
}

func (s *rodSession) Click(selector string) error {
	el, err := s.element(selector)
	if err != nil {
		return err
	}
	s.pendingNav = s.page.WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

func (s *rodSession) Type(selector, text string) error {
	el, err := s.element(selector)
	if err != nil {
		return err
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("type into %q: %w", selector, err)
	}
	return nil
}

func (s *rodSession) Select(selector, value string) error {
	el, err := s.element(selector)
	if err != nil {
		return err
	}
	option := fmt.Sprintf(`[value=%q]`, value)
	if err := el.Select([]string{option}, true, rod.SelectorTypeCSSSector); err != nil {
		return fmt.Errorf("select %q in %q: %w", value, selector, err)
	}
	return nil
}

func (s *rodSession) Exists(selector string) (bool, error) {
	has, _, err := s.page.Has(selector)
	if err != nil {
		return false, fmt.Errorf("probe %q: %w", selector, err)
	}
	return has, nil
}

func (s *rodSession) TextOf(selector string) (string, error) {
	has, el, err := s.page.Has(selector)
	if err != nil {
		return "", fmt.Errorf("probe %q: %w", selector, err)
	}
	if !has {
		return "", nil
	}
	text, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("read text of %q: %w", selector, err)
	}
	return text, nil
}

func (s *rodSession) SnapshotPDF(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create diagnostic dir: %w", err)
	}
	reader, err := s.page.PDF(&proto.PagePrintToPDF{})
	if err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, reader); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (s *rodSession) Close() error {
	return s.page.Close()
}

func (s *rodSession) element(selector string) (*rod.Element, error) {
	el, err := s.page.Timeout(s.navTimeout).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("locate %q: %w", selector, err)
	}
	return el.CancelTimeout(), nil
}
