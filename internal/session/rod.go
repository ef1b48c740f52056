package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// RodConfig configures the Chrome instance behind a session
type RodConfig struct {
	// RemoteURL is the WebSocket URL of an external Chrome. Empty launches a local one.
	RemoteURL string
	Bin       string
	Headless  bool
	Stealth   bool
}

// RodLauncher launches Chrome through go-rod
type RodLauncher struct {
	cfg RodConfig
}

func NewRodLauncher(cfg RodConfig) *RodLauncher {
	return &RodLauncher{cfg: cfg}
}

func (l *RodLauncher) Launch(ctx context.Context) (Browser, error) {
	var lnch *launcher.Launcher
	controlURL := l.cfg.RemoteURL

	if controlURL == "" {
		lnch = launcher.New().Headless(l.cfg.Headless)
		if l.cfg.Bin != "" {
			lnch = lnch.Bin(l.cfg.Bin)
		}
		lnch = lnch.Set("disable-blink-features", "AutomationControlled")

		u, err := lnch.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch chrome: %w", err)
		}
		controlURL = u
		slog.Info("Launched local chrome", "url", controlURL, "headless", l.cfg.Headless)
	} else {
		slog.Info("Connecting to remote chrome", "url", controlURL)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		if lnch != nil {
			lnch.Cleanup()
		}
		return nil, fmt.Errorf("failed to connect to chrome: %w", err)
	}

	var page *rod.Page
	var err error
	if l.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		_ = b.Close()
		if lnch != nil {
			lnch.Cleanup()
		}
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	return &rodBrowser{browser: b, page: page, lnch: lnch}, nil
}

type rodBrowser struct {
	browser *rod.Browser
	page    *rod.Page
	lnch    *launcher.Launcher
}

func (r *rodBrowser) Navigate(ctx context.Context, url string) error {
	p := r.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		slog.Warn("Page load wait failed", "url", url, "error", err)
	}
	return nil
}

func (r *rodBrowser) URL(ctx context.Context) (string, error) {
	info, err := r.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("failed to read page info: %w", err)
	}
	return info.URL, nil
}

func (r *rodBrowser) Cookies(ctx context.Context) ([]Cookie, error) {
	raw, err := r.page.Context(ctx).Cookies(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain})
	}
	return cookies, nil
}

func (r *rodBrowser) Eval(ctx context.Context, js string, args ...any) (string, error) {
	res, err := r.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return "", fmt.Errorf("failed to evaluate script: %w", err)
	}
	return res.Value.Str(), nil
}

func (r *rodBrowser) Close() error {
	var firstErr error
	if r.page != nil {
		if err := r.page.Close(); err != nil {
			firstErr = err
		}
	}
	if r.browser != nil {
		if err := r.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.lnch != nil {
		r.lnch.Cleanup()
	}
	return firstErr
}
