// Package browser owns the headless Chrome process used by the verifier.
// A Session wraps one launched browser and the single page opened on it.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// ErrClosed is returned when a closed Session is used
var ErrClosed = errors.New("browser session closed")

// Config configures Chrome launch options
type Config struct {
	Headless bool          // Run without a window (default: true)
	Bin      string        // Chrome binary, empty lets rod find or download one
	Timeout  time.Duration // Bound for navigation and screenshots (default: 30s)

	// VisibleTimeout bounds each wait for visible text (default: 5s)
	VisibleTimeout time.Duration
}

// DefaultConfig returns the launch options used for smoke runs
func DefaultConfig() Config {
	return Config{
		Headless:       true,
		Timeout:        30 * time.Second,
		VisibleTimeout: 5 * time.Second,
	}
}

// Session holds a running browser and its page
type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	timeout  time.Duration
	visible  time.Duration

	mu   sync.Mutex
	page *Page

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

// Launch starts Chrome and connects to it
func Launch(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.VisibleTimeout <= 0 {
		cfg.VisibleTimeout = DefaultConfig().VisibleTimeout
	}

	l := launcher.New().Context(ctx).Headless(cfg.Headless)

	// Use CHROME_BIN if set (Docker environment)
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}

	// Additional Chrome flags for container compatibility
	l = l.Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage")

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(url).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &Session{
		launcher: l,
		browser:  b,
		timeout:  cfg.Timeout,
		visible:  cfg.VisibleTimeout,
	}, nil
}

// OpenPage creates the session's page. Calling it again returns the same page.
func (s *Session) OpenPage(ctx context.Context) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.page != nil {
		return s.page, nil
	}

	p, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	s.page = &Page{page: p, timeout: s.timeout, visible: s.visible}
	return s.page, nil
}

// Close shuts the browser down and removes its profile directory.
// Only the first call does any work; later calls return the same error.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.closeErr = s.browser.Close()
		s.launcher.Kill()
		s.launcher.Cleanup()
	})
	return s.closeErr
}

// Page is a single tab of a Session
type Page struct {
	page    *rod.Page
	timeout time.Duration
	visible time.Duration
}

// bound returns the page scoped to ctx and capped at d
func (p *Page) bound(ctx context.Context, d time.Duration) (*rod.Page, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, d)
	return p.page.Context(ctx), cancel
}

// Navigate loads url and waits for the load event
func (p *Page) Navigate(ctx context.Context, url string) error {
	page, cancel := p.bound(ctx, p.timeout)
	defer cancel()

	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("failed to load %s: %w", url, err)
	}
	return nil
}

// WaitVisibleText waits until an element whose own text contains text is
// rendered and returns how many elements match. With first set the count is
// not taken and 1 is returned.
func (p *Page) WaitVisibleText(ctx context.Context, text string, first bool) (int, error) {
	page, cancel := p.bound(ctx, p.visible)
	defer cancel()
	query := TextXPath(text)

	el, err := page.ElementX(query)
	if err != nil {
		return 0, err
	}
	if err := el.WaitVisible(); err != nil {
		return 0, err
	}

	if first {
		return 1, nil
	}

	els, err := page.ElementsX(query)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

// Screenshot writes a PNG of the page to path, creating parent directories
func (p *Page) Screenshot(ctx context.Context, path string, fullPage bool) error {
	page, cancel := p.bound(ctx, p.timeout)
	defer cancel()

	data, err := page.Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return fmt.Errorf("failed to take screenshot: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create screenshot dir: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save screenshot: %w", err)
	}
	return nil
}
