package surface

import (
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Browser opens login surfaces as pages of a rod-controlled browser. The
// browser is connected lazily on the first Open so that catalog-only usage
// never needs a local Chromium.
type Browser struct {
	mu         sync.Mutex
	controlURL string
	headless   bool
	browser    *rod.Browser
}

// NewBrowser returns a Browser that will attach to controlURL (a DevTools
// websocket URL), or launch a local browser when controlURL is empty.
// headless should stay false for login: the user has to see the window to
// type credentials.
func NewBrowser(controlURL string, headless bool) *Browser {
	return &Browser{controlURL: controlURL, headless: headless}
}

func (b *Browser) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}
	controlURL := b.controlURL
	if controlURL == "" {
		u, err := launcher.New().Headless(b.headless).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
	}
	br := rod.New().ControlURL(controlURL)
	if err := br.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	b.browser = br
	return br, nil
}

// Open creates a new browser window at url.
func (b *Browser) Open(url string) (Surface, error) {
	br, err := b.connect()
	if err != nil {
		return nil, err
	}
	page, err := br.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("open login page: %w", err)
	}
	return &rodSurface{page: page}, nil
}

// Close disconnects from the browser. Windows opened through Open die with it.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	return err
}

type rodSurface struct {
	page *rod.Page

	mu     sync.Mutex
	closed bool
}

func (s *rodSurface) URL() (string, error) {
	info, err := s.page.Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (s *rodSurface) Cookies(url string) (map[string]string, error) {
	cookies, err := s.page.Cookies([]string{url})
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(cookies))
	for _, c := range cookies {
		out[c.Name] = c.Value
	}
	return out, nil
}

func (s *rodSurface) Focus() error {
	_, err := s.page.Activate()
	return err
}

func (s *rodSurface) Alive() bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false
	}
	// Info fails once the target is gone (user closed the window).
	_, err := s.page.Info()
	return err == nil
}

func (s *rodSurface) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	if err := s.page.Close(); err != nil {
		// The window may already be gone; that is the outcome we wanted.
		return nil
	}
	return nil
}
