package helpers

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/smartgoals/smartgoals/tests/e2e/config"
)

// BrowserHelper owns one browser session: driver, browser, context and page.
// Every test case gets its own helper; nothing is shared between them.
type BrowserHelper struct {
	Playwright *playwright.Playwright
	Browser    playwright.Browser
	Context    playwright.BrowserContext
	Page       playwright.Page
	Config     *config.TestConfig
	t          testing.TB
	name       string
	failed     bool
}

// NewBrowserHelper creates a new browser helper instance
func NewBrowserHelper(t testing.TB) *BrowserHelper {
	return NewBrowserHelperWithConfig(t, config.GetConfig())
}

// NewBrowserHelperWithConfig creates a browser helper bound to a test with an explicit configuration.
func NewBrowserHelperWithConfig(t testing.TB, cfg *config.TestConfig) *BrowserHelper {
	return &BrowserHelper{Config: cfg, t: t, name: t.Name()}
}

// NewSession creates a browser helper outside of a test run.
func NewSession(cfg *config.TestConfig, name string) *BrowserHelper {
	return &BrowserHelper{Config: cfg, name: name}
}

var (
	installDriver = func(browser string) error {
		return playwright.Install(&playwright.RunOptions{Browsers: []string{browser}})
	}
	installMu sync.Mutex
	installed = map[string]error{}
)

// ensureInstalled installs the driver and the given browser at most once per
// process. Parallel tests share the driver cache, so installs are serialized
// and later callers get the first result.
func ensureInstalled(browser string) error {
	installMu.Lock()
	defer installMu.Unlock()
	if err, ok := installed[browser]; ok {
		return err
	}
	err := installDriver(browser)
	installed[browser] = err
	return err
}

// reinstall forces a fresh install, still serialized with other sessions.
func reinstall(browser string) error {
	installMu.Lock()
	defer installMu.Unlock()
	err := installDriver(browser)
	installed[browser] = err
	return err
}

// Setup initializes the browser and creates a new page
func (b *BrowserHelper) Setup() error {
	var pw *playwright.Playwright
	var err error
	if os.Getenv("PLAYWRIGHT_PREINSTALLED") != "1" {
		if err = ensureInstalled(b.Config.Browser); err != nil {
			return fmt.Errorf("%w: could not install playwright browsers: %v", ErrPlaywrightUnavailable, err)
		}
	}
	pw, err = playwright.Run()
	if err != nil {
		// Fallback: attempt install driver explicitly then retry
		_ = reinstall(b.Config.Browser)
		pw, err = playwright.Run()
		if err != nil {
			return fmt.Errorf("%w: could not start playwright after retry (ensure driver version matches image): %v", ErrPlaywrightUnavailable, err)
		}
	}
	b.Playwright = pw

	browserType, err := b.browserType()
	if err != nil {
		return err
	}
	browser, err := browserType.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(b.Config.Headless),
		SlowMo:   playwright.Float(float64(b.Config.SlowMo)),
	})
	if err != nil {
		return fmt.Errorf("%w: could not launch %s: %v", ErrPlaywrightUnavailable, b.Config.Browser, err)
	}
	b.Browser = browser

	contextOptions := playwright.BrowserNewContextOptions{
		BaseURL: playwright.String(b.Config.BaseURL),
		Viewport: &playwright.Size{
			Width:  1280,
			Height: 720,
		},
	}
	if b.Config.Videos {
		contextOptions.RecordVideo = &playwright.RecordVideo{
			Dir: filepath.Join(b.Config.ResultsDir, "videos"),
		}
	}
	context, err := browser.NewContext(contextOptions)
	if err != nil {
		return fmt.Errorf("could not create context: %w", err)
	}
	b.Context = context

	page, err := context.NewPage()
	if err != nil {
		return fmt.Errorf("could not create page: %w", err)
	}
	b.Page = page

	page.SetDefaultTimeout(float64(b.Config.Timeout.Milliseconds()))

	return nil
}

func (b *BrowserHelper) browserType() (playwright.BrowserType, error) {
	switch b.Config.Browser {
	case "", "chromium":
		return b.Playwright.Chromium, nil
	case "firefox":
		return b.Playwright.Firefox, nil
	case "webkit":
		return b.Playwright.WebKit, nil
	default:
		return nil, fmt.Errorf("unsupported browser %q (want chromium, firefox or webkit)", b.Config.Browser)
	}
}

// MarkFailed flags a session used outside a test so TearDown captures a screenshot.
func (b *BrowserHelper) MarkFailed() { b.failed = true }

// Failed reports whether the owning test or session has failed.
func (b *BrowserHelper) Failed() bool {
	if b.t != nil && b.t.Failed() {
		return true
	}
	return b.failed
}

// TearDown closes whatever Setup managed to open. It is safe to call after a
// failed or skipped Setup and more than once, so register it before Setup.
func (b *BrowserHelper) TearDown() {
	if b.Failed() && b.Config.Screenshots && b.Page != nil {
		name := strings.NewReplacer("/", "_", " ", "_").Replace(b.name)
		screenshotPath := filepath.Join(b.Config.ResultsDir, "screenshots",
			fmt.Sprintf("%s_%d.png", name, time.Now().Unix()))
		if _, err := b.Page.Screenshot(playwright.PageScreenshotOptions{
			Path:     playwright.String(screenshotPath),
			FullPage: playwright.Bool(true),
		}); err != nil {
			log.Printf("[e2e-browser] screenshot for %s failed: %v", b.name, err)
		} else {
			log.Printf("[e2e-browser] screenshot saved to %s", screenshotPath)
		}
	}

	if b.Page != nil {
		_ = b.Page.Close()
		b.Page = nil
	}
	if b.Context != nil {
		_ = b.Context.Close()
		b.Context = nil
	}
	if b.Browser != nil {
		_ = b.Browser.Close()
		b.Browser = nil
	}
	if b.Playwright != nil {
		_ = b.Playwright.Stop()
		b.Playwright = nil
	}
}

// NavigateTo navigates to a path relative to the base URL. Transport
// failures and non-2xx responses are reported as *NavigationError.
func (b *BrowserHelper) NavigateTo(path string) error {
	url := b.Config.URL(path)
	resp, err := b.Page.Goto(url)
	if err != nil {
		if strings.Contains(err.Error(), "ERR_TOO_MANY_REDIRECTS") {
			return &NavigationError{URL: url, Err: fmt.Errorf("redirect loop (check BASE_URL port / redirect configuration): %w", err)}
		}
		return &NavigationError{URL: url, Err: err}
	}
	// A nil response means same-document navigation; nothing to check.
	if resp != nil && !resp.Ok() {
		return &NavigationError{URL: url, Status: resp.Status()}
	}
	return nil
}
