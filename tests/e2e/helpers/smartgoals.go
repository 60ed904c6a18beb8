package helpers

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"
)

const (
	// SmartGoalsRoute is the page under test.
	SmartGoalsRoute = "/smartgoals"
	// NavbarSelector identifies the navigation bar.
	NavbarSelector = "#navbar"
	// ActiveClass is the exact class value the current nav link must carry.
	ActiveClass = "active"
)

// NavLinkName matches the accessible name of the smart goals nav link.
var NavLinkName = regexp.MustCompile(`(?i)smart goals`)

// SmartGoalsPage wraps a page pointed at the smart goals route.
type SmartGoalsPage struct {
	page    playwright.Page
	expect  playwright.PlaywrightAssertions
	timeout time.Duration
}

// NewSmartGoalsPage binds the page object to a page. Assertions poll up to timeout.
func NewSmartGoalsPage(page playwright.Page, timeout time.Duration) *SmartGoalsPage {
	return &SmartGoalsPage{
		page:    page,
		expect:  playwright.NewPlaywrightAssertions(float64(timeout.Milliseconds())),
		timeout: timeout,
	}
}

// Navbar locates the navigation bar.
func (p *SmartGoalsPage) Navbar() playwright.Locator {
	return p.page.Locator(NavbarSelector)
}

// NavLink locates the link whose accessible name matches NavLinkName.
func (p *SmartGoalsPage) NavLink() playwright.Locator {
	return p.page.GetByRole(*playwright.AriaRoleLink, playwright.PageGetByRoleOptions{
		Name: NavLinkName,
	})
}

// CheckPageLoads waits for the navigation bar to become visible.
func (p *SmartGoalsPage) CheckPageLoads() error {
	navbar := p.Navbar()
	err := p.expect.Locator(navbar).ToBeVisible()
	if err == nil {
		return nil
	}

	count, _ := navbar.Count()
	if count > 1 {
		return &AssertionError{
			Kind:    ErrAmbiguousLocator,
			Locator: NavbarSelector,
			Count:   count,
			Timeout: p.timeout,
			Err:     err,
		}
	}
	observed := "no matching element"
	if count == 1 {
		observed = "hidden"
	}
	return &AssertionError{
		Kind:     ErrLocatorTimeout,
		Locator:  NavbarSelector,
		Expected: "visible",
		Actual:   observed,
		Count:    count,
		Timeout:  p.timeout,
		Err:      err,
	}
}

// CheckNavLinkActive asserts the nav link's class attribute is exactly ActiveClass.
// Additional classes ("nav-link active") fail the check.
func (p *SmartGoalsPage) CheckNavLinkActive() error {
	link := p.NavLink()
	err := p.expect.Locator(link).ToHaveClass(ActiveClass)
	if err == nil {
		return nil
	}

	locator := fmt.Sprintf("role=link[name=%s]", NavLinkName)
	links := p.links()
	count, _ := link.Count()
	switch {
	case count == 0:
		return &AssertionError{
			Kind:     ErrLocatorTimeout,
			Locator:  locator,
			Expected: fmt.Sprintf("class %q", ActiveClass),
			Actual:   "no matching element",
			Timeout:  p.timeout,
			Links:    links,
			Err:      err,
		}
	case count > 1:
		return &AssertionError{
			Kind:    ErrAmbiguousLocator,
			Locator: locator,
			Count:   count,
			Timeout: p.timeout,
			Links:   links,
			Err:     err,
		}
	}

	class, attrErr := link.GetAttribute("class", playwright.LocatorGetAttributeOptions{
		Timeout: playwright.Float(1000),
	})
	if attrErr != nil {
		class = fmt.Sprintf("<unreadable: %v>", attrErr)
	}
	return &AssertionError{
		Kind:     ErrClassMismatch,
		Locator:  locator,
		Expected: ActiveClass,
		Actual:   class,
		Count:    count,
		Timeout:  p.timeout,
		Links:    links,
		Err:      err,
	}
}

// links lists the anchors in the current DOM. Best effort; used only to enrich failures.
func (p *SmartGoalsPage) links() []Link {
	html, err := p.page.Content()
	if err != nil {
		return nil
	}
	return ParseLinks(html)
}

// ParseLinks extracts anchors from an HTML document.
func ParseLinks(html string) []Link {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	var links []Link
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		class, _ := s.Attr("class")
		links = append(links, Link{
			Text:  strings.Join(strings.Fields(s.Text()), " "),
			Href:  href,
			Class: class,
		})
	})
	return links
}

// Check is one smoke check run against a freshly navigated smart goals page.
type Check struct {
	Name string
	Run  func(*SmartGoalsPage) error
}

// SmartGoalsChecks are the smoke checks for the smart goals page, in order.
var SmartGoalsChecks = []Check{
	{Name: "page loads", Run: (*SmartGoalsPage).CheckPageLoads},
	{Name: "navbar link is active", Run: (*SmartGoalsPage).CheckNavLinkActive},
}

// RunCheck navigates the session to the smart goals route and runs the check.
func RunCheck(b *BrowserHelper, c Check) error {
	if err := b.NavigateTo(SmartGoalsRoute); err != nil {
		return err
	}
	return c.Run(NewSmartGoalsPage(b.Page, b.Config.ExpectTimeout))
}
