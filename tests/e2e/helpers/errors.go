package helpers

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrPlaywrightUnavailable means the driver or browser could not be started.
	ErrPlaywrightUnavailable = errors.New("playwright unavailable")
	// ErrNavigation covers unreachable routes, non-success responses and navigation timeouts.
	ErrNavigation = errors.New("navigation failed")
	// ErrLocatorTimeout means the element was absent or never met the assertion before the timeout.
	ErrLocatorTimeout = errors.New("locator assertion timed out")
	// ErrAmbiguousLocator means more than one element matched where exactly one was expected.
	ErrAmbiguousLocator = errors.New("locator matched more than one element")
	// ErrClassMismatch means the class attribute differed from the expected value.
	ErrClassMismatch = errors.New("class attribute mismatch")
)

// NavigationError reports a failed page load.
type NavigationError struct {
	URL    string
	Status int
	Err    error
}

func (e *NavigationError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("navigation to %s failed: HTTP %d", e.URL, e.Status)
	default:
		return fmt.Sprintf("navigation to %s failed", e.URL)
	}
}

func (e *NavigationError) Is(target error) bool { return target == ErrNavigation }

func (e *NavigationError) Unwrap() error { return e.Err }

// Link is an anchor found on the page, used for failure diagnostics.
type Link struct {
	Text  string
	Href  string
	Class string
}

func (l Link) String() string {
	return fmt.Sprintf("%q href=%q class=%q", l.Text, l.Href, l.Class)
}

// AssertionError reports a locator that did not reach the expected state.
type AssertionError struct {
	Kind     error
	Locator  string
	Expected string
	Actual   string
	Count    int
	Timeout  time.Duration
	Links    []Link
	Err      error
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	switch e.Kind {
	case ErrAmbiguousLocator:
		fmt.Fprintf(&b, "%s: %s matched %d elements, expected exactly 1", e.Kind, e.Locator, e.Count)
	case ErrClassMismatch:
		fmt.Fprintf(&b, "%s: %s\n  expected: %q\n  actual:   %q\n  (timeout %s)", e.Kind, e.Locator, e.Expected, e.Actual, e.Timeout)
	default:
		fmt.Fprintf(&b, "%s: %s expected %s, observed %s (timeout %s)", ErrLocatorTimeout, e.Locator, e.Expected, e.Actual, e.Timeout)
	}
	if len(e.Links) > 0 {
		b.WriteString("\n  links on page:")
		for _, l := range e.Links {
			b.WriteString("\n    ")
			b.WriteString(l.String())
		}
	}
	return b.String()
}

// Is matches the error kind. A class mismatch is also a timed-out assertion.
func (e *AssertionError) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	return e.Kind == ErrClassMismatch && target == ErrLocatorTimeout
}

func (e *AssertionError) Unwrap() error { return e.Err }
