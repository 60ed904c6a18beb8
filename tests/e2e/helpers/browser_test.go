package helpers

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubInstall replaces the driver installer for the duration of the test.
func stubInstall(t *testing.T, fn func(browser string) error) {
	t.Helper()
	installMu.Lock()
	savedDriver, savedInstalled := installDriver, installed
	installDriver, installed = fn, map[string]error{}
	installMu.Unlock()
	t.Cleanup(func() {
		installMu.Lock()
		installDriver, installed = savedDriver, savedInstalled
		installMu.Unlock()
	})
}

func TestEnsureInstalledSerializesParallelSessions(t *testing.T) {
	var (
		mu       sync.Mutex
		calls    = map[string]int{}
		inFlight int32
		overlap  atomic.Bool
	)
	stubInstall(t, func(browser string) error {
		if atomic.AddInt32(&inFlight, 1) > 1 {
			overlap.Store(true)
		}
		defer atomic.AddInt32(&inFlight, -1)
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		calls[browser]++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		for _, browser := range []string{"chromium", "firefox"} {
			wg.Add(1)
			go func(browser string) {
				defer wg.Done()
				assert.NoError(t, ensureInstalled(browser))
			}(browser)
		}
	}
	wg.Wait()

	assert.False(t, overlap.Load(), "installs must not run concurrently")
	assert.Equal(t, map[string]int{"chromium": 1, "firefox": 1}, calls)
}

func TestEnsureInstalledCachesFailure(t *testing.T) {
	calls := 0
	boom := errors.New("download failed")
	stubInstall(t, func(string) error {
		calls++
		return boom
	})

	require.ErrorIs(t, ensureInstalled("chromium"), boom)
	require.ErrorIs(t, ensureInstalled("chromium"), boom)
	assert.Equal(t, 1, calls)

	stubInstall(t, func(string) error {
		calls++
		return nil
	})
	require.NoError(t, reinstall("chromium"))
	require.NoError(t, ensureInstalled("chromium"))
	assert.Equal(t, 2, calls)
}

func TestTearDownWithoutSetup(t *testing.T) {
	browser := NewBrowserHelperWithConfig(t, fixtureConfig("http://127.0.0.1:1"))

	assert.NotPanics(t, browser.TearDown)
	assert.NotPanics(t, browser.TearDown, "second teardown is a no-op")
	assert.Nil(t, browser.Playwright)
	assert.Nil(t, browser.Page)
}
