package config

import (
	"errors"
	"io/fs"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Configuration keys. They double as environment variable names.
const (
	KeyBaseURL       = "BASE_URL"
	KeyRawBaseURL    = "RAW_BASE_URL"
	KeyAutodetect    = "E2E_BASEURL_AUTODETECT"
	KeyHeadless      = "HEADLESS"
	KeySlowMo        = "SLOW_MO"
	KeyScreenshots   = "SCREENSHOTS"
	KeyVideos        = "VIDEOS"
	KeyBrowser       = "E2E_BROWSER"
	KeyTimeout       = "E2E_TIMEOUT"
	KeyExpectTimeout = "E2E_EXPECT_TIMEOUT"
	KeyResultsDir    = "E2E_RESULTS_DIR"
)

const (
	DefaultBaseURL       = "http://localhost:3000"
	DefaultBrowser       = "chromium"
	DefaultTimeout       = 30 * time.Second
	DefaultExpectTimeout = 5 * time.Second
	DefaultResultsDir    = "./test-results"
)

// candidatePorts are tried when no base URL is configured and the default does not answer.
var candidatePorts = []string{"3000", "5173", "8080"}

// TestConfig holds all configuration for E2E tests
type TestConfig struct {
	BaseURL       string
	Browser       string
	Timeout       time.Duration
	ExpectTimeout time.Duration
	Headless      bool
	SlowMo        int
	Screenshots   bool
	Videos        bool
	ResultsDir    string
}

// URL resolves a route path against the base URL.
func (c *TestConfig) URL(path string) string {
	if path == "" {
		return c.BaseURL
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.BaseURL + path
}

var (
	loadOnce sync.Once
	loaded   *TestConfig
)

// GetConfig returns the test configuration, loading it from the
// environment and an optional .env file on first use.
func GetConfig() *TestConfig {
	loadOnce.Do(func() {
		loaded = FromViper(NewViper())
	})
	return loaded
}

// NewViper returns a viper instance with defaults applied, .env merged in
// when present and the environment taking precedence over both.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyAutodetect, true)
	v.SetDefault(KeyHeadless, true)
	v.SetDefault(KeySlowMo, 0)
	v.SetDefault(KeyScreenshots, true)
	v.SetDefault(KeyVideos, false)
	v.SetDefault(KeyBrowser, DefaultBrowser)
	v.SetDefault(KeyTimeout, DefaultTimeout.String())
	v.SetDefault(KeyExpectTimeout, DefaultExpectTimeout.String())
	v.SetDefault(KeyResultsDir, DefaultResultsDir)

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("[e2e-config] ignoring unreadable .env: %v", err)
	}
	v.AutomaticEnv()
	return v
}

// FromViper builds a TestConfig from the given viper instance.
// Autodetection only applies to the built-in default; a base URL set
// through BASE_URL, RAW_BASE_URL, .env or a flag is used as given.
func FromViper(v *viper.Viper) *TestConfig {
	baseURL := v.GetString(KeyBaseURL)
	if forced := v.GetString(KeyRawBaseURL); forced != "" { // explicit injection hook for tests
		baseURL = forced
	}
	explicit := baseURL != ""
	if !explicit {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if !explicit && v.GetBool(KeyAutodetect) {
		baseURL = detectReachableBaseURL(baseURL, candidatePorts)
	}
	log.Printf("[e2e-config] Resolved BaseURL=%s (RAW_BASE_URL=%s)", baseURL, v.GetString(KeyRawBaseURL))

	browser := strings.ToLower(strings.TrimSpace(v.GetString(KeyBrowser)))
	if browser == "" {
		browser = DefaultBrowser
	}

	return &TestConfig{
		BaseURL:       baseURL,
		Browser:       browser,
		Timeout:       parseDuration(v.GetString(KeyTimeout), DefaultTimeout),
		ExpectTimeout: parseDuration(v.GetString(KeyExpectTimeout), DefaultExpectTimeout),
		Headless:      v.GetBool(KeyHeadless),
		SlowMo:        v.GetInt(KeySlowMo),
		Screenshots:   v.GetBool(KeyScreenshots),
		Videos:        v.GetBool(KeyVideos),
		ResultsDir:    v.GetString(KeyResultsDir),
	}
}

// parseDuration accepts Go durations ("5s") or bare milliseconds ("5000").
func parseDuration(raw string, fallback time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		if ms <= 0 {
			return fallback
		}
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("[e2e-config] invalid duration %q, using %s", raw, fallback)
		return fallback
	}
	return d
}

// detectReachableBaseURL attempts to find a responsive frontend if the provided baseURL is not reachable.
func detectReachableBaseURL(initial string, ports []string) string {
	start := time.Now()
	if reachable(initial) {
		return initial
	}

	tried := []string{initial}
	candidates := []string{}

	u, err := url.Parse(initial)
	if err == nil {
		scheme := u.Scheme
		if scheme == "" {
			scheme = "http"
		}
		port := u.Port()
		if port == "" {
			port = "3000"
		}
		basePorts := append([]string{port}, ports...)
		for _, host := range []string{"localhost", "127.0.0.1"} {
			for _, p := range basePorts {
				candidates = append(candidates, scheme+"://"+host+":"+p)
			}
		}
	}

	seen := map[string]struct{}{initial: {}}
	uniq := []string{}
	for _, c := range candidates {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		uniq = append(uniq, c)
	}

	for _, c := range uniq {
		tried = append(tried, c)
		if reachable(c) {
			log.Printf("[e2e-config] Auto-detect switched BaseURL %s -> %s (%.0fms; order=%v)", initial, c, time.Since(start).Seconds()*1000, tried)
			return c
		}
	}
	log.Printf("[e2e-config] Auto-detect kept unreachable BaseURL=%s (no reachable candidates; tried=%v in %.0fms)", initial, tried, time.Since(start).Seconds()*1000)
	return initial
}

// reachable reports whether base answers 2xx on the smart goals route.
// Any other listener on a candidate port is not the frontend under test.
func reachable(base string) bool {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Host
	if u.Port() == "" {
		if u.Scheme == "https" {
			host += ":443"
		} else {
			host += ":80"
		}
	}
	d := net.Dialer{Timeout: 250 * time.Millisecond}
	conn, err := d.Dial("tcp", host)
	if err != nil {
		return false
	}
	_ = conn.Close()
	client := &http.Client{Timeout: 800 * time.Millisecond}
	resp, err := client.Get(base + "/smartgoals")
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
