//go:build e2e

package e2e

// Loads configuration (and .env) once before any test runs so the resolved
// base URL is logged up front rather than inside the first parallel test.

import "github.com/smartgoals/smartgoals/tests/e2e/config"

func init() {
	config.GetConfig()
}
