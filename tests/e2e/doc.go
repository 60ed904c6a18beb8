// Package e2e holds the live browser smoke tests for the smart goals page.
//
// The tests need a running frontend and are built only with the e2e tag:
//
//	BASE_URL=http://localhost:3000 go test -tags e2e ./tests/e2e/...
//
// Configuration is read by the config package; browser sessions and the
// checks themselves live in helpers.
package e2e
