// Package testutil holds helpers shared by sitepulse tests: behaviour-style
// subtests, HTTP request builders and a silent logger. Container helpers for
// integration tests live in testutil/containers.
package testutil

import "testing"

// Given names the state a tracker or handler test starts from.
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+desc, fn)
}

// When names the signal or request under test.
func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+desc, fn)
}

// Then names the expected outcome, such as events emitted or a status code.
func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+desc, fn)
}
