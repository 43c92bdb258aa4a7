package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/schoolctl/internal/errors"
	"github.com/felixgeelhaar/schoolctl/internal/gateway"
)

func statusOf(t *testing.T, c *cli) map[string]any {
	t.Helper()
	out, _ := c.mustRun("auth", "status", "-o", "json")
	var status map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &status), out)
	return status
}

func TestAuthSubcommands(t *testing.T) {
	want := map[string]bool{"login": false, "logout": false, "status": false, "me": false}
	for _, c := range newAuthCmd().Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		assert.True(t, found, "auth %s not registered", name)
	}

	login, _, err := newAuthCmd().Find([]string{"login"})
	require.NoError(t, err)
	for _, flag := range []string{"id", "password", "password-stdin", "role", "year"} {
		assert.NotNil(t, login.Flags().Lookup(flag), "flag %s", flag)
	}
}

func TestLoginYearScopedRoleAsksForYear(t *testing.T) {
	c := newCLI(t)

	_, stderr := c.mustRun("auth", "login", "--id", "bursar@school.test", "--password", "secret")
	assert.Contains(t, stderr, "Login successful")
	assert.Contains(t, stderr, "Choose an academic year")
	assert.NotContains(t, stderr, "/bursar/dashboard")

	status := statusOf(t, c)
	assert.Equal(t, "year-unresolved", status["phase"])
	assert.Equal(t, "BURSAR", status["role"])
	assert.Nil(t, status["academic_year"])

	_, stderr = c.mustRun("year", "select", "2024/2025")
	assert.Contains(t, stderr, "Switched to academic year 2024/2025")
	assert.Contains(t, stderr, "→ /bursar/dashboard")

	status = statusOf(t, c)
	assert.Equal(t, "ready", status["phase"])
	year := status["academic_year"].(map[string]any)
	assert.EqualValues(t, 7, year["id"])
}

func TestLoginWithYearFlag(t *testing.T) {
	c := newCLI(t)
	c.loginBursar()

	status := statusOf(t, c)
	assert.Equal(t, "ready", status["phase"])
	assert.Equal(t, "file", status["storage"])
	_, err := os.Stat(filepath.Join(c.home, "session.json"))
	assert.NoError(t, err, "session persisted in the profile's session file")

	data, err := os.ReadFile(filepath.Join(c.home, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "identifier: bursar@school.test")
	assert.Contains(t, string(data), "last_path: /bursar/dashboard")
}

func TestLoginSingleRoleWithoutYearOpensDashboard(t *testing.T) {
	c := newCLI(t)

	out, stderr := c.mustRun("auth", "login", "--id", "A001", "--password", "secret")
	assert.Contains(t, stderr, "→ /admin/dashboard")
	assert.Contains(t, out, "Ada Admin [A001]")
	assert.Contains(t, out, "role-ready")
}

func TestLoginSeveralRoles(t *testing.T) {
	c := newCLI(t)

	_, stderr := c.mustRun("auth", "login", "--id", "principal@school.test", "--password", "secret")
	assert.Contains(t, stderr, "Choose a role")
	assert.Equal(t, "role-unresolved", statusOf(t, c)["phase"])

	out, _ := c.mustRun("role", "list")
	assert.Contains(t, out, "PRINCIPAL")
	assert.Contains(t, out, "Principal")
	assert.NotContains(t, out, "BURSAR")
	assert.Contains(t, out, "/admin/dashboard")
}

func TestLoginWithRoleFlag(t *testing.T) {
	c := newCLI(t)

	c.mustRun("auth", "login", "--id", "principal@school.test", "--password", "secret", "--role", "principal", "--year", "6")
	status := statusOf(t, c)
	assert.Equal(t, "PRINCIPAL", status["role"])
	assert.Equal(t, "ready", status["phase"])
	assert.EqualValues(t, 6, status["academic_year"].(map[string]any)["id"])
}

func TestLoginPasswordFromStdin(t *testing.T) {
	c := newCLI(t)

	_, stderr, err := c.runWithInput("secret\n", "auth", "login", "--id", "A001", "--password-stdin")
	require.NoError(t, err, stderr)
	assert.Equal(t, "role-ready", statusOf(t, c)["phase"])
}

func TestLoginWithoutCredentialsOutsideTerminal(t *testing.T) {
	c := newCLI(t)

	_, _, err := c.run("auth", "login", "--id", "A001")
	require.Error(t, err)
	var withSuggestion *ErrorWithSuggestion
	require.ErrorAs(t, err, &withSuggestion)
	assert.Contains(t, err.Error(), "--password-stdin")
	assert.Zero(t, c.backend.Hits("POST /auth/login"))
}

func TestLoginRejected(t *testing.T) {
	c := newCLI(t)

	_, stderr, err := c.run("auth", "login", "--id", "A001", "--password", "wrong")
	require.Error(t, err)
	assert.True(t, AlreadyReported(err))
	assert.Contains(t, stderr, "Invalid credentials")
	assert.Equal(t, "unauthenticated", statusOf(t, c)["phase"])
}

func TestRoleSelect(t *testing.T) {
	c := newCLI(t)
	c.mustRun("auth", "login", "--id", "principal@school.test", "--password", "secret")

	_, stderr := c.mustRun("role", "select", "ADMIN")
	assert.Contains(t, stderr, "Acting as Admin")
	assert.Contains(t, stderr, "→ /admin/dashboard")
	assert.Equal(t, "role-ready", statusOf(t, c)["phase"])

	// A year-scoped role always asks for the year again.
	c.mustRun("role", "select", "PRINCIPAL", "--year", "7")
	assert.Equal(t, "ready", statusOf(t, c)["phase"])
	_, stderr = c.mustRun("role", "select", "PRINCIPAL")
	assert.Contains(t, stderr, "Choose an academic year")
	assert.Equal(t, "year-unresolved", statusOf(t, c)["phase"])

	_, _, err := c.run("role", "select", "BURSAR")
	assert.Equal(t, errors.ErrCodeRoleNotGranted, errors.CodeOf(err))

	_, _, err = c.run("role", "select")
	assert.ErrorContains(t, err, "invalid flag")
}

func TestRoleCommandsNeedSession(t *testing.T) {
	c := newCLI(t)

	_, _, err := c.run("role", "list")
	assert.Equal(t, errors.ErrCodeSessionMissing, errors.CodeOf(err))
	_, _, err = c.run("role", "select", "ADMIN")
	assert.Equal(t, errors.ErrCodeSessionMissing, errors.CodeOf(err))
}

func TestYearList(t *testing.T) {
	c := newCLI(t)
	c.loginBursar()

	out, _ := c.mustRun("year", "list")
	assert.Contains(t, out, "2024/2025")
	assert.Contains(t, out, "2023/2024")
	assert.Contains(t, out, "current")

	out, _ = c.mustRun("year", "list", "-o", "json")
	var years yearTable
	require.NoError(t, json.Unmarshal([]byte(out), &years))
	assert.Len(t, years.Years, 2)
	require.NotNil(t, years.SelectedID)
	assert.Equal(t, 7, *years.SelectedID)
}

func TestYearSelectErrors(t *testing.T) {
	c := newCLI(t)
	c.mustRun("auth", "login", "--id", "bursar@school.test", "--password", "secret")

	_, _, err := c.run("year", "select", "1999/2000")
	assert.Equal(t, errors.ErrCodeYearUnavailable, errors.CodeOf(err))

	_, _, err = c.run("year", "select")
	assert.ErrorContains(t, err, "invalid flag")

	a := newCLI(t)
	a.mustRun("auth", "login", "--id", "A001", "--password", "secret")
	_, _, err = a.run("year", "list")
	assert.Equal(t, errors.ErrCodeYearNotRequired, errors.CodeOf(err))
}

func TestAuthMeKeepsSelection(t *testing.T) {
	c := newCLI(t)
	c.loginBursar()

	out, _ := c.mustRun("auth", "me", "-o", "json")
	var status map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, "ready", status["phase"])
	assert.Equal(t, 1, c.backend.Hits("GET /auth/me"))
}

func TestSessionExpiry(t *testing.T) {
	c := newCLI(t)
	c.loginBursar()
	c.backend.RevokeTokens()

	_, stderr, err := c.run("students", "list")
	require.Error(t, err)
	assert.True(t, AlreadyReported(err))
	assert.True(t, gateway.IsUnauthorized(err))
	assert.Contains(t, stderr, "Invalid or expired token")
	assert.Contains(t, stderr, "→ /")

	assert.Equal(t, "unauthenticated", statusOf(t, c)["phase"])
}

func TestLogout(t *testing.T) {
	c := newCLI(t)
	c.loginBursar()

	_, stderr := c.mustRun("auth", "logout")
	assert.Contains(t, stderr, "Logged out")

	out, _ := c.mustRun("auth", "status")
	assert.Contains(t, out, "not logged in")

	// Logging out twice is harmless.
	c.mustRun("auth", "logout")
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	got, ok := tokenExpiry(token)
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"}).SignedString([]byte("k"))
	require.NoError(t, err)

	for _, token := range []string{"", "token-1-1", noExp} {
		_, ok := tokenExpiry(token)
		assert.False(t, ok, token)
	}
}
