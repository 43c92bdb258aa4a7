package cmd

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/schoolctl/internal/exitcode"
	"github.com/felixgeelhaar/schoolctl/internal/gateway"
)

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{
		"auth", "role", "year", "request", "students", "fees", "personnel",
		"announcements", "timetable", "export", "config", "doctor", "version", "completion",
	} {
		assert.True(t, names[want], "command %s not registered", want)
	}

	for _, flag := range []string{"profile", "api-url", "home", "output", "no-color", "log-level", "log-format"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "flag %s", flag)
	}
}

func TestCommandTreesAreIndependent(t *testing.T) {
	a, b := NewRootCommand(), NewRootCommand()
	require.NoError(t, a.PersistentFlags().Set("output", "json"))

	got, err := b.PersistentFlags().GetString("output")
	require.NoError(t, err)
	assert.Equal(t, "text", got)
}

func TestVersionCommand(t *testing.T) {
	c := newCLI(t)

	out, _ := c.mustRun("version")
	assert.True(t, strings.HasPrefix(out, "schoolctl "), out)

	out, _ = c.mustRun("version", "--verbose")
	assert.Contains(t, out, "user agent: schoolctl/")

	out, _ = c.mustRun("version", "-o", "json")
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")
}

func TestOutputFormatValidation(t *testing.T) {
	c := newCLI(t)

	_, _, err := c.run("version", "-o", "xml")
	require.Error(t, err)
	assert.Equal(t, exitcode.UsageError, exitcode.DetermineExitCode(err))
}

func TestCompletion(t *testing.T) {
	c := newCLI(t)

	out, _ := c.mustRun("completion", "bash")
	assert.Contains(t, out, "schoolctl")
}

func TestReported(t *testing.T) {
	assert.NoError(t, reported(nil))

	plain := errors.New("boom")
	assert.Same(t, plain, reported(plain))
	assert.False(t, AlreadyReported(plain))

	wrapped := reported(gateway.ErrUnauthorized)
	assert.True(t, AlreadyReported(wrapped))
	assert.ErrorIs(t, wrapped, gateway.ErrUnauthorized)
	assert.Same(t, wrapped, reported(wrapped), "wrapping is idempotent")
}
