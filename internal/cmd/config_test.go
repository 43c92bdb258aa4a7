package cmd

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/schoolctl/internal/errors"
)

func TestConfigPathAndView(t *testing.T) {
	c := newCLI(t)

	out, _ := c.mustRun("config", "path")
	assert.Equal(t, filepath.Join(c.home, "config.yaml"), strings.TrimSpace(out))

	out, _ = c.mustRun("config", "view")
	assert.Contains(t, out, "Profile: default")
	assert.Contains(t, out, "api_url: "+c.apiURL)

	out, _ = c.mustRun("config", "view", "-o", "json")
	var profile map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &profile))
	assert.Equal(t, "default", profile["name"])
	assert.Equal(t, "file", profile["storage"].(map[string]any)["driver"])
}

func TestConfigSetAndGet(t *testing.T) {
	c := newCLI(t)

	out, _ := c.mustRun("config", "set", "log.level", "debug")
	assert.Contains(t, out, "Set log.level = debug (profile default)")

	out, _ = c.mustRun("config", "get", "log.level")
	assert.Equal(t, "debug", strings.TrimSpace(out))

	out, _ = c.mustRun("config", "get", "timeout")
	assert.Equal(t, "30s", strings.TrimSpace(out))

	_, _, err := c.run("config", "set", "colour", "blue")
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.CodeOf(err))

	_, _, err = c.run("config", "set", "storage.driver", "floppy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Driver")
}

func TestConfigProfiles(t *testing.T) {
	c := newCLI(t)

	c.mustRun("--profile", "staging", "config", "set", "description", "Staging backend")
	c.mustRun("--profile", "staging", "config", "set", "storage.driver", "memory")

	out, _ := c.mustRun("config", "profiles", "-o", "json")
	var list profileList
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Equal(t, []string{"default", "staging"}, list.Profiles)
	assert.Equal(t, "default", list.Current)

	out, _ = c.mustRun("config", "use", "staging")
	assert.Contains(t, out, "Using profile staging")

	out, _ = c.mustRun("config", "get", "storage.driver")
	assert.Equal(t, "memory", strings.TrimSpace(out))

	_, _, err := c.run("config", "use", "production")
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.CodeOf(err))
}

func TestMemoryProfileForgetsSession(t *testing.T) {
	c := newCLI(t)
	c.mustRun("config", "set", "storage.driver", "memory")

	c.mustRun("auth", "login", "--id", "A001", "--password", "secret")
	out, _ := c.mustRun("auth", "status")
	assert.Contains(t, out, "not logged in", "memory storage lives for one invocation")
}
