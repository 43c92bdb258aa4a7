package notify

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/felixgeelhaar/schoolctl/internal/tui"
)

func TestTerminalPlain(t *testing.T) {
	var buf bytes.Buffer
	n := NewTerminal(&buf, tui.PlainStyles(), false)

	n.Success("Logged in")
	n.Error("Class is full")
	n.Info("Choose a role")
	done := n.Loading("Setting up 2024/2025...")
	done()

	assert.Equal(t,
		"✓ Logged in\n✗ Class is full\n• Choose a role\n… Setting up 2024/2025...\n",
		buf.String())
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()

	r.Error("Session expired. Please log in again.")
	done := r.Loading("Setting up")
	assert.Equal(t, 1, r.Pending())
	done()
	done()
	assert.Equal(t, 0, r.Pending())
	r.Success("Switched")

	assert.Len(t, r.All(), 3)
	assert.Equal(t, []string{"Session expired. Please log in again."}, r.OfKind(KindError))
	assert.Equal(t, []string{"Switched"}, r.OfKind(KindSuccess))

	r.Reset()
	assert.Empty(t, r.All())
}

var _ Notifier = (*Terminal)(nil)
var _ Notifier = (*Recorder)(nil)
