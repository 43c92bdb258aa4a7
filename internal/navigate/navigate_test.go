package navigate

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	resets := 0
	p.OnReset(func() { resets++ })

	p.Navigate("/teacher/dashboard")
	assert.Equal(t, 0, resets)
	assert.Equal(t, "/teacher/dashboard", p.Last())

	p.Reset(LoginPath)
	assert.Equal(t, 1, resets)
	assert.Equal(t, "/", p.Last())
	assert.Equal(t, "→ /teacher/dashboard\n→ /\n", buf.String())
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	_, ok := r.Last()
	assert.False(t, ok)

	r.Navigate("/bursar/dashboard")
	r.Reset("/")

	assert.Equal(t, []Visit{{Path: "/bursar/dashboard"}, {Path: "/", Full: true}}, r.Visits())
	last, ok := r.Last()
	assert.True(t, ok)
	assert.True(t, last.Full)
}

var _ Navigator = (*Printer)(nil)
var _ Navigator = (*Recorder)(nil)
