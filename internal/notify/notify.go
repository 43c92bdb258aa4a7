// Package notify is the user-visible notification channel: short,
// transient, toast-like messages written to stderr.
package notify

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/felixgeelhaar/schoolctl/internal/tui"
)

// Notifier surfaces transient messages to the user.
type Notifier interface {
	Success(message string)
	Error(message string)
	Info(message string)
	// Loading shows a message until the returned function is called.
	Loading(message string) (done func())
}

// Terminal writes notifications to a terminal or a plain stream.
type Terminal struct {
	mu       sync.Mutex
	out      io.Writer
	styles   tui.Styles
	animated bool
}

// NewTerminal creates a notifier writing to out. Spinners are only used when
// animated is true.
func NewTerminal(out io.Writer, styles tui.Styles, animated bool) *Terminal {
	return &Terminal{out: out, styles: styles, animated: animated}
}

// Stderr creates the default notifier, detecting colour and terminal support.
func Stderr() *Terminal {
	styles := tui.DefaultStyles()
	animated := tui.StderrIsTerminal()
	if !animated || os.Getenv("NO_COLOR") != "" {
		styles = tui.PlainStyles()
	}
	return NewTerminal(os.Stderr, styles, animated)
}

// Success prints a success notification.
func (t *Terminal) Success(message string) {
	t.write(t.styles.Success.Render("✓"), message)
}

// Error prints an error notification.
func (t *Terminal) Error(message string) {
	t.write(t.styles.Error.Render("✗"), message)
}

// Info prints an informational notification.
func (t *Terminal) Info(message string) {
	t.write(t.styles.Info.Render("•"), message)
}

// Loading shows a spinner on terminals and a single line elsewhere.
func (t *Terminal) Loading(message string) func() {
	if !t.animated {
		t.write(t.styles.Muted.Render("…"), message)
		return func() {}
	}
	return tui.StartSpinner(t.out, message, t.styles)
}

func (t *Terminal) write(icon, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "%s %s\n", icon, message)
}

// Kind classifies a recorded notification.
type Kind string

// Notification kinds.
const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
	KindLoading Kind = "loading"
)

// Notification is a single recorded message.
type Notification struct {
	Kind    Kind
	Message string
}

// Recorder captures notifications in memory. Tests use it to assert what the
// user would have seen.
type Recorder struct {
	mu      sync.Mutex
	entries []Notification
	pending int
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Success records a success notification.
func (r *Recorder) Success(message string) { r.add(KindSuccess, message) }

// Error records an error notification.
func (r *Recorder) Error(message string) { r.add(KindError, message) }

// Info records an informational notification.
func (r *Recorder) Info(message string) { r.add(KindInfo, message) }

// Loading records a loading notification and tracks whether it was dismissed.
func (r *Recorder) Loading(message string) func() {
	r.add(KindLoading, message)
	r.mu.Lock()
	r.pending++
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.pending--
			r.mu.Unlock()
		})
	}
}

func (r *Recorder) add(kind Kind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Notification{Kind: kind, Message: message})
}

// All returns a copy of every recorded notification.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.entries...)
}

// OfKind returns the recorded messages of one kind.
func (r *Recorder) OfKind(kind Kind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.entries {
		if n.Kind == kind {
			out = append(out, n.Message)
		}
	}
	return out
}

// Pending returns the number of loading notifications not yet dismissed.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

// Reset forgets every recorded notification.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
	r.pending = 0
}
