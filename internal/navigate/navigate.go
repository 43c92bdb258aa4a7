// Package navigate moves the client to a landing destination after session
// transitions (login entry point, role dashboards).
package navigate

import (
	"fmt"
	"io"
	"sync"
)

// LoginPath is the entry point shown to unauthenticated users.
const LoginPath = "/"

// Navigator performs navigation.
type Navigator interface {
	// Navigate moves to path, keeping in-memory state.
	Navigate(path string)

	// Reset moves to path and discards every piece of in-memory state, the
	// equivalent of a full page load.
	Reset(path string)
}

// ResetFunc is invoked by a Printer on Reset so that owners of in-memory
// state (session store, fetch cache) can drop it.
type ResetFunc func()

// Printer reports destinations on a writer; it is the terminal client's
// navigator.
type Printer struct {
	mu      sync.Mutex
	out     io.Writer
	onReset []ResetFunc
	last    string
}

// NewPrinter creates a Printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// OnReset registers fn to run on every Reset.
func (p *Printer) OnReset(fn ResetFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onReset = append(p.onReset, fn)
}

// Navigate prints the destination.
func (p *Printer) Navigate(path string) {
	p.mu.Lock()
	p.last = path
	p.mu.Unlock()
	fmt.Fprintf(p.out, "→ %s\n", path)
}

// Reset drops in-memory state and prints the destination.
func (p *Printer) Reset(path string) {
	p.mu.Lock()
	hooks := append([]ResetFunc(nil), p.onReset...)
	p.last = path
	p.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	fmt.Fprintf(p.out, "→ %s\n", path)
}

// Last returns the most recent destination.
func (p *Printer) Last() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Visit is a recorded navigation.
type Visit struct {
	Path string
	Full bool
}

// Recorder records navigations for tests.
type Recorder struct {
	mu     sync.Mutex
	visits []Visit
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Navigate records a client-side navigation.
func (r *Recorder) Navigate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visits = append(r.visits, Visit{Path: path})
}

// Reset records a full navigation.
func (r *Recorder) Reset(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visits = append(r.visits, Visit{Path: path, Full: true})
}

// Visits returns a copy of every recorded navigation.
func (r *Recorder) Visits() []Visit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Visit(nil), r.visits...)
}

// Last returns the last navigation and whether any happened.
func (r *Recorder) Last() (Visit, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.visits) == 0 {
		return Visit{}, false
	}
	return r.visits[len(r.visits)-1], true
}
