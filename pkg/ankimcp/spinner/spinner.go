// Package spinner renders a progress indicator on a terminal while a
// blocking operation runs. It shares no state with the work it decorates.
package spinner

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
	"k8s.io/utils/clock"
)

const defaultInterval = 100 * time.Millisecond

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner redraws a single line until Stop is called. Stop is safe to call
// more than once and before Start.
type Spinner struct {
	w        io.Writer
	message  string
	interval time.Duration
	clock    clock.WithTicker
	enabled  bool

	mu      sync.Mutex
	started bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

type Option func(*Spinner)

func WithClock(clk clock.WithTicker) Option {
	return func(s *Spinner) {
		s.clock = clk
	}
}

func WithInterval(d time.Duration) Option {
	return func(s *Spinner) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithEnabled overrides terminal detection.
func WithEnabled(enabled bool) Option {
	return func(s *Spinner) {
		s.enabled = enabled
	}
}

// New returns a spinner writing to w. It only draws when w is a terminal.
func New(w io.Writer, message string, opts ...Option) *Spinner {
	s := &Spinner{
		w:        w,
		message:  message,
		interval: defaultInterval,
		clock:    clock.RealClock{},
		enabled:  isTerminal(w),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Start draws the first frame and begins ticking in the background.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled || s.started || s.stopped {
		return
	}
	s.started = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.draw(0)

	ticker := s.clock.NewTicker(s.interval)
	go func() {
		defer close(s.done)
		defer ticker.Stop()
		for i := 1; ; i++ {
			select {
			case <-s.stop:
				return
			case <-ticker.C():
				s.draw(i)
			}
		}
	}()
}

// Stop halts the ticker, waits for the last redraw and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	s.mu.Unlock()
	if !started {
		return
	}
	close(s.stop)
	<-s.done
	_, _ = fmt.Fprint(s.w, "\r\033[K")
}

func (s *Spinner) draw(i int) {
	_, _ = fmt.Fprintf(s.w, "\r%s %s", frames[i%len(frames)], s.message)
}
