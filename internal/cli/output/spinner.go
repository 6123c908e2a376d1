package output

import (
	"fmt"
	"io"
	"sync"
	"time"
)

const spinnerInterval = 100 * time.Millisecond

// Spinner animates a message while a command waits.
type Spinner struct {
	w       io.Writer
	message string
	frames  []string

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// NewSpinner creates a spinner. Nothing is drawn until Start.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:       w,
		message: message,
		frames:  []string{"|", "/", "-", "\\"},
		done:    make(chan struct{}),
	}
}

// Start draws frames until Stop, Success or Fail.
func (s *Spinner) Start() {
	go func() {
		ticker := time.NewTicker(spinnerInterval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			s.mu.Lock()
			if !s.stopped {
				fmt.Fprintf(s.w, "\r%s %s", s.frames[i%len(s.frames)], s.message)
			}
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop clears the line.
func (s *Spinner) Stop() {
	s.finish("\r\033[K")
}

// Success replaces the spinner with a final message.
func (s *Spinner) Success(message string) {
	s.finish("\rok " + message + "\n")
}

// Fail replaces the spinner with a failure message.
func (s *Spinner) Fail(message string) {
	s.finish("\rfailed " + message + "\n")
}

func (s *Spinner) finish(final string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.done)
	fmt.Fprint(s.w, final)
	s.mu.Unlock()
}
