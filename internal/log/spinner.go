package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Spinner shows a spinner on stderr while a slow step such as package
// loading runs. It draws nothing when stderr is not a terminal.
type Spinner struct {
	mu      sync.Mutex
	message string
	frames  []string
	writer  io.Writer
	enabled bool
	stop    chan struct{}
	done    chan struct{}
}

// NewSpinner creates a stopped spinner.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message: message,
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		writer:  os.Stderr,
		enabled: IsTTY(),
	}
}

// Start begins the animation.
func (s *Spinner) Start() {
	if !s.enabled {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.animate()
}

// Stop ends the animation and clears the line.
func (s *Spinner) Stop() {
	if !s.enabled || s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	fmt.Fprint(s.writer, "\r\033[K")
	s.stop = nil
}

// Message updates the spinner text.
func (s *Spinner) Message(msg string) {
	s.mu.Lock()
	s.message = msg
	s.mu.Unlock()
}

func (s *Spinner) animate() {
	defer close(s.done)
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-ticker.C:
			s.mu.Lock()
			fmt.Fprintf(s.writer, "\r\033[36m%s\033[0m %s", s.frames[i%len(s.frames)], s.message)
			s.mu.Unlock()
		case <-s.stop:
			return
		}
	}
}
