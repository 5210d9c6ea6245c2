package editor

import (
	"strings"
	"sync"

	bubble_tea "github.com/charmbracelet/bubbletea"
)

const logBacklog = 256

type logLineMsg struct {
	line string
}

// LogSink is an io.Writer for logger.SetOutput that feeds the log panel.
// Lines are dropped when the panel falls too far behind.
type LogSink struct {
	mu      sync.Mutex
	partial string
	lines   chan string
}

func NewLogSink() *LogSink {
	return &LogSink{lines: make(chan string, logBacklog)}
}

func (s *LogSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text := s.partial + string(p)
	parts := strings.Split(text, "\n")
	s.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		select {
		case s.lines <- line:
		default:
		}
	}
	return len(p), nil
}

// next waits for the following line. Update re-arms it after every line.
func (s *LogSink) next() bubble_tea.Cmd {
	return func() bubble_tea.Msg {
		return logLineMsg{line: <-s.lines}
	}
}
