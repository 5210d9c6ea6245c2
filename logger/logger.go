package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	lipgloss "github.com/charmbracelet/lipgloss"
)

type Level int

const (
	LevelNone Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

var (
	mu           sync.Mutex
	level        = LevelNone
	colorEnabled = true
	outWriter    io.Writer // nil = os.Stdout / os.Stderr per-level
	errWriter    io.Writer // nil = os.Stderr
)

var (
	styleTrace = lipgloss.NewStyle().Foreground(lipgloss.Color("#8b949e"))
	styleDebug = lipgloss.NewStyle().Foreground(lipgloss.Color("#56d7c2"))
	styleInfo  = lipgloss.NewStyle().Foreground(lipgloss.Color("#3fb950"))
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("#d29922"))
	styleError = lipgloss.NewStyle().Foreground(lipgloss.Color("#f85149"))
)

// Palette carries the colours used for the level tags.
type Palette struct {
	Trace lipgloss.TerminalColor
	Debug lipgloss.TerminalColor
	Info  lipgloss.TerminalColor
	Warn  lipgloss.TerminalColor
	Error lipgloss.TerminalColor
}

// SetPalette restyles the level tags. Called when the editor applies a theme.
func SetPalette(p Palette) {
	mu.Lock()
	defer mu.Unlock()
	styleTrace = lipgloss.NewStyle().Foreground(p.Trace)
	styleDebug = lipgloss.NewStyle().Foreground(p.Debug)
	styleInfo = lipgloss.NewStyle().Foreground(p.Info)
	styleWarn = lipgloss.NewStyle().Foreground(p.Warn)
	styleError = lipgloss.NewStyle().Foreground(p.Error)
}

// SetOutput sends every level to w. A nil writer restores stdout/stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	outWriter = w
	errWriter = w
}

func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

func SetColor(f bool) {
	mu.Lock()
	defer mu.Unlock()
	colorEnabled = f
}

func GetLevel() Level {
	mu.Lock()
	defer mu.Unlock()
	return level
}

func ParseLevel(levelStr string) Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "none", "off":
		return LevelNone
	case "error", "err":
		return LevelError
	case "", "warn", "warning":
		return LevelWarn
	case "info":
		return LevelInfo
	case "debug", "dbg":
		return LevelDebug
	case "trace", "trc":
		return LevelTrace
	default:
		return LevelWarn
	}
}

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// write must be called with mu held.
func write(stderr bool, tag string, style lipgloss.Style, format string, v []interface{}) {
	msg := fmt.Sprintf(format, v...)
	w := outWriter
	if stderr {
		w = errWriter
	}
	redirected := w != nil
	if w == nil {
		if stderr {
			w = os.Stderr
		} else {
			w = os.Stdout
		}
	}
	// A redirected writer receives plain text; the receiver does its own styling.
	if colorEnabled && !redirected {
		fmt.Fprintf(w, "%s %s\n", style.Render(tag), msg)
		return
	}
	fmt.Fprintf(w, "%s %s\n", tag, msg)
}

func Trace(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if level >= LevelTrace {
		write(false, "[TRACE]", styleTrace, format, v)
	}
}

func Debug(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if level >= LevelDebug {
		write(false, "[DEBUG]", styleDebug, format, v)
	}
}

func Info(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if level >= LevelInfo {
		write(false, "[INFO]", styleInfo, format, v)
	}
}

func Warn(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if level >= LevelWarn {
		write(true, "[WARN]", styleWarn, format, v)
	}
}

func Error(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if level >= LevelError {
		write(true, "[ERROR]", styleError, format, v)
	}
}

// Fatal always prints to stderr and exits, regardless of the current log level.
func Fatal(format string, v ...interface{}) {
	mu.Lock()
	write(true, "[FATAL]", styleError, format, v)
	mu.Unlock()
	os.Exit(1)
}
