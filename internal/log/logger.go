// Package log is a small leveled logger. Lines go to stderr as
// "[timestamp] LEVEL: message key=value ..." or, when enabled, as JSON
// objects. Loggers derived with With share their parent's output and
// settings and prepend their own fields.
package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity levels
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < DebugLevel || l > ErrorLevel {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel converts a level name such as "debug" or "WARN" to a Level.
// The empty string means InfoLevel.
func ParseLevel(s string) (Level, error) {
	switch name := strings.ToUpper(strings.TrimSpace(s)); name {
	case "":
		return InfoLevel, nil
	case "WARNING":
		return WarnLevel, nil
	default:
		for i, n := range levelNames {
			if n == name {
				return Level(i), nil
			}
		}
		return InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger is what the analysis code logs through. Args are alternating
// keys and values.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	With(args ...interface{}) Logger
}

// Options configures a new logger.
type Options struct {
	Level Level
	JSON  bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

// sink is the state shared by a logger and everything derived from it.
type sink struct {
	mu     sync.Mutex
	level  Level
	json   bool
	w      io.Writer
	colors bool
	now    func() time.Time
}

// DefaultLogger is the Logger implementation.
type DefaultLogger struct {
	sink   *sink
	fields []interface{}
}

var (
	defaultLogger *DefaultLogger
	once          sync.Once
)

// New creates a logger.
func New(opts Options) *DefaultLogger {
	w := opts.Output
	if w == nil {
		w = os.Stderr
	}
	return &DefaultLogger{sink: &sink{
		level:  opts.Level,
		json:   opts.JSON,
		w:      w,
		colors: isTerminal(w),
		now:    time.Now,
	}}
}

// Default returns the process-wide logger. Commands reconfigure it from
// flags and config before running.
func Default() *DefaultLogger {
	once.Do(func() {
		defaultLogger = New(Options{Level: InfoLevel})
	})
	return defaultLogger
}

// isTerminal reports whether w is a character device with colors allowed.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || os.Getenv("NO_COLOR") != "" {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// IsTTY reports whether stderr is a terminal.
func IsTTY() bool {
	return isTerminal(os.Stderr)
}

// With returns a logger that adds args to every line.
func (l *DefaultLogger) With(args ...interface{}) Logger {
	fields := make([]interface{}, 0, len(l.fields)+len(args))
	fields = append(fields, l.fields...)
	return &DefaultLogger{sink: l.sink, fields: append(fields, args...)}
}

// SetLevel sets the minimum level for this logger and all loggers sharing
// its output.
func (l *DefaultLogger) SetLevel(level Level) {
	l.sink.mu.Lock()
	l.sink.level = level
	l.sink.mu.Unlock()
}

// SetJSONOutput switches between text and JSON lines.
func (l *DefaultLogger) SetJSONOutput(enabled bool) {
	l.sink.mu.Lock()
	l.sink.json = enabled
	l.sink.mu.Unlock()
}

func (l *DefaultLogger) Debug(msg string, args ...interface{}) { l.log(DebugLevel, msg, args) }
func (l *DefaultLogger) Info(msg string, args ...interface{})  { l.log(InfoLevel, msg, args) }
func (l *DefaultLogger) Warn(msg string, args ...interface{})  { l.log(WarnLevel, msg, args) }
func (l *DefaultLogger) Error(msg string, args ...interface{}) { l.log(ErrorLevel, msg, args) }

func (l *DefaultLogger) log(level Level, msg string, args []interface{}) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	if level < s.level {
		return
	}

	if len(l.fields) > 0 {
		args = append(append([]interface{}{}, l.fields...), args...)
	}
	timestamp := s.now().Format("2006-01-02 15:04:05")

	if s.json {
		entry := map[string]interface{}{}
		for _, kv := range pairs(args) {
			entry[kv.key] = kv.value
		}
		entry["timestamp"] = timestamp
		entry["level"] = level.String()
		entry["message"] = msg
		data, err := json.Marshal(entry)
		if err != nil {
			data, _ = json.Marshal(map[string]string{"level": level.String(), "message": msg, "error": err.Error()})
		}
		fmt.Fprintln(s.w, string(data))
		return
	}

	text := formatMessage(msg, args...)
	if s.colors {
		text = levelColor(level) + text + "\033[0m"
	}
	fmt.Fprintf(s.w, "[%s] %s: %s\n", timestamp, level, text)
}

type pair struct {
	key   string
	value interface{}
}

// pairs reads alternating keys and values. An odd leading value gets the
// key "msg"; pairs with a non-string key are dropped; errors become their
// message.
func pairs(args []interface{}) []pair {
	var out []pair
	if len(args)%2 != 0 {
		out = append(out, pair{"msg", args[0]})
		args = args[1:]
	}
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		v := args[i+1]
		if err, isErr := v.(error); isErr {
			v = err.Error()
		}
		out = append(out, pair{key, v})
	}
	return out
}

// formatMessage renders args after msg as key=value.
func formatMessage(msg string, args ...interface{}) string {
	var sb strings.Builder
	sb.WriteString(msg)
	for i, kv := range pairs(args) {
		if i == 0 && kv.key == "msg" && len(args)%2 != 0 {
			fmt.Fprintf(&sb, " %v", kv.value)
			continue
		}
		fmt.Fprintf(&sb, " %s=%v", kv.key, kv.value)
	}
	return sb.String()
}

func levelColor(level Level) string {
	switch level {
	case DebugLevel:
		return "\033[36m"
	case InfoLevel:
		return "\033[32m"
	case WarnLevel:
		return "\033[33m"
	case ErrorLevel:
		return "\033[31m"
	}
	return ""
}
