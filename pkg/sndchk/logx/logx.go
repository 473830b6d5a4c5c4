// Package logx is the engine's leveled logger. It is adapted from the
// teacher's pkg/logger: a small mutex-guarded writer with colorized level
// tags, extended with structured fields so log lines from the CPU pool and
// the three service dispatchers can be told apart (§5 concurrency model).
package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// Level is the logger's verbosity threshold.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	FATAL
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
)

// Logger is a concurrency-safe, leveled, field-annotated writer.
type Logger struct {
	mu         sync.Mutex
	out        io.Writer
	level      Level
	colorize   bool
	timeFormat string
}

// Config configures a Logger. Output defaults to os.Stdout; Colorize
// defaults to true only when Output is a terminal (via go-isatty).
type Config struct {
	Level      Level
	Output     io.Writer
	Colorize   *bool // nil => auto-detect via isatty
	TimeFormat string
}

func DefaultConfig() Config {
	return Config{
		Level:      INFO,
		Output:     os.Stdout,
		TimeFormat: "2006-01-02 15:04:05",
	}
}

func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = "2006-01-02 15:04:05"
	}
	colorize := false
	if cfg.Colorize != nil {
		colorize = *cfg.Colorize
	} else if f, ok := cfg.Output.(*os.File); ok {
		colorize = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Logger{
		out:        cfg.Output,
		level:      cfg.Level,
		colorize:   colorize,
		timeFormat: cfg.TimeFormat,
	}
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Get returns the process-wide default logger, honoring LOG_LEVEL.
func Get() *Logger {
	once.Do(func() {
		cfg := DefaultConfig()
		switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
		case "DEBUG":
			cfg.Level = DEBUG
		case "WARN":
			cfg.Level = WARN
		case "FATAL":
			cfg.Level = FATAL
		}
		defaultLogger = New(cfg)
	})
	return defaultLogger
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Fields is free-form structured context attached to a log line, e.g.
// service="accuraterip" release="abc-123" stream=2.
type Fields map[string]any

// With returns a scoped logger that prefixes every line with fields.
func (l *Logger) With(fields Fields) *Scoped {
	return &Scoped{l: l, fields: fields}
}

func (l *Logger) log(level Level, fields Fields, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	var b strings.Builder
	b.WriteString(time.Now().Format(l.timeFormat))
	b.WriteByte(' ')
	levelStr := "[" + level.String() + "]"
	if l.colorize {
		switch level {
		case DEBUG:
			levelStr = colorGray + levelStr + colorReset
		case INFO:
			levelStr = colorBlue + levelStr + colorReset
		case WARN:
			levelStr = colorYellow + levelStr + colorReset
		case FATAL:
			levelStr = colorRed + levelStr + colorReset
		}
	}
	b.WriteString(levelStr)
	for _, k := range sortedKeys(fields) {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	b.WriteByte(' ')
	if len(args) > 0 {
		fmt.Fprintf(&b, msg, args...)
	} else {
		b.WriteString(msg)
	}
	fmt.Fprintln(l.out, b.String())
	if level == FATAL {
		os.Exit(1)
	}
}

func sortedKeys(f Fields) []string {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	// stable, deterministic order without importing sort for one call site
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

func (l *Logger) Debugf(format string, args ...any) { l.log(DEBUG, nil, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(INFO, nil, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(WARN, nil, format, args...) }
func (l *Logger) Fatalf(format string, args ...any) { l.log(FATAL, nil, format, args...) }

// Scoped is a Logger bound to a fixed set of Fields.
type Scoped struct {
	l      *Logger
	fields Fields
}

func (s *Scoped) Debugf(format string, args ...any) { s.l.log(DEBUG, s.fields, format, args...) }
func (s *Scoped) Infof(format string, args ...any)  { s.l.log(INFO, s.fields, format, args...) }
func (s *Scoped) Warnf(format string, args ...any)  { s.l.log(WARN, s.fields, format, args...) }
func (s *Scoped) Fatalf(format string, args ...any) { s.l.log(FATAL, s.fields, format, args...) }

// WithField returns a new Scoped with one more field merged in.
func (s *Scoped) WithField(key string, value any) *Scoped {
	merged := make(Fields, len(s.fields)+1)
	for k, v := range s.fields {
		merged[k] = v
	}
	merged[key] = value
	return &Scoped{l: s.l, fields: merged}
}
