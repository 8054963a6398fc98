package core

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelOff
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string level name to LogLevel.
// Returns LevelInfo for unrecognized values.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info", "":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "off", "none":
		return LevelOff
	default:
		return LevelInfo
	}
}

// LogConfig holds logging configuration from YAML.
type LogConfig struct {
	Level string `yaml:"level,omitempty"`
	// File appends every entry to the given path. Empty disables file
	// logging.
	File       string            `yaml:"file,omitempty"`
	Components map[string]string `yaml:"components,omitempty"`
}

// LogEntry is one formatted log record delivered to sinks.
type LogEntry struct {
	Time      time.Time
	Level     LogLevel
	Component string
	Message   string
}

// LogSink receives entries that passed level filtering.
type LogSink interface {
	WriteEntry(e LogEntry)
}

// ConsoleSink writes entries to a standard library logger.
type ConsoleSink struct {
	out *log.Logger
}

// NewConsoleSink creates a sink writing to stderr with timestamps.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{out: log.New(os.Stderr, "", log.LstdFlags)}
}

func (s *ConsoleSink) WriteEntry(e LogEntry) {
	s.out.Printf("[%s] %s", e.Component, e.Message)
}

// FileSink appends formatted entries to a log file. A service run has
// no console, so the file is its only persistent trace.
type FileSink struct {
	mu sync.Mutex
	f  *os.File
}

// NewFileSink opens or creates path for appending.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &FileSink{f: f}, nil
}

func (s *FileSink) WriteEntry(e LogEntry) {
	s.mu.Lock()
	fmt.Fprintf(s.f, "%s %-5s [%s] %s\n",
		e.Time.Format("2006-01-02 15:04:05"), e.Level, e.Component, e.Message)
	s.mu.Unlock()
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// Logger provides per-component log level filtering with sink fan-out.
// Components receive it via their constructors rather than a package global,
// so tests can capture output and frontends can attach their own sinks.
type Logger struct {
	mu          sync.RWMutex
	globalLevel LogLevel
	components  map[string]LogLevel // lowercase component name → level
	sinks       []LogSink
}

// NewLogger creates a Logger from config. With no sinks given it logs
// to stderr.
func NewLogger(cfg LogConfig, sinks ...LogSink) *Logger {
	l := &Logger{
		globalLevel: ParseLevel(cfg.Level),
		components:  make(map[string]LogLevel, len(cfg.Components)),
		sinks:       sinks,
	}
	for name, level := range cfg.Components {
		l.components[strings.ToLower(name)] = ParseLevel(level)
	}
	if len(l.sinks) == 0 {
		l.sinks = []LogSink{NewConsoleSink()}
	}
	return l
}

// AddSink attaches an additional sink at runtime.
func (l *Logger) AddSink(s LogSink) {
	l.mu.Lock()
	l.sinks = append(l.sinks, s)
	l.mu.Unlock()
}

// levelFor returns the effective log level for a component tag.
func (l *Logger) levelFor(tag string) LogLevel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if lvl, ok := l.components[strings.ToLower(tag)]; ok {
		return lvl
	}
	return l.globalLevel
}

func (l *Logger) emit(level LogLevel, tag, format string, args ...any) {
	if l.levelFor(tag) > level {
		return
	}
	e := LogEntry{
		Time:      time.Now(),
		Level:     level,
		Component: tag,
		Message:   fmt.Sprintf(format, args...),
	}
	l.mu.RLock()
	sinks := l.sinks
	l.mu.RUnlock()
	for _, s := range sinks {
		s.WriteEntry(e)
	}
}

// Debugf logs at debug level.
func (l *Logger) Debugf(tag, format string, args ...any) {
	l.emit(LevelDebug, tag, format, args...)
}

// Infof logs at info level.
func (l *Logger) Infof(tag, format string, args ...any) {
	l.emit(LevelInfo, tag, format, args...)
}

// Warnf logs at warn level.
func (l *Logger) Warnf(tag, format string, args ...any) {
	l.emit(LevelWarn, tag, format, args...)
}

// Errorf logs at error level.
func (l *Logger) Errorf(tag, format string, args ...any) {
	l.emit(LevelError, tag, format, args...)
}

// Fatalf always logs and calls os.Exit(1).
func (l *Logger) Fatalf(tag, format string, args ...any) {
	e := LogEntry{
		Time:      time.Now(),
		Level:     LevelError,
		Component: tag,
		Message:   fmt.Sprintf(format, args...),
	}
	l.mu.RLock()
	sinks := l.sinks
	l.mu.RUnlock()
	for _, s := range sinks {
		s.WriteEntry(e)
	}
	os.Exit(1)
}
