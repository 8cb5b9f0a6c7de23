package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log levels
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

var levelRank = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// Config holds logging-related configuration
type Config struct {
	Level      string // debug, info, warn, error
	File       string // optional path to a rotated log file
	MaxSize    int    // MB
	MaxBackups int
	MaxAge     int // days
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, ok := levelRank[strings.ToLower(c.Level)]; !ok {
		return fmt.Errorf("invalid log level: %s", c.Level)
	}
	if c.File != "" && c.MaxSize <= 0 {
		return fmt.Errorf("max_size must be positive")
	}
	if c.MaxBackups < 0 {
		return fmt.Errorf("max_backups must be non-negative")
	}
	if c.MaxAge < 0 {
		return fmt.Errorf("max_age must be non-negative")
	}
	return nil
}

type Logger struct {
	*log.Logger
	level  int
	writer *lumberjack.Logger
}

// NewLogger writes to stdout and, when config.File is set, to a rotating file.
func NewLogger(config *Config) (*Logger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var out io.Writer = os.Stdout
	var writer *lumberjack.Logger

	if config.File != "" {
		if err := os.MkdirAll(filepath.Dir(config.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		writer = &lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   true,
		}
		out = io.MultiWriter(writer, os.Stdout)
	}

	return &Logger{
		Logger: log.New(out, "", log.LstdFlags),
		level:  levelRank[strings.ToLower(config.Level)],
		writer: writer,
	}, nil
}

// New returns a logger writing to w at the given level. Unknown levels mean info.
func New(w io.Writer, level string) *Logger {
	rank, ok := levelRank[strings.ToLower(level)]
	if !ok {
		rank = levelRank[LevelInfo]
	}
	return &Logger{
		Logger: log.New(w, "", log.LstdFlags),
		level:  rank,
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, LevelError)
}

func (l *Logger) Close() error {
	if l.writer == nil {
		return nil
	}
	return l.writer.Close()
}

func (l *Logger) logf(level, prefix, format string, v ...interface{}) {
	if levelRank[level] < l.level {
		return
	}
	l.Printf(prefix+" "+format, v...)
}

func (l *Logger) Debug(format string, v ...interface{}) {
	l.logf(LevelDebug, "[DEBUG]", format, v...)
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.logf(LevelInfo, "[INFO]", format, v...)
}

func (l *Logger) Warn(format string, v ...interface{}) {
	l.logf(LevelWarn, "[WARN]", format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.logf(LevelError, "[ERROR]", format, v...)
}
