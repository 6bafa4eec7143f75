// Package logging provides subsystem loggers sharing one backend.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/decred/slog"
)

// Subsystem tags.
const (
	SubsystemServer     = "SRVR"
	SubsystemPayment    = "PAYM"
	SubsystemSession    = "SESS"
	SubsystemScore      = "SCOR"
	SubsystemSettlement = "STLM"
	SubsystemScheduler  = "SCHD"
	SubsystemRPC        = "RPC"
)

// LogConfig configures a LogBackend.
type LogConfig struct {
	// Writer defaults to stdout.
	Writer io.Writer
	// Level is one of trace, debug, info, warn, error, critical, off.
	Level string
}

// LogBackend hands out subsystem loggers at a shared level.
type LogBackend struct {
	backend *slog.Backend
	level   slog.Level

	mu      sync.Mutex
	loggers map[string]slog.Logger
}

// ParseLevel converts a level name. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	level, ok := slog.LevelFromString(strings.ToLower(strings.TrimSpace(s)))
	if !ok {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// NewLogBackend creates a new LogBackend.
func NewLogBackend(cfg LogConfig) (*LogBackend, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	return &LogBackend{
		backend: slog.NewBackend(w),
		level:   level,
		loggers: make(map[string]slog.Logger),
	}, nil
}

// Logger returns the logger of a subsystem, creating it on first use.
func (b *LogBackend) Logger(subsystem string) slog.Logger {
	b.mu.Lock()
	defer b.mu.Unlock()

	if l, ok := b.loggers[subsystem]; ok {
		return l
	}
	l := b.backend.Logger(subsystem)
	l.SetLevel(b.level)
	b.loggers[subsystem] = l
	return l
}

// SetLevel changes the level of every logger created so far and of later ones.
func (b *LogBackend) SetLevel(level slog.Level) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.level = level
	for _, l := range b.loggers {
		l.SetLevel(level)
	}
}
