// Package logging wires spec.md's LoggingConfig schema (level/format/
// output, carried over from the teacher's
// internal/infrastructure/config/logging.go; log rotation is not
// implemented) to an actual structured logger, using logrus as adopted
// from the inference-sim reference repo.
package logging

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// Config mirrors the teacher's LoggingConfig shape.
type Config struct {
	Level             string
	Format            string // "json" or "text"
	Output            string // "stdout", "stderr", or "file"
	FilePath          string
	IncludeCaller     bool
}

// RingSink is a logrus.Hook that appends formatted entries to a bounded
// ring buffer, trimmed to half capacity on overflow per spec.md §6's
// log-trim rule, so the output log document can embed recent log lines.
type RingSink struct {
	cap     int
	entries []string
}

// NewRingSink builds a sink bounded at capacity entries.
func NewRingSink(capacity int) *RingSink {
	return &RingSink{cap: capacity}
}

func (s *RingSink) Levels() []log.Level { return log.AllLevels }

func (s *RingSink) Fire(e *log.Entry) error {
	line, err := e.String()
	if err != nil {
		line = e.Message
	}
	s.entries = append(s.entries, line)
	if len(s.entries) > s.cap {
		keep := s.cap / 2
		s.entries = append([]string(nil), s.entries[len(s.entries)-keep:]...)
	}
	return nil
}

// Lines returns a copy of the currently buffered log lines.
func (s *RingSink) Lines() []string {
	return append([]string(nil), s.entries...)
}

// New builds a configured logrus logger plus its attached ring sink.
func New(cfg Config) (*log.Logger, *RingSink, error) {
	logger := log.New()

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	logger.SetReportCaller(cfg.IncludeCaller)

	var out io.Writer
	switch cfg.Output {
	case "file":
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, err
		}
		out = f
	case "stderr":
		out = os.Stderr
	default:
		out = os.Stdout
	}
	logger.SetOutput(out)

	ring := NewRingSink(5000)
	logger.AddHook(ring)

	return logger, ring, nil
}
