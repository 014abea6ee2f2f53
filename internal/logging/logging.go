// Package logging builds the process logger: a rotating file, optionally tee'd
// to stderr and to the dashboard log pane.
package logging

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 28
)

// Options mirror the log.* configuration keys.
type Options struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Stderr     bool
}

// DefaultFile is ~/.trainerctl/trainerctl.log.
func DefaultFile() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".trainerctl", "trainerctl.log")
}

// New returns a logger writing to the rotating file in opts plus any extra
// writers. Close the returned closer on exit to flush the file.
func New(opts Options, extra ...io.Writer) (*log.Logger, io.Closer) {
	if opts.File == "" {
		opts.File = DefaultFile()
	}
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = DefaultMaxSizeMB
	}
	rotating := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}

	writers := []io.Writer{rotating}
	if opts.Stderr {
		writers = append(writers, os.Stderr)
	}
	for _, w := range extra {
		if w != nil {
			writers = append(writers, w)
		}
	}
	return log.New(io.MultiWriter(writers...), "", log.LstdFlags|log.Lmicroseconds), rotating
}

// LineWriter forwards complete log lines to a channel. Lines are dropped when
// the channel is full so a stalled reader never blocks logging.
type LineWriter struct {
	mu      sync.Mutex
	pending []byte
	lines   chan<- string
}

func NewLineWriter(lines chan<- string) *LineWriter {
	if lines == nil {
		panic("LineWriter: lines channel cannot be nil")
	}
	return &LineWriter{lines: lines}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		line := string(w.pending[:i+1])
		w.pending = w.pending[i+1:]
		select {
		case w.lines <- line:
		default:
		}
	}
	return len(p), nil
}
