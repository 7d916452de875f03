package logging

import (
	"io"
	"log"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

const maxLogSize = 2 * 1024 * 1024 // 2MB

type Logger = zerolog.Logger

type RotatingWriter struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	size    int64
	maxSize int64
}

// Setup opens the rotating log file and returns a logger writing to both
// stdout and the file. The std log package is redirected into the same logger.
func Setup(logPath, level string) (Logger, *RotatingWriter, error) {
	rw, err := OpenRotating(logPath, maxLogSize)
	if err != nil {
		logger := New(os.Stdout, level)
		log.SetFlags(0)
		log.SetOutput(logger)
		return logger, nil, err
	}

	logger := New(io.MultiWriter(os.Stdout, rw), level)
	log.SetFlags(0)
	log.SetOutput(logger)
	return logger, rw, nil
}

func New(w io.Writer, level string) Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func Nop() Logger {
	return zerolog.Nop()
}

func OpenRotating(logPath string, maxSize int64) (*RotatingWriter, error) {
	// Truncate if too large on startup
	if info, err := os.Stat(logPath); err == nil && info.Size() > maxSize {
		os.Truncate(logPath, 0)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	info, _ := f.Stat()
	size := int64(0)
	if info != nil {
		size = info.Size()
	}

	return &RotatingWriter{
		file:    f,
		path:    logPath,
		size:    size,
		maxSize: maxSize,
	}, nil
}

func (w *RotatingWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err = w.file.Write(p)
	w.size += int64(n)

	if w.size > w.maxSize {
		w.rotate()
	}

	return n, err
}

func (w *RotatingWriter) rotate() {
	w.file.Close()

	// Keep one backup
	os.Rename(w.path, w.path+".1")

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return
	}

	w.file = f
	w.size = 0
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
