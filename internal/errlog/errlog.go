// Package errlog keeps a local file of errors for later inspection.
package errlog

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// MaxSize caps the file; the write that would exceed it starts a new file.
const MaxSize = 5 << 20

// File is an append-only log file truncated to zero when full.
type File struct {
	path string
	max  int64

	mu sync.Mutex
	f  *os.File
}

func Open(path string, max int64) (*File, error) {
	if max <= 0 {
		max = MaxSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &File{path: path, max: max, f: f}, nil
}

func (l *File) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return 0, fs.ErrClosed
	}
	st, err := l.f.Stat()
	if err != nil {
		return 0, err
	}
	if st.Size()+int64(len(p)) > l.max {
		if err := l.truncateLocked(); err != nil {
			return 0, err
		}
	}
	if int64(len(p)) <= l.max {
		return l.f.Write(p)
	}
	// a record larger than the cap is cut to fit, keeping the line break
	clipped := make([]byte, 0, l.max)
	clipped = append(clipped, p[:l.max-1]...)
	clipped = append(clipped, '\n')
	if _, err := l.f.Write(clipped); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Read returns the whole file.
func (l *File) Read() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return b, err
}

func (l *File) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.truncateLocked()
}

func (l *File) truncateLocked() error {
	if l.f == nil {
		return fs.ErrClosed
	}
	if err := l.f.Truncate(0); err != nil {
		return err
	}
	_, err := l.f.Seek(0, io.SeekStart)
	return err
}

func (l *File) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// Tee sends every record to primary and records at or above level to
// secondary as well.
type Tee struct {
	primary   slog.Handler
	secondary slog.Handler
	level     slog.Level
}

func NewTee(primary, secondary slog.Handler, level slog.Level) *Tee {
	return &Tee{primary: primary, secondary: secondary, level: level}
}

func (t *Tee) Enabled(ctx context.Context, lvl slog.Level) bool {
	return t.primary.Enabled(ctx, lvl) || (lvl >= t.level && t.secondary.Enabled(ctx, lvl))
}

func (t *Tee) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	if t.primary.Enabled(ctx, r.Level) {
		errs = append(errs, t.primary.Handle(ctx, r))
	}
	if r.Level >= t.level && t.secondary.Enabled(ctx, r.Level) {
		errs = append(errs, t.secondary.Handle(ctx, r.Clone()))
	}
	return errors.Join(errs...)
}

func (t *Tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Tee{primary: t.primary.WithAttrs(attrs), secondary: t.secondary.WithAttrs(attrs), level: t.level}
}

func (t *Tee) WithGroup(name string) slog.Handler {
	return &Tee{primary: t.primary.WithGroup(name), secondary: t.secondary.WithGroup(name), level: t.level}
}
