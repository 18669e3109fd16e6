package fs

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/mutbatch/internal/domain"
	"github.com/bft-labs/mutbatch/pkg/log"
)

// DefaultPollInterval is how often a followed input is re-read when no
// file event arrives.
const DefaultPollInterval = time.Second

// JSONLinesReader implements ports.RecordReader over a JSON-lines file.
//
// With follow enabled it waits for appended data instead of ending at EOF,
// waking on fsnotify write events and on a poll timer. A trailing line
// without a newline is held back until it is completed.
type JSONLinesReader struct {
	path   string
	follow bool
	poll   time.Duration
	logger log.Logger

	f       *os.File
	r       *bufio.Reader
	watcher *fsnotify.Watcher
	offset  int64
	line    int64
	partial []byte
}

// NewJSONLinesReader creates a reader for path.
func NewJSONLinesReader(path string, follow bool, poll time.Duration, logger log.Logger) *JSONLinesReader {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &JSONLinesReader{
		path:   path,
		follow: follow,
		poll:   poll,
		logger: log.OrNoop(logger),
	}
}

// Open opens the file and seeks to offset.
func (r *JSONLinesReader) Open(ctx context.Context, offset int64) error {
	f, err := os.Open(r.path)
	if err != nil {
		return err
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return fmt.Errorf("seek %s to %d: %w", r.path, offset, err)
	}
	r.f = f
	r.r = bufio.NewReaderSize(f, 1<<20)
	r.offset = offset
	r.line = 0
	r.partial = nil

	if r.follow {
		w, err := fsnotify.NewWatcher()
		if err == nil {
			err = w.Add(r.path)
			if err != nil {
				w.Close()
			}
		}
		if err != nil {
			r.logger.Warn("file watch unavailable, polling", log.String("path", r.path), log.Err(err))
		} else {
			r.watcher = w
		}
	}
	return nil
}

// Next returns the next non-empty line as a record.
func (r *JSONLinesReader) Next(ctx context.Context) (domain.Record, error) {
	if r.r == nil {
		return domain.Record{}, errors.New("reader not open")
	}
	for {
		if err := ctx.Err(); err != nil {
			return domain.Record{}, err
		}

		chunk, err := r.r.ReadBytes('\n')
		r.partial = append(r.partial, chunk...)

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			if r.follow {
				if err := r.wait(ctx); err != nil {
					return domain.Record{}, err
				}
				continue
			}
			if len(r.partial) == 0 {
				return domain.Record{}, io.EOF
			}
		default:
			return domain.Record{}, err
		}

		rec, ok := r.take()
		if ok {
			return rec, nil
		}
	}
}

// take consumes r.partial as one line. ok is false for a blank line.
func (r *JSONLinesReader) take() (domain.Record, bool) {
	raw := r.partial
	r.partial = nil

	start := r.offset
	r.offset += int64(len(raw))
	r.line++

	data := bytes.TrimSpace(raw)
	if len(data) == 0 {
		return domain.Record{}, false
	}

	rec := domain.Record{Offset: start, End: r.offset, Line: r.line}
	m, err := DecodeRecord(data)
	if err != nil {
		rec.Err = fmt.Errorf("line %d: %w", r.line, err)
	} else {
		rec.Mutation = m
	}
	return rec, true
}

// wait blocks until the file may have grown.
func (r *JSONLinesReader) wait(ctx context.Context) error {
	var events <-chan fsnotify.Event
	var errs <-chan error
	if r.watcher != nil {
		events = r.watcher.Events
		errs = r.watcher.Errors
	}

	timer := time.NewTimer(r.poll)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				return nil
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			r.logger.Warn("file watch error", log.String("path", r.path), log.Err(err))
		}
	}
}

// Offset returns the byte offset just past the last line returned.
func (r *JSONLinesReader) Offset() int64 {
	return r.offset
}

// Close releases the file and the watcher.
func (r *JSONLinesReader) Close() error {
	var err error
	if r.watcher != nil {
		err = r.watcher.Close()
		r.watcher = nil
	}
	if r.f != nil {
		if cerr := r.f.Close(); err == nil {
			err = cerr
		}
		r.f = nil
		r.r = nil
	}
	return err
}
