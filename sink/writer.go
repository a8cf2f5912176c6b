package sink

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

var _ LogSink = (*WriterSink)(nil)

// WriterSink writes newline-terminated lines to an io.Writer. Writes are
// serialized so lines from concurrent callers never interleave.
type WriterSink struct {
	w   io.Writer
	mut sync.Mutex
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Write(line string) error {
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')

	s.mut.Lock()
	defer s.mut.Unlock()
	_, err := s.w.Write(buf)
	return err
}

// FileSink appends lines to a file, creating it if needed.
type FileSink struct {
	*WriterSink
	f *os.File
}

var _ io.Closer = (*FileSink)(nil)

func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening snapshot file %s", path)
	}
	return &FileSink{WriterSink: NewWriterSink(f), f: f}, nil
}

func (s *FileSink) Close() error {
	s.mut.Lock()
	defer s.mut.Unlock()
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		return errors.Wrapf(err, "syncing snapshot file %s", s.f.Name())
	}
	return s.f.Close()
}
