package monitor

import (
	"bufio"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/abyssdigger/acqlog/internal/pipeline"
	"github.com/abyssdigger/acqlog/severity"
)

const ZSTD_SUFFIX = ".zst"

// fileSink writes one line-protocol line per accepted metric. Paths ending
// in ".zst" are written as a zstd stream, flushed as one frame block per batch
// so a reader can follow the file while it grows.
type fileSink struct {
	out    *bufio.Writer
	enc    *zstd.Encoder
	closer io.Closer
	line   []byte
}

func newFileSink(path string) (pipeline.Sink[Metric], error) {
	w, c, err := pipeline.OpenStream(path)
	if err != nil {
		return nil, err
	}
	s := &fileSink{closer: c, line: make([]byte, 0, 256)}
	if strings.HasSuffix(path, ZSTD_SUFFIX) {
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			c.Close()
			return nil, err
		}
		s.enc = enc
		w = enc
	}
	s.out = bufio.NewWriter(w)
	return s, nil
}

func (s *fileSink) Process(batch []Metric, threshold severity.Level) error {
	count := 0
	for i := range batch {
		if !pipeline.Accepted(batch[i], threshold) {
			continue
		}
		var ok bool
		if s.line, ok = AppendLine(s.line[:0], &batch[i]); !ok {
			continue
		}
		count++
		s.line = append(s.line, '\n')
		if _, err := s.out.Write(s.line); err != nil {
			return err
		}
	}
	if count == 0 {
		return nil
	}
	if err := s.out.Flush(); err != nil {
		return err
	}
	if s.enc != nil {
		return s.enc.Flush()
	}
	return nil
}

func (s *fileSink) Close() error {
	err := s.out.Flush()
	if s.enc != nil {
		if cerr := s.enc.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := s.closer.Close(); err == nil {
		err = cerr
	}
	return err
}
