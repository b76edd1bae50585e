package acqlog

import (
	"bufio"
	"bytes"
	"io"

	"github.com/abyssdigger/acqlog/internal/pipeline"
	"github.com/abyssdigger/acqlog/severity"
)

// fileSink writes one text line per accepted record and flushes once per
// batch that produced output. Used by both "file:" and "rotfile:".
type fileSink struct {
	out    *bufio.Writer
	closer io.Closer
	msgbuf *bytes.Buffer
	host   string
}

// "file:<path>", path is a file name or cout/cerr.
func (l *Logger) newFileSink(path string) (pipeline.Sink[Record], error) {
	w, c, err := pipeline.OpenStream(path)
	if err != nil {
		return nil, err
	}
	return newTextSink(w, c, l.hostname), nil
}

func newTextSink(w io.Writer, c io.Closer, host string) *fileSink {
	return &fileSink{
		out:    bufio.NewWriter(w),
		closer: c,
		msgbuf: bytes.NewBuffer(make([]byte, 0, DEFAULT_OUT_BUFF)),
		host:   host,
	}
}

func (s *fileSink) Process(batch []Record, threshold severity.Level) error {
	count := 0
	for i := range batch {
		if !pipeline.Accepted(batch[i], threshold) {
			continue
		}
		count++
		s.msgbuf.Reset()
		buildTextMessage(s.msgbuf, &batch[i], s.host)
		if _, err := s.msgbuf.WriteTo(s.out); err != nil {
			return err
		}
	}
	if count > 0 {
		return s.out.Flush()
	}
	return nil
}

func (s *fileSink) Close() error {
	ferr := s.out.Flush()
	cerr := s.closer.Close()
	if ferr != nil {
		return ferr
	}
	return cerr
}
