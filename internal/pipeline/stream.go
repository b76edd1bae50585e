package pipeline

import (
	"errors"
	"io"
	"os"
)

const _ERROR_MESSAGE_STREAM_NO_PATH = "empty stream path"

var ErrNoPath = errors.New(_ERROR_MESSAGE_STREAM_NO_PATH)

// OpenStream resolves the path of a file-like sink. "cout"/"stdout" and
// "cerr"/"stderr" bind to the process streams and are never closed, any
// other path is created or truncated with mode 0644.
func OpenStream(path string) (io.Writer, io.Closer, error) {
	switch path {
	case "":
		return nil, nil, ErrNoPath
	case "cout", "stdout":
		return os.Stdout, nopCloser{}, nil
	case "cerr", "stderr":
		return os.Stderr, nopCloser{}, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
