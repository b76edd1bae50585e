package acqlog

import (
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/abyssdigger/acqlog/internal/pipeline"
)

const (
	ROTFILE_MAX_SIZE_MB = 100
	ROTFILE_MAX_BACKUPS = 10
	ROTFILE_MAX_AGE_DAY = 30
)

// "rotfile:<path>" writes the file sink format through a size based rotator.
func (l *Logger) newRotFileSink(path string) (pipeline.Sink[Record], error) {
	if path == "" {
		return nil, pipeline.ErrNoPath
	}
	rot := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    ROTFILE_MAX_SIZE_MB,
		MaxBackups: ROTFILE_MAX_BACKUPS,
		MaxAge:     ROTFILE_MAX_AGE_DAY,
		LocalTime:  true,
		Compress:   true,
	}
	return newTextSink(rot, rot, l.hostname), nil
}
