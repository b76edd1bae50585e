package monitor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/abyssdigger/acqlog/internal/pipeline"
	"github.com/abyssdigger/acqlog/severity"
)

const (
	REDIS_TIMEOUT    = 2 * time.Second
	REDIS_MAX_LEN    = 100000 // approximate stream cap, older entries are trimmed
	REDIS_LINE_FIELD = "line"
)

const _ERROR_MESSAGE_REDIS_PATH = "redis sink path must be <addr>/<stream>"

var ErrRedisPath = errors.New(_ERROR_MESSAGE_REDIS_PATH)

// redisSink appends the line-protocol form of every accepted metric to a
// Redis stream, one pipelined round trip per batch.
type redisSink struct {
	client *redis.Client
	stream string
	line   []byte
}

// "redis:<host:port>/<stream>"
func newRedisSink(path string) (pipeline.Sink[Metric], error) {
	i := strings.LastIndexByte(path, '/')
	if i <= 0 || i == len(path)-1 {
		return nil, ErrRedisPath
	}
	client := redis.NewClient(&redis.Options{Addr: path[:i]})
	ctx, cancel := context.WithTimeout(context.Background(), REDIS_TIMEOUT)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &redisSink{client: client, stream: path[i+1:]}, nil
}

func (s *redisSink) Process(batch []Metric, threshold severity.Level) error {
	ctx, cancel := context.WithTimeout(context.Background(), REDIS_TIMEOUT)
	defer cancel()
	pipe := s.client.Pipeline()
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
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: s.stream,
			MaxLen: REDIS_MAX_LEN,
			Approx: true,
			Values: map[string]any{REDIS_LINE_FIELD: string(s.line)},
		})
	}
	if count == 0 {
		return nil
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisSink) Close() error {
	return s.client.Close()
}
