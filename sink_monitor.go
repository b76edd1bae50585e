package acqlog

import (
	"errors"
	"strconv"

	"github.com/abyssdigger/acqlog/internal/pipeline"
	"github.com/abyssdigger/acqlog/monitor"
	"github.com/abyssdigger/acqlog/severity"
)

const (
	MONITOR_MEASUREMENT = "Logger"
	MONITOR_FIELD       = "msg"
	MONITOR_CID_KEY     = "cid"
	MONITOR_CID_VALUE   = "__Monitor"
)

// monitorSink forwards log records into the metrics pipeline. The path
// names a destination for transport based variants and is ignored by this
// in-process one.
type monitorSink struct {
	path string
}

// "monitor:<uri>"
func newMonitorSink(path string) (pipeline.Sink[Record], error) {
	return &monitorSink{path: path}, nil
}

// ToMetric converts a record into the "Logger" measurement: tags thread and
// numeric sev followed by every key, one field msg holding the body, stamped
// with the record time.
func ToMetric(rec *Record) monitor.Metric {
	kvs := SplitKeys(rec.Keys)
	tags := make([]monitor.Tag, 0, 2+len(kvs))
	tags = append(tags,
		monitor.Tag{Key: "thread", Value: rec.Thread},
		monitor.Tag{Key: "sev", Value: strconv.Itoa(int(rec.Severity))})
	for _, kv := range kvs {
		tags = append(tags, monitor.Tag{Key: kv.Key, Value: kv.Value})
	}
	return monitor.Metric{
		Measurement: MONITOR_MEASUREMENT,
		Tags:        tags,
		Fields:      []monitor.Field{monitor.String(MONITOR_FIELD, rec.Body)},
		Time:        rec.Time,
		Severity:    rec.Severity,
	}
}

// aboutMonitor is true for warnings and worse emitted by the metrics
// pipeline itself. Forwarding them could loop forever.
func aboutMonitor(rec *Record) bool {
	return rec.Severity >= severity.WARNING && HasKey(rec.Keys, MONITOR_CID_KEY, MONITOR_CID_VALUE)
}

func (s *monitorSink) Process(batch []Record, threshold severity.Level) error {
	for i := range batch {
		rec := &batch[i]
		if !pipeline.Accepted(*rec, threshold) || aboutMonitor(rec) {
			continue
		}
		// the monitor starts after and stops before the logger, records
		// outside that window are dropped
		mon := monitor.Active()
		if mon == nil {
			continue
		}
		if err := mon.Queue(ToMetric(rec)); err != nil && !errors.Is(err, monitor.ErrInactive) {
			return err
		}
	}
	return nil
}

func (s *monitorSink) Close() error { return nil }
