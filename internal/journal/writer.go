package journal

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"enterprise_sim/internal/domain"
)

type Sink interface {
	AppendLogEntry(ctx context.Context, entry domain.LogEntry) error
	AppendSample(ctx context.Context, sample domain.HistorySample, at time.Time) error
}

// Writer persists events from the bus into the journal sink.
type Writer struct {
	sink    Sink
	logger  *log.Logger
	written atomic.Int64
	failed  atomic.Int64
}

func New(sink Sink, logger *log.Logger) *Writer {
	if logger == nil {
		logger = log.Default()
	}
	return &Writer{sink: sink, logger: logger}
}

// Run consumes events until ctx is done or the channel is closed. Events
// already queued when ctx ends are still written.
func (w *Writer) Run(ctx context.Context, events <-chan domain.Event) error {
	for {
		select {
		case <-ctx.Done():
			w.drain(events)
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			w.write(ctx, evt)
		}
	}
}

func (w *Writer) drain(events <-chan domain.Event) {
	flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			w.write(flushCtx, evt)
		default:
			return
		}
	}
}

func (w *Writer) write(ctx context.Context, evt domain.Event) {
	var err error
	switch evt.Kind {
	case domain.EventKindLog:
		if evt.Log == nil {
			return
		}
		err = w.sink.AppendLogEntry(ctx, *evt.Log)
	case domain.EventKindSample:
		if evt.Sample == nil {
			return
		}
		err = w.sink.AppendSample(ctx, *evt.Sample, evt.At)
	default:
		return
	}
	if err != nil {
		w.failed.Add(1)
		w.logger.Printf("journal write failed kind=%s: %v", evt.Kind, err)
		return
	}
	w.written.Add(1)
}

func (w *Writer) Written() int64 {
	return w.written.Load()
}

func (w *Writer) Failed() int64 {
	return w.failed.Load()
}
