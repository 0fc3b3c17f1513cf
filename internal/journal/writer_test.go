package journal

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"enterprise_sim/internal/domain"
	"enterprise_sim/internal/enterprise"
	"enterprise_sim/internal/messaging/inproc"
	"enterprise_sim/internal/store/sqlite"
)

func TestWriterPersistsStateEvents(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	bus := inproc.New(64)
	events := bus.Subscribe("journal")
	state := enterprise.New(nil, enterprise.WithPublisher(bus))
	writer := New(store, log.New(io.Discard, "", 0))

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- writer.Run(runCtx, events) }()

	state.RegisterOutcome("Launch X", "")
	state.Record(domain.LogKindAlert, "Negotiation failed for Plan", "timeout")
	state.AppendHistorySample()

	deadline := time.Now().Add(3 * time.Second)
	for writer.Written() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if writer.Written() != 3 || writer.Failed() != 0 {
		t.Fatalf("written=%d failed=%d", writer.Written(), writer.Failed())
	}

	entries, err := store.ListLogEntries(ctx, "", 10)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Kind != domain.LogKindAlert || entries[0].Details != "timeout" {
		t.Fatalf("unexpected newest entry: %+v", entries[0])
	}
	samples, err := store.ListSamples(ctx, 10)
	if err != nil {
		t.Fatalf("list samples: %v", err)
	}
	if len(samples) != 1 || samples[0].Sample.Efficiency <= 0 {
		t.Fatalf("unexpected samples: %+v", samples)
	}
}

type failingSink struct{}

func (failingSink) AppendLogEntry(context.Context, domain.LogEntry) error { return io.ErrClosedPipe }
func (failingSink) AppendSample(context.Context, domain.HistorySample, time.Time) error {
	return io.ErrClosedPipe
}

func TestWriterCountsFailuresAndStopsOnClose(t *testing.T) {
	events := make(chan domain.Event, 3)
	events <- domain.Event{Kind: domain.EventKindLog, Log: &domain.LogEntry{ID: "1"}}
	events <- domain.Event{Kind: domain.EventKindLog}
	events <- domain.Event{Kind: domain.EventKindSample, Sample: &domain.HistorySample{}}
	close(events)

	writer := New(failingSink{}, log.New(io.Discard, "", 0))
	if err := writer.Run(context.Background(), events); err != nil {
		t.Fatalf("run: %v", err)
	}
	if writer.Failed() != 2 || writer.Written() != 0 {
		t.Fatalf("written=%d failed=%d", writer.Written(), writer.Failed())
	}
}
