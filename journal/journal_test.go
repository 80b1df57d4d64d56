package journal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"i4.energy/across/idpgw/twin"
)

func openTest(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "data", "journal.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestMOLifecycle(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()

	msg := twin.Message{Name: "ping", SIN: 128, MIN: 1, Payload: []byte{1, 2, 3}}
	r, err := j.Submitted(ctx, "12345678", msg)
	if err != nil {
		t.Fatal(err)
	}
	if r.ID == 0 || r.State != "TX_READY" || r.Size != 5 {
		t.Fatalf("record %+v", r)
	}

	err = j.Completed(ctx, twin.MOResult{QueueName: "12345678", State: twin.MOComplete, Size: 5, Latency: 30 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	got, err := j.Get(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != "TX_COMPLETE" || got.Latency != 30*time.Second || string(got.Payload) != "\x01\x02\x03" {
		t.Fatalf("record %+v", got)
	}

	// completion of a message submitted elsewhere
	err = j.Completed(ctx, twin.MOResult{QueueName: "00000001", SIN: 200, State: twin.MOFailed, Size: 10})
	if err != nil {
		t.Fatal(err)
	}
	records, total, err := j.List(ctx, Filter{Direction: DirectionMO})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(records) != 2 {
		t.Fatalf("total %d records %+v", total, records)
	}
}

func TestListFilter(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()
	base := time.Unix(1712345678, 0).UTC()

	for i := 0; i < 5; i++ {
		msg := twin.MTMessage{
			Message:   twin.Message{SIN: uint8(128 + i%2), MIN: 1, Payload: []byte{byte(i)}},
			QueueName: "FM" + string(rune('0'+i)),
			Received:  base.Add(time.Duration(i) * time.Minute),
		}
		if _, err := j.Received(ctx, msg); err != nil {
			t.Fatal(err)
		}
	}

	sin := 128
	records, total, err := j.List(ctx, Filter{Direction: DirectionMT, SIN: &sin})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(records) != 3 {
		t.Fatalf("total %d len %d", total, len(records))
	}
	if records[0].QueueName != "FM4" {
		t.Errorf("newest first, got %s", records[0].QueueName)
	}

	records, total, err = j.List(ctx, Filter{Since: base.Add(2 * time.Minute), Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(records) != 2 {
		t.Fatalf("total %d len %d", total, len(records))
	}

	n, err := j.Prune(ctx, base.Add(2*time.Minute))
	if err != nil || n != 2 {
		t.Fatalf("Prune = %d, %v", n, err)
	}
}

func TestDelete(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()

	r, err := j.Received(ctx, twin.MTMessage{Message: twin.Message{SIN: 255}, QueueName: "FM1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Delete(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	if err := j.Delete(ctx, r.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := j.Get(ctx, r.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
