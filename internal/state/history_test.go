package state

import (
	"context"
	"encoding/json"
	"testing"
)

func TestHistoryStore(t *testing.T) {
	store := NewHistoryStore(t.TempDir())
	ctx := context.Background()

	for _, typ := range []string{"nowPlaying", "playbackSession", "onVolumeChanged"} {
		rec := &Record{ScreenID: "screen/1", Type: typ, Payload: json.RawMessage(`{"x":1}`)}
		if err := store.Append(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	records, err := store.Tail(ctx, "screen/1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Seq != 2 || records[1].Seq != 3 {
		t.Errorf("expected seq 2,3, got %d,%d", records[0].Seq, records[1].Seq)
	}
	if records[1].Type != "onVolumeChanged" || records[1].At.IsZero() {
		t.Errorf("unexpected record %+v", records[1])
	}

	count, err := store.Count(ctx, "screen/1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("expected count 3, got %d", count)
	}
}

func TestHistoryStore_SeqSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	if err := NewHistoryStore(dir).Append(ctx, &Record{ScreenID: "s", Type: "a"}); err != nil {
		t.Fatal(err)
	}
	rec := &Record{ScreenID: "s", Type: "b"}
	if err := NewHistoryStore(dir).Append(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if rec.Seq != 2 {
		t.Errorf("expected seq 2 after reopen, got %d", rec.Seq)
	}
}

func TestHistoryStore_TailMissing(t *testing.T) {
	records, err := NewHistoryStore(t.TempDir()).Tail(context.Background(), "none", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}
