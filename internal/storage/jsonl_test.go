package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/SCBuergel/uniminiranger/internal/model"
)

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "actions.jsonl")
	journal := NewJsonlStorage(path)
	ctx := context.Background()

	records, err := journal.ReadActions()
	if err != nil {
		t.Fatalf("read empty journal: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	first := []model.ActionRecord{{TickID: "a", Kind: model.ActionWithdraw, TxHash: "0x01", PositionID: "7", RecordedAt: at}}
	second := []model.ActionRecord{
		{TickID: "a", Kind: model.ActionSwap, TxHash: "0x02", Amount0: "-10", Amount1: "20", RecordedAt: at},
		{TickID: "a", Kind: model.ActionMint, TxHash: "0x03", PositionID: "8", TickLower: -120, TickUpper: 120, RecordedAt: at},
	}
	if err := journal.PutActions(ctx, first); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := journal.PutActions(ctx, nil); err != nil {
		t.Fatalf("put empty: %v", err)
	}
	if err := journal.PutActions(ctx, second); err != nil {
		t.Fatalf("put second: %v", err)
	}

	records, err = journal.ReadActions()
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Kind != model.ActionWithdraw || records[2].Kind != model.ActionMint {
		t.Fatalf("unexpected order: %+v", records)
	}
	if records[2].TickLower != -120 || records[2].PositionID != "8" {
		t.Fatalf("mint record mismatch: %+v", records[2])
	}
	if !records[1].RecordedAt.Equal(at) {
		t.Fatalf("timestamp mismatch: %s", records[1].RecordedAt)
	}
}
