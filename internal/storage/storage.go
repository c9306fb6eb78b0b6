package storage

import (
	"context"

	"github.com/SCBuergel/uniminiranger/internal/model"
)

// Journal is an append-only sink for executed lifecycle actions.
type Journal interface {
	PutActions(ctx context.Context, records []model.ActionRecord) error
}

// Nop discards every record.
type Nop struct{}

func (Nop) PutActions(ctx context.Context, records []model.ActionRecord) error {
	return nil
}
