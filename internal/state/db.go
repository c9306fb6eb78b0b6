package state

import (
	"context"

	"github.com/SCBuergel/uniminiranger/internal/model"
	"github.com/SCBuergel/uniminiranger/internal/storage/postgres"
)

// DBStore stores the position in the positions table.
type DBStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBStore) Load(ctx context.Context) (model.Position, bool, error) {
	if s == nil || s.Store == nil {
		return model.Position{}, false, nil
	}
	return s.Store.LoadPosition(ctx, s.Name)
}

func (s *DBStore) Save(ctx context.Context, pos model.Position) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SavePosition(ctx, s.Name, pos)
}
