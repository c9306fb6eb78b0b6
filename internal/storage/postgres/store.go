package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SCBuergel/uniminiranger/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS actions (
	id BIGSERIAL PRIMARY KEY,
	tick_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	tx_hash TEXT NOT NULL,
	block_number BIGINT NOT NULL,
	position_id TEXT,
	tick_lower INTEGER NOT NULL,
	tick_upper INTEGER NOT NULL,
	amount0 NUMERIC,
	amount1 NUMERIC,
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS actions_tx_kind ON actions (tx_hash, kind);
CREATE TABLE IF NOT EXISTS positions (
	name TEXT PRIMARY KEY,
	position_id TEXT,
	tick_lower INTEGER NOT NULL,
	tick_upper INTEGER NOT NULL,
	liquidity NUMERIC,
	updated_at TIMESTAMPTZ NOT NULL
);
`

// Store provides Postgres persistence for the action journal and position state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the actions and positions tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutActions inserts action records, ignoring ones already stored for the same tx and kind.
func (s *Store) PutActions(ctx context.Context, records []model.ActionRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO actions (
				tick_id, kind, tx_hash, block_number, position_id, tick_lower, tick_upper, amount0, amount1, recorded_at
			) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, NULLIF($8, '')::numeric, NULLIF($9, '')::numeric, $10)
			ON CONFLICT (tx_hash, kind) DO NOTHING
		`,
			r.TickID,
			r.Kind,
			r.TxHash,
			int64(r.BlockNumber),
			r.PositionID,
			r.TickLower,
			r.TickUpper,
			r.Amount0,
			r.Amount1,
			r.RecordedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadPosition returns the position saved under name.
func (s *Store) LoadPosition(ctx context.Context, name string) (model.Position, bool, error) {
	if name == "" {
		return model.Position{}, false, fmt.Errorf("position name required")
	}
	var (
		id        *string
		lower     int32
		upper     int32
		liquidity *string
	)
	row := s.pool.QueryRow(ctx, `
		SELECT position_id, tick_lower, tick_upper, liquidity::text FROM positions WHERE name=$1
	`, name)
	if err := row.Scan(&id, &lower, &upper, &liquidity); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Position{}, false, nil
		}
		return model.Position{}, false, err
	}

	pos := model.Position{TickLower: lower, TickUpper: upper}
	if id != nil {
		v, ok := new(big.Int).SetString(*id, 10)
		if !ok {
			return model.Position{}, false, fmt.Errorf("invalid position id %q", *id)
		}
		pos.ID = v
	}
	if liquidity != nil {
		v, ok := new(big.Int).SetString(*liquidity, 10)
		if !ok {
			return model.Position{}, false, fmt.Errorf("invalid liquidity %q", *liquidity)
		}
		pos.Liquidity = v
	}
	return pos, true, nil
}

// SavePosition upserts the position saved under name. A closed position is
// stored with a null id.
func (s *Store) SavePosition(ctx context.Context, name string, pos model.Position) error {
	if name == "" {
		return fmt.Errorf("position name required")
	}
	var id, liquidity *string
	if pos.ID != nil {
		v := pos.ID.String()
		id = &v
	}
	if pos.Liquidity != nil {
		v := pos.Liquidity.String()
		liquidity = &v
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO positions (name, position_id, tick_lower, tick_upper, liquidity, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, now())
		ON CONFLICT (name) DO UPDATE
		SET position_id = EXCLUDED.position_id,
			tick_lower = EXCLUDED.tick_lower,
			tick_upper = EXCLUDED.tick_upper,
			liquidity = EXCLUDED.liquidity,
			updated_at = now()
	`, name, id, pos.TickLower, pos.TickUpper, liquidity)
	return err
}
