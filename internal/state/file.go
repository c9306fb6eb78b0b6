package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/SCBuergel/uniminiranger/internal/model"
)

// FileStore stores the position in a local JSON file.
type FileStore struct {
	Path string
}

type positionRecord struct {
	Position  model.Position `json:"position"`
	UpdatedAt string         `json:"updated_at"`
}

func (s *FileStore) Load(ctx context.Context) (model.Position, bool, error) {
	if s == nil || s.Path == "" {
		return model.Position{}, false, nil
	}

	stat, err := os.Stat(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Position{}, false, nil
		}
		return model.Position{}, false, fmt.Errorf("stat position file: %w", err)
	}
	if stat.IsDir() {
		return model.Position{}, false, fmt.Errorf("position path is a directory")
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return model.Position{}, false, fmt.Errorf("read position: %w", err)
	}

	var rec positionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.Position{}, false, fmt.Errorf("parse position: %w", err)
	}
	if rec.Position.IsOpen() && rec.Position.TickLower >= rec.Position.TickUpper {
		return model.Position{}, false, fmt.Errorf("position file has invalid range [%d, %d]", rec.Position.TickLower, rec.Position.TickUpper)
	}
	return rec.Position, true, nil
}

func (s *FileStore) Save(ctx context.Context, pos model.Position) error {
	if s == nil || s.Path == "" {
		return nil
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create position dir: %w", err)
		}
	}

	rec := positionRecord{
		Position:  pos,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal position: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write position tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename position: %w", err)
	}
	return nil
}
