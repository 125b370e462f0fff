package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when no run has the requested id.
var ErrNotFound = errors.New("run not found")

// Record is one persisted analysis run. Data is the full run as JSON.
type Record struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	NumPaths  int             `json:"num_paths"`
	CreatedAt time.Time       `json:"created_at"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// RunStore persists runs. Postgres is primary when a pool is given; the file
// directory is written alongside it and is the only store without a pool.
type RunStore struct {
	pool    *pgxpool.Pool
	fileDir string
	log     logrus.FieldLogger
}

// NewRunStore creates a store. With a nil pool and empty dir it defaults to
// .cache/dsa/runs.
func NewRunStore(pool *pgxpool.Pool, dir string, log logrus.FieldLogger) *RunStore {
	if pool == nil && dir == "" {
		dir = filepath.Join(".cache", "dsa", "runs")
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(os.Stderr)
		log = l
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.WithError(err).WithField("dir", dir).Warn("run cache dir unavailable")
		}
	}
	return &RunStore{pool: pool, fileDir: dir, log: log}
}

// Save upserts rec by id.
func (s *RunStore) Save(ctx context.Context, rec Record) error {
	if _, err := uuid.Parse(rec.ID); err != nil {
		return fmt.Errorf("invalid run id %q: %w", rec.ID, err)
	}

	if s.pool != nil {
		query := `
			INSERT INTO dsa_runs (id, name, num_paths, run_json, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id)
			DO UPDATE SET
				name = EXCLUDED.name,
				num_paths = EXCLUDED.num_paths,
				run_json = EXCLUDED.run_json,
				updated_at = EXCLUDED.updated_at;
		`
		_, err := s.pool.Exec(ctx, query, rec.ID, rec.Name, rec.NumPaths, []byte(rec.Data), rec.CreatedAt, time.Now())
		if err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
	}

	if s.fileDir != "" {
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal run: %w", err)
		}
		if err := os.WriteFile(s.path(rec.ID), data, 0o644); err != nil {
			if s.pool == nil {
				return fmt.Errorf("failed to write run file: %w", err)
			}
			s.log.WithError(err).WithField("run_id", rec.ID).Warn("run file mirror failed")
		}
	}
	return nil
}

// Load returns the run with id, or ErrNotFound.
func (s *RunStore) Load(ctx context.Context, id string) (*Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if s.pool != nil {
		query := `SELECT id::text, name, num_paths, run_json, created_at FROM dsa_runs WHERE id = $1`
		var rec Record
		var data []byte
		err := s.pool.QueryRow(ctx, query, id).Scan(&rec.ID, &rec.Name, &rec.NumPaths, &data, &rec.CreatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			return nil, fmt.Errorf("failed to load run: %w", err)
		}
		rec.Data = data
		return &rec, nil
	}

	return s.loadFile(s.path(id))
}

// List returns the newest runs first, without their payload.
func (s *RunStore) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	if s.pool != nil {
		query := `SELECT id::text, name, num_paths, created_at FROM dsa_runs ORDER BY created_at DESC LIMIT $1`
		rows, err := s.pool.Query(ctx, query, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", err)
		}
		return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
			var rec Record
			err := row.Scan(&rec.ID, &rec.Name, &rec.NumPaths, &rec.CreatedAt)
			return rec, err
		})
	}

	entries, err := os.ReadDir(s.fileDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		rec, err := s.loadFile(filepath.Join(s.fileDir, e.Name()))
		if err != nil {
			s.log.WithError(err).WithField("file", e.Name()).Warn("skipping unreadable run file")
			continue
		}
		rec.Data = nil
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *RunStore) path(id string) string {
	return filepath.Join(s.fileDir, id+".json")
}

func (s *RunStore) loadFile(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSuffix(filepath.Base(path), ".json"))
		}
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run file: %w", err)
	}
	return &rec, nil
}
