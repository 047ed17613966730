package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rafaelmaranon/FixNow/internal/db"
	"github.com/rafaelmaranon/FixNow/internal/migrate"
)

// Snapshot persists the last full listing so it can be served while the
// directory feed is down.
type Snapshot struct {
	db *sql.DB
}

func OpenSnapshot(ctx context.Context, path string) (*Snapshot, error) {
	conn, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	if _, err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate snapshot: %w", err)
	}
	return &Snapshot{db: conn}, nil
}

func (s *Snapshot) Close() error {
	return s.db.Close()
}

// SaveContractors replaces the stored listing.
func (s *Snapshot) SaveContractors(ctx context.Context, list []Contractor, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM directory_contractors`); err != nil {
		return err
	}
	stamp := at.UTC().Format(time.RFC3339Nano)
	for i, c := range list {
		payload, err := json.Marshal(c)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO directory_contractors(position, id, category, payload, fetched_at) VALUES (?, ?, ?, ?, ?)`,
			i, c.ID, c.Category, string(payload), stamp); err != nil {
			return fmt.Errorf("insert contractor %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// LoadContractors returns the stored listing and when it was fetched. An
// empty snapshot yields no contractors and a zero time.
func (s *Snapshot) LoadContractors(ctx context.Context) ([]Contractor, time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload, fetched_at FROM directory_contractors ORDER BY position`)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer rows.Close()
	var (
		out []Contractor
		at  time.Time
	)
	for rows.Next() {
		var payload, stamp string
		if err := rows.Scan(&payload, &stamp); err != nil {
			return nil, time.Time{}, err
		}
		var c Contractor
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			return nil, time.Time{}, fmt.Errorf("decode contractor: %w", err)
		}
		out = append(out, c)
		if at.IsZero() {
			at, _ = time.Parse(time.RFC3339Nano, stamp)
		}
	}
	return out, at, rows.Err()
}

func (s *Snapshot) SaveNeighborhoods(ctx context.Context, list []Neighborhood, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM directory_neighborhoods`); err != nil {
		return err
	}
	stamp := at.UTC().Format(time.RFC3339Nano)
	for i, n := range list {
		payload, err := json.Marshal(n)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO directory_neighborhoods(position, key, payload, fetched_at) VALUES (?, ?, ?, ?)`,
			i, n.Key, string(payload), stamp); err != nil {
			return fmt.Errorf("insert neighborhood %s: %w", n.Key, err)
		}
	}
	return tx.Commit()
}

func (s *Snapshot) LoadNeighborhoods(ctx context.Context) ([]Neighborhood, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM directory_neighborhoods ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Neighborhood
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var n Neighborhood
		if err := json.Unmarshal([]byte(payload), &n); err != nil {
			return nil, fmt.Errorf("decode neighborhood: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
