package persist

import (
	"context"
	"fmt"
	"time"
)

// SpawnRecord is one journaled spawn. Replaying it with the same namespace
// reproduces the same entity uids.
type SpawnRecord struct {
	ID          int64
	URL         string
	Namespace   string
	Digest      string
	Entities    int
	Translation [3]float32
	Rotation    [4]float32
	Scale       [3]float32
	SpawnedAt   time.Time
}

type SpawnRepo struct {
	db *DB
}

func NewSpawnRepo(db *DB) *SpawnRepo {
	return &SpawnRepo{db: db}
}

// SaveBatch writes records in a single transaction. On error nothing is
// written and the caller may retry the same batch.
func (r *SpawnRepo) SaveBatch(ctx context.Context, records []SpawnRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, rec := range records {
		if _, err := tx.Exec(ctx,
			`INSERT INTO spawn_journal (url, namespace, digest, entities, translation, rotation, scale, spawned_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			rec.URL, rec.Namespace, rec.Digest, rec.Entities,
			rec.Translation[:], rec.Rotation[:], rec.Scale[:], rec.SpawnedAt,
		); err != nil {
			return fmt.Errorf("journal insert: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("journal commit: %w", err)
	}
	return nil
}

// LoadAll returns every journaled spawn in insertion order.
func (r *SpawnRepo) LoadAll(ctx context.Context) ([]SpawnRecord, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, url, namespace, digest, entities, translation, rotation, scale, spawned_at
		 FROM spawn_journal ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var out []SpawnRecord
	for rows.Next() {
		var (
			rec     SpawnRecord
			t, q, s []float32
		)
		if err := rows.Scan(&rec.ID, &rec.URL, &rec.Namespace, &rec.Digest, &rec.Entities,
			&t, &q, &s, &rec.SpawnedAt); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		if len(t) != 3 || len(q) != 4 || len(s) != 3 {
			return nil, fmt.Errorf("journal row %d: malformed transform", rec.ID)
		}
		copy(rec.Translation[:], t)
		copy(rec.Rotation[:], q)
		copy(rec.Scale[:], s)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Truncate removes every record.
func (r *SpawnRepo) Truncate(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `TRUNCATE spawn_journal`)
	return err
}
