package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SQLitePersister keeps the set in the automations table, one row per
// automation. Save rewrites the table in a single transaction.
type SQLitePersister struct {
	db *sql.DB
}

// NewSQLitePersister creates a persister on an open, migrated database.
func NewSQLitePersister(db *sql.DB) *SQLitePersister {
	return &SQLitePersister{db: db}
}

// Load implements Persister.
func (p *SQLitePersister) Load(ctx context.Context) ([][]byte, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT body FROM automations ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("querying automations: %w", err)
	}
	defer rows.Close()

	var blobs [][]byte
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scanning automation: %w", err)
		}
		blobs = append(blobs, []byte(body))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating automations: %w", err)
	}
	return blobs, nil
}

// Save implements Persister.
func (p *SQLitePersister) Save(ctx context.Context, blobs [][]byte) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM automations"); err != nil {
		return fmt.Errorf("clearing automations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO automations (position, uuid, body) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, blob := range blobs {
		id, err := blobID(blob)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, i, id, string(blob)); err != nil {
			return fmt.Errorf("inserting automation %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing automations: %w", err)
	}
	return nil
}

// blobID reads the uuid field of an encoded automation.
func blobID(blob []byte) (string, error) {
	var head struct {
		UUID string `json:"uuid"`
	}
	if err := json.Unmarshal(blob, &head); err != nil {
		return "", fmt.Errorf("reading automation id: %w", err)
	}
	if _, err := uuid.Parse(head.UUID); err != nil {
		return "", fmt.Errorf("reading automation id %q: %w", head.UUID, err)
	}
	return head.UUID, nil
}

// MemoryPersister keeps the set in memory. It is used in tests and when
// no durable backend is configured.
type MemoryPersister struct {
	mu      sync.Mutex
	blobs   [][]byte
	loads   int
	saveErr error
}

// NewMemoryPersister creates a persister holding the given blobs.
func NewMemoryPersister(blobs ...[]byte) *MemoryPersister {
	return &MemoryPersister{blobs: copyBlobs(blobs)}
}

// Load implements Persister.
func (p *MemoryPersister) Load(context.Context) ([][]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loads++
	return copyBlobs(p.blobs), nil
}

// Save implements Persister.
func (p *MemoryPersister) Save(_ context.Context, blobs [][]byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return p.saveErr
	}
	p.blobs = copyBlobs(blobs)
	return nil
}

// Blobs returns the saved set.
func (p *MemoryPersister) Blobs() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyBlobs(p.blobs)
}

// Loads returns how many times Load was called.
func (p *MemoryPersister) Loads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loads
}

// FailSaves makes every later Save return err. Nil restores saving.
func (p *MemoryPersister) FailSaves(err error) {
	p.mu.Lock()
	p.saveErr = err
	p.mu.Unlock()
}

func copyBlobs(in [][]byte) [][]byte {
	out := make([][]byte, len(in))
	for i, b := range in {
		out[i] = append([]byte(nil), b...)
	}
	return out
}
