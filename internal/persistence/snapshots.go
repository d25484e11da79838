// Package persistence stores registered design documents and per-slot
// payload snapshots in Postgres. Snapshots are persisted stripped: previews
// and history are session state and never survive a reload.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/draftforge/template-studio/remap-orchestrator/internal/models"
)

// Store handles database access for documents and slot snapshots.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewStore creates a new persistence store.
func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger}
}

// EnsureSchema creates the tables the store needs if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			layer_tree JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS slot_snapshots (
			node_id TEXT NOT NULL,
			slot_id TEXT NOT NULL,
			payload JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (node_id, slot_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create slot_snapshots table: %w", err)
	}

	return nil
}

// SaveDocument upserts a registered design document.
func (s *Store) SaveDocument(ctx context.Context, doc *models.Document) error {
	tree, err := json.Marshal(doc.Root)
	if err != nil {
		return fmt.Errorf("failed to encode layer tree: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (id, name, layer_tree)
		VALUES ($1, $2, $3)
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name, layer_tree = EXCLUDED.layer_tree, updated_at = NOW()
	`, doc.ID, doc.Name, tree)

	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}

	return nil
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	var tree []byte

	err := s.pool.QueryRow(ctx, `
		SELECT id, name, layer_tree
		FROM documents
		WHERE id = $1
	`, id).Scan(&doc.ID, &doc.Name, &tree)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("document not found")
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	if err := json.Unmarshal(tree, &doc.Root); err != nil {
		return nil, fmt.Errorf("failed to decode layer tree: %w", err)
	}

	return &doc, nil
}

// ListDocuments returns id and name for every registered document.
func (s *Store) ListDocuments(ctx context.Context) ([]models.DocumentSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name
		FROM documents
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []models.DocumentSummary
	for rows.Next() {
		var d models.DocumentSummary
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return docs, nil
}

// SaveSnapshot upserts the stripped payload for one slot.
func (s *Store) SaveSnapshot(ctx context.Context, nodeID, slotID string, payload models.SlotPayload) error {
	data, err := json.Marshal(payload.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO slot_snapshots (node_id, slot_id, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (node_id, slot_id)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()
	`, nodeID, slotID, data)

	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

// SnapshotRecord is one persisted slot payload keyed by its slot.
type SnapshotRecord struct {
	NodeID  string
	SlotID  string
	Payload models.SlotPayload
}

// LoadSnapshots reads every persisted snapshot. A single undecodable row
// fails the whole load; partially restored projects are worse than an error.
func (s *Store) LoadSnapshots(ctx context.Context) ([]SnapshotRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT node_id, slot_id, payload
		FROM slot_snapshots
		ORDER BY node_id, slot_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var records []SnapshotRecord
	for rows.Next() {
		var rec SnapshotRecord
		var data []byte
		if err := rows.Scan(&rec.NodeID, &rec.SlotID, &data); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if err := json.Unmarshal(data, &rec.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot for %s/%s: %w", rec.NodeID, rec.SlotID, err)
		}
		records = append(records, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return records, nil
}

// DeleteNodeSnapshots removes every persisted slot for a node and returns
// how many rows were deleted.
func (s *Store) DeleteNodeSnapshots(ctx context.Context, nodeID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM slot_snapshots WHERE node_id = $1
	`, nodeID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}
