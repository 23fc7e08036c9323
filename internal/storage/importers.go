package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/csvflow/csvflow/internal/core"
)

type importerStore struct {
	db *sqlx.DB
}

// NewImporterStore creates the read-only importer resolver used by the
// pipeline. Importer management lives in a separate administrative surface.
func NewImporterStore(db *sqlx.DB) core.ImporterStore {
	return &importerStore{db: db}
}

const importerColumns = `id, user_id, name, key, webhook_enabled, webhook_url`

// ResolveKey looks up the importer matching a bearer key. Unknown keys are
// reported as not found, never as an authentication-specific error.
func (s *importerStore) ResolveKey(ctx context.Context, key string) (*core.Importer, error) {
	if !validID(key) {
		return nil, core.ErrNotFound
	}

	query := fmt.Sprintf(`SELECT %s FROM importers WHERE key = $1`, importerColumns)

	var imp core.Importer
	if err := s.db.GetContext(ctx, &imp, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("resolve importer key: %w", err)
	}
	return &imp, nil
}

// Get returns the importer only if it belongs to userID.
func (s *importerStore) Get(ctx context.Context, userID, importerID string) (*core.Importer, error) {
	if !validID(importerID) || !validID(userID) {
		return nil, core.ErrNotFound
	}

	query := fmt.Sprintf(`SELECT %s FROM importers WHERE id = $1 AND user_id = $2`, importerColumns)

	var imp core.Importer
	if err := s.db.GetContext(ctx, &imp, query, importerID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("select importer %s: %w", importerID, err)
	}
	return &imp, nil
}
