package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vncsmyrnk/votewatch/internal/core/domain"
	"github.com/vncsmyrnk/votewatch/internal/core/ports"
)

// CredentialRegistry reads the local snapshot of the national voter
// registry. How the snapshot is populated is not this package's concern.
type CredentialRegistry struct {
	db *sql.DB
}

func NewCredentialRegistry(db *sql.DB) ports.CredentialVerifier {
	return &CredentialRegistry{db: db}
}

func (r *CredentialRegistry) Lookup(ctx context.Context, credentialHash string) (*domain.RegistryRecord, error) {
	query := `
		SELECT credential_hash, card_hash, is_active, polling_unit_id, ward_id, lga_id, state_id
		FROM credential_registry
		WHERE credential_hash = $1
	`
	var record domain.RegistryRecord
	err := r.db.QueryRowContext(ctx, query, credentialHash).Scan(
		&record.CredentialHash,
		&record.CardHash,
		&record.IsActive,
		&record.Assignment.PollingUnitID,
		&record.Assignment.WardID,
		&record.Assignment.LGAID,
		&record.Assignment.StateID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to look up credential: %w", err)
	}
	return &record, nil
}
