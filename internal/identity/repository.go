package identity

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/carelink/care-coordination/pkg/database"
	"github.com/carelink/care-coordination/pkg/interfaces"
	"github.com/carelink/care-coordination/pkg/logger"
	"github.com/carelink/care-coordination/pkg/types"
)

// Repository implements the DirectoryRepository interface over Postgres
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new directory repository
func NewRepository(db *database.DB, log *logger.Logger) interfaces.DirectoryRepository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

// GetAccount retrieves an account by ID
func (r *Repository) GetAccount(id string) (*types.Account, error) {
	query := `
		SELECT id, name, email, COALESCE(mobile, ''), roles, active_role,
		       COALESCE(profile_image, ''), created_at, updated_at
		FROM accounts
		WHERE id = $1`

	acc := &types.Account{}
	var roles []string
	err := r.db.QueryRow(query, id).Scan(
		&acc.ID,
		&acc.Name,
		&acc.Email,
		&acc.Mobile,
		pq.Array(&roles),
		&acc.ActiveRole,
		&acc.ProfileImage,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("account not found: %s", id))
		}
		r.logger.WithError(err).Errorf("Failed to get account %s", id)
		return nil, types.NewUnavailableError(types.ErrCodeUnavailable, "failed to get account", err)
	}

	for _, role := range roles {
		acc.Roles = append(acc.Roles, types.Role(role))
	}

	return acc, nil
}

// GetProviderProfile retrieves a provider profile by its own ID
func (r *Repository) GetProviderProfile(id string) (*types.ProviderProfile, error) {
	return r.queryProfile(`WHERE id = $1`, id)
}

// GetProviderProfileByAccount retrieves a provider profile by its owning
// account's ID
func (r *Repository) GetProviderProfileByAccount(accountID string) (*types.ProviderProfile, error) {
	return r.queryProfile(`WHERE account_id = $1`, accountID)
}

func (r *Repository) queryProfile(where, arg string) (*types.ProviderProfile, error) {
	query := `
		SELECT id, account_id, COALESCE(specialty, ''), verified, active,
		       COALESCE(affiliation_id, ''), created_at, updated_at
		FROM provider_profiles ` + where

	p := &types.ProviderProfile{}
	err := r.db.QueryRow(query, arg).Scan(
		&p.ID,
		&p.AccountID,
		&p.Specialty,
		&p.Verified,
		&p.Active,
		&p.AffiliationID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("provider not found: %s", arg))
		}
		r.logger.WithError(err).Errorf("Failed to get provider profile %s", arg)
		return nil, types.NewUnavailableError(types.ErrCodeUnavailable, "failed to get provider profile", err)
	}

	return p, nil
}

// ListProviderProfilesByAccount retrieves every provider profile owned by an
// account. Most accounts own zero or one; more are tolerated.
func (r *Repository) ListProviderProfilesByAccount(accountID string) ([]*types.ProviderProfile, error) {
	query := `
		SELECT id, account_id, COALESCE(specialty, ''), verified, active,
		       COALESCE(affiliation_id, ''), created_at, updated_at
		FROM provider_profiles
		WHERE account_id = $1`

	rows, err := r.db.Query(query, accountID)
	if err != nil {
		r.logger.WithError(err).Errorf("Failed to list provider profiles for account %s", accountID)
		return nil, types.NewUnavailableError(types.ErrCodeUnavailable, "failed to list provider profiles", err)
	}
	defer rows.Close()

	var profiles []*types.ProviderProfile
	for rows.Next() {
		p := &types.ProviderProfile{}
		err := rows.Scan(
			&p.ID,
			&p.AccountID,
			&p.Specialty,
			&p.Verified,
			&p.Active,
			&p.AffiliationID,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider profile: %w", err)
		}
		profiles = append(profiles, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating provider profiles: %w", err)
	}

	return profiles, nil
}

// AffiliationExists reports whether an affiliation ID resolves
func (r *Repository) AffiliationExists(id string) (bool, error) {
	if id == "" {
		return false, nil
	}

	var exists bool
	err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM affiliations WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		r.logger.WithError(err).Errorf("Failed to check affiliation %s", id)
		return false, types.NewUnavailableError(types.ErrCodeUnavailable, "failed to check affiliation", err)
	}

	return exists, nil
}

// DefaultAffiliationID returns the configured default facility, falling back
// to any facility when no default is flagged
func (r *Repository) DefaultAffiliationID() (string, error) {
	var id string
	err := r.db.QueryRow(`SELECT id FROM affiliations ORDER BY is_default DESC, created_at ASC LIMIT 1`).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", types.NewNotFoundError(types.ErrCodeNotFound, "no affiliations available")
		}
		r.logger.WithError(err).Error("Failed to get default affiliation")
		return "", types.NewUnavailableError(types.ErrCodeUnavailable, "failed to get default affiliation", err)
	}

	return id, nil
}

// UpdateActiveRole switches the role an account is currently operating under.
// The new role must already be a member of the account's role set.
func (r *Repository) UpdateActiveRole(accountID string, role types.Role) error {
	query := `
		UPDATE accounts
		SET active_role = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND $1 = ANY(roles)`

	result, err := r.db.Exec(query, string(role), accountID)
	if err != nil {
		r.logger.WithError(err).Errorf("Failed to update active role for account %s", accountID)
		return types.NewUnavailableError(types.ErrCodeUnavailable, "failed to update active role", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Distinguish unknown account from a role outside the account's set
		if _, getErr := r.GetAccount(accountID); getErr != nil {
			return getErr
		}
		return types.NewValidationError(types.ErrCodeInvalidRole,
			fmt.Sprintf("account %s does not hold role %s", accountID, role), nil)
	}

	r.logger.Infof("Account %s switched active role to %s", accountID, role)
	return nil
}
