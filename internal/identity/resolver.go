package identity

import (
	"fmt"

	"github.com/carelink/care-coordination/pkg/interfaces"
	"github.com/carelink/care-coordination/pkg/logger"
	"github.com/carelink/care-coordination/pkg/types"
)

// Resolver implements the IdentityResolver interface on top of the account
// and provider directory
type Resolver struct {
	directory interfaces.DirectoryRepository
	logger    *logger.Logger
}

// NewResolver creates a new identity resolver
func NewResolver(directory interfaces.DirectoryRepository, log *logger.Logger) interfaces.IdentityResolver {
	return &Resolver{
		directory: directory,
		logger:    log,
	}
}

// ResolveProvider resolves a provider reference that may be either a
// provider-profile id or the owning account's id. Profile-id lookup wins;
// the account-id fallback covers callers that only know the login identity.
func (r *Resolver) ResolveProvider(ref string) (*types.ProviderProfile, error) {
	if ref == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "provider reference is required", nil)
	}

	profile, err := r.directory.GetProviderProfile(ref)
	if err == nil {
		return profile, nil
	}
	if !types.IsNotFound(err) {
		return nil, err
	}

	profile, err = r.directory.GetProviderProfileByAccount(ref)
	if err != nil {
		if types.IsNotFound(err) {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound,
				fmt.Sprintf("no provider matches reference %s", ref))
		}
		return nil, err
	}

	return profile, nil
}

// ProviderAccountIDs returns the set of provider identities an account may
// act as. An appointment is addressable by the profile id, so authorization
// checks need both the account id and every owned profile id.
func (r *Resolver) ProviderAccountIDs(accountID string) ([]string, error) {
	profiles, err := r.directory.ListProviderProfilesByAccount(accountID)
	if err != nil {
		return nil, err
	}

	ids := []string{accountID}
	for _, p := range profiles {
		if p.ID != accountID {
			ids = append(ids, p.ID)
		}
	}

	return ids, nil
}

// GetAccount retrieves an account by ID
func (r *Resolver) GetAccount(id string) (*types.Account, error) {
	return r.directory.GetAccount(id)
}
