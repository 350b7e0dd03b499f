package remote

import (
	"context"
	"net/http"

	"github.com/careops/caresync/internal/core/domain"
)

// RankProviders scores candidate providers against a target patient and
// returns them best-first. The scoring algorithm is supplied by the
// embedding application; this package only carries the contract.
type RankProviders func(candidates []domain.CareProvider, target domain.Patient) []domain.CareProvider

// ListProviders returns all care providers.
func (c *Client) ListProviders(ctx context.Context) ([]domain.CareProvider, error) {
	var out []domain.CareProvider
	if err := c.do(ctx, http.MethodGet, "/providers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProvider fetches one provider by ID.
func (c *Client) GetProvider(ctx context.Context, id string) (domain.CareProvider, error) {
	var out domain.CareProvider
	if err := c.do(ctx, http.MethodGet, "/providers/"+id, nil, &out); err != nil {
		return domain.CareProvider{}, err
	}
	return out, nil
}

// UpdateProvider updates a provider and returns the authoritative record.
func (c *Client) UpdateProvider(ctx context.Context, p domain.CareProvider) (domain.CareProvider, error) {
	var out domain.CareProvider
	if err := c.do(ctx, http.MethodPatch, "/providers/"+p.ID, p, &out); err != nil {
		return domain.CareProvider{}, err
	}
	return out, nil
}
