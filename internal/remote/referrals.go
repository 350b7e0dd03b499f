package remote

import (
	"context"
	"net/http"

	"github.com/careops/caresync/internal/core/domain"
)

// ListReferrals returns all referrals.
func (c *Client) ListReferrals(ctx context.Context) ([]domain.Referral, error) {
	var out []domain.Referral
	if err := c.do(ctx, http.MethodGet, "/referrals", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateReferral creates a referral and returns the stored record.
func (c *Client) CreateReferral(ctx context.Context, r domain.Referral) (domain.Referral, error) {
	var out domain.Referral
	if err := c.do(ctx, http.MethodPost, "/referrals", r, &out); err != nil {
		return domain.Referral{}, err
	}
	return out, nil
}

// UpdateReferral updates a referral and returns the authoritative record.
func (c *Client) UpdateReferral(ctx context.Context, r domain.Referral) (domain.Referral, error) {
	var out domain.Referral
	if err := c.do(ctx, http.MethodPatch, "/referrals/"+r.ID, r, &out); err != nil {
		return domain.Referral{}, err
	}
	return out, nil
}
