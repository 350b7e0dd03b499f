package remote

import (
	"context"
	"net/http"

	"github.com/careops/caresync/internal/core/domain"
)

// ListPatients returns all patients visible to the coordinator.
func (c *Client) ListPatients(ctx context.Context) ([]domain.Patient, error) {
	var out []domain.Patient
	if err := c.do(ctx, http.MethodGet, "/patients", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPatient fetches one patient by ID.
func (c *Client) GetPatient(ctx context.Context, id string) (domain.Patient, error) {
	var out domain.Patient
	if err := c.do(ctx, http.MethodGet, "/patients/"+id, nil, &out); err != nil {
		return domain.Patient{}, err
	}
	return out, nil
}

// CreatePatient creates a patient and returns the stored record.
func (c *Client) CreatePatient(ctx context.Context, p domain.Patient) (domain.Patient, error) {
	var out domain.Patient
	if err := c.do(ctx, http.MethodPost, "/patients", p, &out); err != nil {
		return domain.Patient{}, err
	}
	return out, nil
}

// UpdatePatient updates a patient and returns the authoritative record.
func (c *Client) UpdatePatient(ctx context.Context, p domain.Patient) (domain.Patient, error) {
	var out domain.Patient
	if err := c.do(ctx, http.MethodPatch, "/patients/"+p.ID, p, &out); err != nil {
		return domain.Patient{}, err
	}
	return out, nil
}
