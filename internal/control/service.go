package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/careops/caresync/internal/batch"
	"github.com/careops/caresync/internal/core/domain"
	"github.com/careops/caresync/internal/optimistic"
	"github.com/careops/caresync/internal/remote"
	"github.com/careops/caresync/internal/retry"
)

// Service is the operation surface the dashboard calls. Every remote write
// goes through the optimistic coordinator; reads and multi-step flows go
// through the batch executor.
type Service struct {
	app *App
}

// NewService creates the service over an assembled App.
func NewService(app *App) *Service {
	return &Service{app: app}
}

func (s *Service) policy() retry.Policy {
	return s.app.orch.ScalePolicy(s.app.basePolicy)
}

// UpdatePatient applies the edit locally right away and reconciles with
// the store's authoritative record.
func (s *Service) UpdatePatient(ctx context.Context, p domain.Patient) (domain.Patient, error) {
	return optimistic.Mutate(ctx, s.app.coord, "update patient", domain.PatientKey(p.ID), p,
		func(ctx context.Context) (domain.Patient, error) {
			return s.app.client.UpdatePatient(ctx, p)
		}, s.policy())
}

// CreateReferral creates a referral with a client-assigned ID so the
// optimistic entry and the stored record share a key.
func (s *Service) CreateReferral(ctx context.Context, r domain.Referral) (domain.Referral, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = domain.ReferralStatusPending
	}
	return optimistic.Mutate(ctx, s.app.coord, "create referral", domain.ReferralKey(r.ID), r,
		func(ctx context.Context) (domain.Referral, error) {
			return s.app.client.CreateReferral(ctx, r)
		}, s.policy())
}

// UpdateReferral updates a referral optimistically.
func (s *Service) UpdateReferral(ctx context.Context, r domain.Referral) (domain.Referral, error) {
	return optimistic.Mutate(ctx, s.app.coord, "update referral", domain.ReferralKey(r.ID), r,
		func(ctx context.Context) (domain.Referral, error) {
			return s.app.client.UpdateReferral(ctx, r)
		}, s.policy())
}

// AcceptReferral marks a referral accepted and discharges the patient from
// the active queue as one unit of work: if either step ultimately fails,
// nothing later in the list runs.
func (s *Service) AcceptReferral(ctx context.Context, r domain.Referral, p domain.Patient) error {
	r.Status = domain.ReferralStatusAccepted
	p.Status = domain.PatientStatusInactive

	_, err := batch.RunSequential(ctx, s.app.exec, []batch.Op[any]{
		{
			Name:   "accept referral",
			Policy: s.policy(),
			Do: func(ctx context.Context) (any, error) {
				return s.app.client.UpdateReferral(ctx, r)
			},
		},
		{
			Name:   "update patient status",
			Policy: s.policy(),
			Do: func(ctx context.Context) (any, error) {
				return s.app.client.UpdatePatient(ctx, p)
			},
		},
	})
	return err
}

// refreshList builds a batch op that fetches one list view through the
// store's cancelable refresh path, so a concurrent mutation or
// invalidation can suppress the write before a stale list lands.
func (s *Service) refreshList(name string, key domain.CacheKey, list func(ctx context.Context) (any, error)) batch.Op[[]byte] {
	return batch.Op[[]byte]{
		Name:   name,
		Policy: s.policy(),
		Do: func(ctx context.Context) ([]byte, error) {
			return s.app.store.Refresh(ctx, key, func(ctx context.Context) ([]byte, error) {
				data, err := list(ctx)
				if err != nil {
					return nil, err
				}
				return json.Marshal(data)
			})
		},
	}
}

// RefreshDashboard re-fetches the three list views concurrently and caches
// whatever succeeded. It returns how many lists could not be refreshed; a
// single failing list never blocks the others. A refresh superseded by a
// local cancellation is suppression, not failure.
func (s *Service) RefreshDashboard(ctx context.Context) (failed int, err error) {
	ops := []batch.Op[[]byte]{
		s.refreshList("refresh patients", domain.PatientListKey, func(ctx context.Context) (any, error) {
			return s.app.client.ListPatients(ctx)
		}),
		s.refreshList("refresh providers", domain.ProviderListKey, func(ctx context.Context) (any, error) {
			return s.app.client.ListProviders(ctx)
		}),
		s.refreshList("refresh referrals", domain.ReferralListKey, func(ctx context.Context) (any, error) {
			return s.app.client.ListReferrals(ctx)
		}),
	}

	_, failures := batch.RunConcurrent(ctx, s.app.exec, ops)
	for _, f := range failures {
		if errors.Is(f.Err, context.Canceled) {
			continue
		}
		failed++
	}
	return failed, nil
}

// MatchProviders fetches the patient and the provider list concurrently,
// then ranks the candidates with the supplied scoring function.
func (s *Service) MatchProviders(ctx context.Context, patientID string, rank remote.RankProviders) ([]domain.CareProvider, error) {
	var (
		patient   domain.Patient
		providers []domain.CareProvider
	)

	ops := []batch.Op[any]{
		{
			Name:   "fetch patient",
			Policy: s.policy(),
			Do: func(ctx context.Context) (any, error) {
				p, err := s.app.client.GetPatient(ctx, patientID)
				if err == nil {
					patient = p
				}
				return p, err
			},
		},
		{
			Name:   "fetch providers",
			Policy: s.policy(),
			Do: func(ctx context.Context) (any, error) {
				ps, err := s.app.client.ListProviders(ctx)
				if err == nil {
					providers = ps
				}
				return ps, err
			},
		},
	}

	if _, failures := batch.RunConcurrent(ctx, s.app.exec, ops); len(failures) > 0 {
		f := failures[0]
		return nil, fmt.Errorf("match providers: %s failed after %d attempts: %w", f.Name, f.Attempts, f.Err)
	}

	return rank(providers, patient), nil
}
