package optimistic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/careops/caresync/internal/cache"
	"github.com/careops/caresync/internal/core/domain"
	"github.com/careops/caresync/internal/retry"
)

func quickPolicy() retry.Policy {
	return retry.Policy{MaxRetries: 0, BaseDelay: time.Millisecond}
}

func newTestCoordinator(store cache.Store) *Coordinator {
	return NewCoordinator(store, retry.NewOrchestrator(nil), nil)
}

func TestMutateCommitsAuthoritativeValue(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	c := newTestCoordinator(store)
	key := domain.PatientKey("p1")

	optimisticPatient := domain.Patient{ID: "p1", FirstName: "Ada"}
	authoritative := domain.Patient{ID: "p1", FirstName: "Ada", LastName: "Lovelace"}

	got, err := Mutate(ctx, c, "update patient", key, optimisticPatient,
		func(ctx context.Context) (domain.Patient, error) {
			return authoritative, nil
		}, quickPolicy())
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}
	if got.LastName != "Lovelace" {
		t.Errorf("Expected authoritative result, got %+v", got)
	}

	// Cache holds the authoritative value, not the optimistic one.
	raw, ok, _ := store.Get(ctx, key)
	if !ok {
		t.Fatal("Expected cache entry after commit")
	}
	var cached domain.Patient
	if err := json.Unmarshal(raw, &cached); err != nil {
		t.Fatalf("Unmarshal cached value: %v", err)
	}
	if cached.LastName != "Lovelace" {
		t.Errorf("Cache holds %+v, want the authoritative record", cached)
	}
}

func TestMutateOptimisticValueVisibleDuringOperation(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	c := newTestCoordinator(store)
	key := domain.ReferralKey("r1")

	optimisticReferral := domain.Referral{ID: "r1", Status: domain.ReferralStatusAccepted}

	var seen domain.Referral
	_, err := Mutate(ctx, c, "update referral", key, optimisticReferral,
		func(ctx context.Context) (domain.Referral, error) {
			raw, ok, _ := store.Get(ctx, key)
			if !ok {
				t.Error("Expected optimistic entry while operation runs")
			}
			json.Unmarshal(raw, &seen)
			return optimisticReferral, nil
		}, quickPolicy())
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}

	if seen.Status != domain.ReferralStatusAccepted {
		t.Errorf("Reader saw %+v during operation, want the optimistic value", seen)
	}
}

func TestMutateRollsBackToExactSnapshot(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	c := newTestCoordinator(store)
	key := domain.PatientKey("p1")

	before := []byte(`{"id":"p1","first_name":"Ada","status":"active"}`)
	store.Set(ctx, key, before)

	_, err := Mutate(ctx, c, "update patient", key, domain.Patient{ID: "p1", FirstName: "Grace"},
		func(ctx context.Context) (domain.Patient, error) {
			return domain.Patient{}, errors.New("500 Internal Server Error")
		}, quickPolicy())
	if err == nil {
		t.Fatal("Expected error to propagate after rollback")
	}

	after, ok, _ := store.Get(ctx, key)
	if !ok {
		t.Fatal("Entry disappeared after rollback")
	}
	if !bytes.Equal(before, after) {
		t.Errorf("Rollback not byte-identical:\n before=%s\n after=%s", before, after)
	}
}

func TestMutateRollbackRemovesEntryThatDidNotExist(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	c := newTestCoordinator(store)
	key := domain.ReferralKey("r9")

	_, err := Mutate(ctx, c, "create referral", key, domain.Referral{ID: "r9"},
		func(ctx context.Context) (domain.Referral, error) {
			return domain.Referral{}, errors.New("unique violation")
		}, quickPolicy())
	if err == nil {
		t.Fatal("Expected error")
	}

	if _, ok, _ := store.Get(ctx, key); ok {
		t.Error("Rollback should remove the entry when no snapshot existed")
	}
}

func TestMutateInvalidatesRelatedListsOnSuccessOnly(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	c := newTestCoordinator(store)

	store.Set(ctx, domain.PatientListKey, []byte("[stale]"))

	// Failure leaves the derived list untouched.
	Mutate(ctx, c, "update patient", domain.PatientKey("p1"), domain.Patient{ID: "p1"},
		func(ctx context.Context) (domain.Patient, error) {
			return domain.Patient{}, errors.New("500 Internal Server Error")
		}, quickPolicy())
	if _, ok, _ := store.Get(ctx, domain.PatientListKey); !ok {
		t.Error("Failed mutation must not invalidate derived lists")
	}

	// Success marks it stale for re-fetch.
	_, err := Mutate(ctx, c, "update patient", domain.PatientKey("p1"), domain.Patient{ID: "p1"},
		func(ctx context.Context) (domain.Patient, error) {
			return domain.Patient{ID: "p1"}, nil
		}, quickPolicy())
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, domain.PatientListKey); ok {
		t.Error("Committed mutation should invalidate the patient list")
	}
}

func TestMutateCancelsPendingRefreshForKey(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	c := newTestCoordinator(store)
	key := domain.PatientKey("p1")

	fetchStarted := make(chan struct{})
	release := make(chan struct{})
	refreshDone := make(chan error, 1)

	go func() {
		_, err := store.Refresh(ctx, key, func(fetchCtx context.Context) ([]byte, error) {
			close(fetchStarted)
			<-release
			return []byte(`{"id":"p1","first_name":"Stale"}`), nil
		})
		refreshDone <- err
	}()
	<-fetchStarted

	want := domain.Patient{ID: "p1", FirstName: "Fresh"}
	got, err := Mutate(ctx, c, "update patient", key, want,
		func(ctx context.Context) (domain.Patient, error) {
			return want, nil
		}, quickPolicy())
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}

	// Let the stale read complete; it must not overwrite the mutation.
	close(release)
	if err := <-refreshDone; !errors.Is(err, context.Canceled) {
		t.Errorf("Expected the stale refresh to be canceled, got %v", err)
	}

	raw, _, _ := store.Get(ctx, key)
	var cached domain.Patient
	json.Unmarshal(raw, &cached)
	if cached.FirstName != got.FirstName {
		t.Errorf("Stale read overwrote mutation: cache=%+v", cached)
	}
}

// flakySetStore fails Set calls once armed, to exercise commit failures.
type flakySetStore struct {
	cache.Store
	mu       sync.Mutex
	failSets bool
}

func (s *flakySetStore) arm() {
	s.mu.Lock()
	s.failSets = true
	s.mu.Unlock()
}

func (s *flakySetStore) Set(ctx context.Context, key domain.CacheKey, value []byte) error {
	s.mu.Lock()
	fail := s.failSets
	s.mu.Unlock()
	if fail {
		return errors.New("connection refused")
	}
	return s.Store.Set(ctx, key, value)
}

func TestMutateCommitFailureDropsOptimisticEntry(t *testing.T) {
	ctx := context.Background()
	store := &flakySetStore{Store: cache.NewMemory()}
	c := newTestCoordinator(store)
	key := domain.PatientKey("p1")

	want := domain.Patient{ID: "p1", FirstName: "Ada"}
	_, err := Mutate(ctx, c, "update patient", key, want,
		func(ctx context.Context) (domain.Patient, error) {
			// Remote succeeds, then the local commit write starts failing.
			store.arm()
			return want, nil
		}, quickPolicy())
	if err == nil {
		t.Fatal("Expected the commit failure to propagate")
	}

	// The unconfirmed optimistic value must not survive the failed commit.
	if _, ok, _ := store.Store.Get(ctx, key); ok {
		t.Error("Cache still holds the optimistic entry after a failed commit")
	}
}

func TestKeyLocksReapedAfterMutation(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	c := newTestCoordinator(store)

	for i := 0; i < 4; i++ {
		id := string(rune('a' + i))
		p := domain.Patient{ID: id}
		_, err := Mutate(ctx, c, "update patient", domain.PatientKey(id), p,
			func(ctx context.Context) (domain.Patient, error) {
				return p, nil
			}, quickPolicy())
		if err != nil {
			t.Fatalf("Mutation %d failed: %v", i, err)
		}
	}

	c.mu.Lock()
	held := len(c.keys)
	c.mu.Unlock()
	if held != 0 {
		t.Errorf("Expected key lock map to be empty after mutations, got %d entries", held)
	}
}

func TestIndependentKeysMutateConcurrently(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	c := newTestCoordinator(store)

	var wg sync.WaitGroup
	errs := make([]error, 8)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			p := domain.Patient{ID: id}
			_, err := Mutate(ctx, c, "update patient", domain.PatientKey(id), p,
				func(ctx context.Context) (domain.Patient, error) {
					return p, nil
				}, quickPolicy())
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Mutation %d failed: %v", i, err)
		}
	}
}
