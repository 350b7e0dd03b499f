package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/careops/caresync/internal/core/apperr"
	"github.com/careops/caresync/internal/core/domain"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(Config{BaseURL: srv.URL}), srv
}

func TestGetPatient(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/patients/p1" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(domain.Patient{ID: "p1", FirstName: "Ada"})
	})
	defer srv.Close()

	p, err := c.GetPatient(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetPatient failed: %v", err)
	}
	if p.ID != "p1" || p.FirstName != "Ada" {
		t.Errorf("Unexpected patient %+v", p)
	}
}

func TestUpdateReferralSendsAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Expected bearer token, got %q", got)
		}
		if r.Method != http.MethodPatch {
			t.Errorf("Expected PATCH, got %s", r.Method)
		}
		json.NewEncoder(w).Encode(domain.Referral{ID: "r1", Status: domain.ReferralStatusAccepted})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "sk-test"})
	ref, err := c.UpdateReferral(context.Background(), domain.Referral{ID: "r1"})
	if err != nil {
		t.Fatalf("UpdateReferral failed: %v", err)
	}
	if ref.Status != domain.ReferralStatusAccepted {
		t.Errorf("Unexpected referral %+v", ref)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		expect apperr.Kind
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"JWT expired"}`, apperr.KindAuth},
		{"forbidden", http.StatusForbidden, `{"message":"insufficient privileges"}`, apperr.KindAuth},
		{"not found", http.StatusNotFound, `{"code":"PGRST116","message":"row not found"}`, apperr.KindValidation},
		{"conflict", http.StatusConflict, `{"code":"23505","message":"unique violation"}`, apperr.KindValidation},
		{"unprocessable", http.StatusUnprocessableEntity, `{"message":"invalid zip code"}`, apperr.KindValidation},
		{"server error", http.StatusInternalServerError, `{"message":"boom"}`, apperr.KindBusiness},
		{"gateway timeout", http.StatusGatewayTimeout, ``, apperr.KindNetwork},
	}

	for _, tt := range tests {
		c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(tt.body))
		})

		_, err := c.GetPatient(context.Background(), "p1")
		srv.Close()
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		if got := apperr.KindOf(err); got != tt.expect {
			t.Errorf("%s: classified as %v, want %v", tt.name, got, tt.expect)
		}
	}
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"}) // nothing listens here

	_, err := c.ListPatients(context.Background())
	if err == nil {
		t.Fatal("Expected error")
	}
	if got := apperr.KindOf(err); got != apperr.KindNetwork {
		t.Errorf("Transport failure classified as %v, want network", got)
	}
}
