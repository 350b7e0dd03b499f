package domain

import (
	"fmt"
	"strings"
)

// CacheKey identifies an entry in the client-side cache.
type CacheKey string

// Key helpers
func PatientKey(id string) CacheKey {
	return CacheKey(fmt.Sprintf("patient:%s", id))
}

func ProviderKey(id string) CacheKey {
	return CacheKey(fmt.Sprintf("provider:%s", id))
}

func ReferralKey(id string) CacheKey {
	return CacheKey(fmt.Sprintf("referral:%s", id))
}

// List keys hold the collection views the dashboard renders. A mutation of
// a single entity marks the matching list stale for re-fetch.
const (
	PatientListKey  CacheKey = "patients"
	ProviderListKey CacheKey = "providers"
	ReferralListKey CacheKey = "referrals"
)

// RelatedListKeys returns the derived list keys affected by a write to the
// given entity key.
func RelatedListKeys(key CacheKey) []CacheKey {
	s := string(key)
	switch {
	case strings.HasPrefix(s, "patient:"):
		return []CacheKey{PatientListKey}
	case strings.HasPrefix(s, "provider:"):
		return []CacheKey{ProviderListKey}
	case strings.HasPrefix(s, "referral:"):
		return []CacheKey{ReferralListKey}
	}
	return nil
}
