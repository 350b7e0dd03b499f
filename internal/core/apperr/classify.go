package apperr

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Classify determines the failure class of err by inspecting its message
// and any backend-specific codes embedded in it.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown // Should not happen
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}

	s := err.Error()
	sLower := strings.ToLower(s)

	// Auth (401/403 wordings, expired tokens)
	if strings.Contains(s, "401") || strings.Contains(s, "403") ||
		strings.Contains(sLower, "unauthorized") ||
		strings.Contains(sLower, "forbidden") ||
		strings.Contains(sLower, "jwt expired") ||
		strings.Contains(sLower, "invalid token") {
		return KindAuth
	}

	// Validation (400/404/409/422, Postgres constraint codes)
	// 23505: unique violation, 23503: foreign key violation,
	// PGRST116: row not found
	if strings.Contains(s, "400") || strings.Contains(s, "404") ||
		strings.Contains(s, "409") || strings.Contains(s, "422") ||
		strings.Contains(s, "23505") || strings.Contains(s, "23503") ||
		strings.Contains(s, "PGRST116") ||
		strings.Contains(sLower, "bad request") ||
		strings.Contains(sLower, "not found") ||
		strings.Contains(sLower, "unprocessable") ||
		strings.Contains(sLower, "conflict") ||
		strings.Contains(sLower, "unique violation") ||
		strings.Contains(sLower, "duplicate key") ||
		strings.Contains(sLower, "foreign key violation") {
		return KindValidation
	}

	// Network (transport wordings)
	if strings.Contains(sLower, "connection refused") ||
		strings.Contains(sLower, "connection reset") ||
		strings.Contains(sLower, "no such host") ||
		strings.Contains(sLower, "network is unreachable") ||
		strings.Contains(sLower, "timeout") ||
		strings.Contains(sLower, "offline") {
		return KindNetwork
	}

	// Default to Business (5xx, remote operation failures)
	return KindBusiness
}
