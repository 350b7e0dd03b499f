// Package notify carries the contract between the resilience layer and
// whatever presentation surface shows progress to coordinators. Calls are
// fire-and-forget; no return value is consumed.
package notify

import "log/slog"

// Sink receives progress, success, and failure messages with enough
// context (operation name, attempt counts, final error) for a UI to render
// them without the core depending on any specific mechanism.
type Sink interface {
	Retrying(op string, attempt int, err error)
	Succeeded(op string, attempts int)
	Failed(op string, attempts int, err error)
	Restored(key string)
}

// SlogSink logs notifications through slog.
type SlogSink struct{}

func (SlogSink) Retrying(op string, attempt int, err error) {
	slog.Info("Retrying operation", "op", op, "attempt", attempt, "error", err)
}

func (SlogSink) Succeeded(op string, attempts int) {
	slog.Debug("Operation succeeded", "op", op, "attempts", attempts)
}

func (SlogSink) Failed(op string, attempts int, err error) {
	slog.Warn("Operation failed", "op", op, "attempts", attempts, "error", err)
}

func (SlogSink) Restored(key string) {
	slog.Info("Restored previous value after failed update", "key", key)
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) Retrying(string, int, error) {}
func (Nop) Succeeded(string, int)       {}
func (Nop) Failed(string, int, error)   {}
func (Nop) Restored(string)             {}
