package payments

import (
	"errors"
	"time"
)

// StatusSucceeded is the gateway status of a captured payment intent.
const StatusSucceeded = "succeeded"

// Intent is the gateway-neutral view of a payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64
	Currency     string
	Created      time.Time
	Metadata     map[string]string
}

// IntentParams describes an intent to create. IdempotencyKey must stay the
// same across retries of one logical create.
type IntentParams struct {
	Amount         int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

// WebhookEvent is a verified gateway notification. Intent is set for
// payment intent events.
type WebhookEvent struct {
	ID     string
	Type   string
	Intent *Intent
}

var errTransient = errors.New("transient gateway failure")

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }
func (e *transientError) Is(target error) bool {
	return target == errTransient
}

// Transient marks err as safe to retry.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

func IsTransient(err error) bool {
	return errors.Is(err, errTransient)
}
