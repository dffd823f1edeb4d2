package core

import (
	"errors"
	"fmt"
)

var (
	// ErrTransientStore marks persistence failures that a later run may not hit.
	ErrTransientStore = errors.New("transient store error")

	// ErrDataIntegrity marks records that can never be processed as stored.
	ErrDataIntegrity = errors.New("data integrity error")

	// ErrDuplicatePayment is returned when a payment for the same subscription cycle already exists.
	ErrDuplicatePayment = errors.New("payment already recorded for cycle")

	ErrNotFound = errors.New("not found")
)

// IntegrityError describes a malformed subscription skipped by a batch run.
type IntegrityError struct {
	SubscriptionID int64
	Err            error
}

func NewIntegrityError(subscriptionID int64, err error) *IntegrityError {
	return &IntegrityError{SubscriptionID: subscriptionID, Err: err}
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("subscription %d: %v", e.SubscriptionID, e.Err)
}

func (e *IntegrityError) Is(target error) bool {
	return target == ErrDataIntegrity
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying on the next scheduled run.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientStore)
}
