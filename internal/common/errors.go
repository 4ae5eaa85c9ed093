// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Campaign errors.
	ErrCampaignNotActive   = errors.New("campaign is not active")
	ErrCampaignHasFinished = errors.New("campaign has finished")

	// Renewal errors.
	ErrInvalidRenewalToken = errors.New("invalid renewal token")
	ErrNotRenewable        = errors.New("pledge is not renewable")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
)

// ConfigError indicates a malformed tier configuration, or a restricted edit
// the caller was not allowed to make. Operations failing with a ConfigError
// write nothing.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("tier config: %s", e.Reason)
}

// NewConfigError creates a ConfigError with the given reason.
func NewConfigError(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// StateError indicates an operation was requested on a pledge whose current
// state does not permit it. In batch contexts the offending pledge is skipped
// and reported; the rest of the batch proceeds.
type StateError struct {
	Op       string
	State    string
	PledgeID int64
}

func (e *StateError) Error() string {
	return fmt.Sprintf("pledge %d: cannot %s while %s", e.PledgeID, e.Op, e.State)
}

// NewStateError creates a StateError for the given pledge and operation.
func NewStateError(pledgeID int64, op, state string) error {
	return &StateError{PledgeID: pledgeID, Op: op, State: state}
}

// IsStateError reports whether err is (or wraps) a StateError.
func IsStateError(err error) bool {
	var stateErr *StateError
	return errors.As(err, &stateErr)
}

// UserError represents an error that should be shown to the operator.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsUserError reports whether err is (or wraps) a UserError.
func IsUserError(err error) bool {
	var userErr *UserError
	return errors.As(err, &userErr)
}
