package app

import (
	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/ports"
)

var (
	ErrNotFound = ports.ErrNotFound
	ErrConflict = ports.ErrConflict
)

// CodedError permet aux executors de renvoyer un code d'erreur stable,
// persisté dans Job.errorCode.
//
// Codes utilisés: invalid_params, auth_failed, subscription_invalid, io_error.
type CodedError struct {
	Code    string
	Message string
	Err     error
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *CodedError) Unwrap() error { return e.Err }
