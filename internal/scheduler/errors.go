package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	appErrors "github.com/noah-isme/sma-adp-scheduler/pkg/errors"
)

var (
	// ErrMutationPending is returned when an event already has a change in flight.
	ErrMutationPending = errors.New("a change to this schedule is still being saved")
	// ErrLoadSuperseded is returned by a load whose result lost to a later load.
	ErrLoadSuperseded = errors.New("schedule load superseded by a newer request")
	// ErrReadOnly is returned when the viewer's role cannot edit schedules.
	ErrReadOnly = errors.New("schedule is read-only for this viewer")
)

// ValidationError is a client-side, pre-flight rejection. It never reaches the network.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// DataLoadError reports a failed initial fetch.
type DataLoadError struct {
	Err error
}

func (e *DataLoadError) Error() string { return fmt.Sprintf("load schedules: %v", e.Err) }
func (e *DataLoadError) Unwrap() error { return e.Err }

// PersistenceError reports a failed create, update or delete.
type PersistenceError struct {
	Op     string
	Status int
	Err    error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s schedule: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// NotFoundError reports an operation on a stale id. It is a persistence failure
// after which the caller should reload.
type NotFoundError struct {
	ID  string
	Err error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("schedule %s not found", e.ID) }
func (e *NotFoundError) Unwrap() error { return e.Err }

// SessionExpiredError wraps a 401 from the collaborator. It belongs to the external
// session flow and is passed through untouched.
type SessionExpiredError struct {
	Err error
}

func (e *SessionExpiredError) Error() string { return "session expired" }
func (e *SessionExpiredError) Unwrap() error { return e.Err }

// StatusError is the HTTP-style failure every Collaborator implementation returns.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("collaborator responded %d", e.Status)
	}
	return fmt.Sprintf("collaborator responded %d: %s", e.Status, e.Message)
}

// IsPersistence reports whether err is a PersistenceError or NotFoundError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	var nf *NotFoundError
	return errors.As(err, &pe) || errors.As(err, &nf)
}

// ReloadRecommended reports whether the caller should reload after err.
func ReloadRecommended(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err is a local ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func classifyLoad(err error) error {
	if expired := asSessionExpired(err); expired != nil {
		return expired
	}
	return &DataLoadError{Err: err}
}

func classifyMutation(op, id string, err error) error {
	if expired := asSessionExpired(err); expired != nil {
		return expired
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.Status == http.StatusNotFound && id != "" {
			return &NotFoundError{ID: id, Err: err}
		}
		return &PersistenceError{Op: op, Status: se.Status, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &PersistenceError{Op: op, Status: http.StatusGatewayTimeout, Err: err}
	}
	return &PersistenceError{Op: op, Err: err}
}

func asSessionExpired(err error) error {
	var expired *SessionExpiredError
	if errors.As(err, &expired) {
		return expired
	}
	var se *StatusError
	if errors.As(err, &se) && se.Status == http.StatusUnauthorized {
		return &SessionExpiredError{Err: err}
	}
	return nil
}

// ToAppError maps the scheduler taxonomy onto API errors.
func ToAppError(err error) *appErrors.Error {
	if err == nil {
		return nil
	}
	var (
		ve *ValidationError
		de *DataLoadError
		pe *PersistenceError
		nf *NotFoundError
		se *SessionExpiredError
	)
	switch {
	case errors.As(err, &ve):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, ve.Error())
	case errors.As(err, &se):
		return appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "session expired")
	case errors.As(err, &nf):
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, nf.Error())
	case errors.As(err, &de):
		return appErrors.Wrap(err, appErrors.ErrDataLoad.Code, appErrors.ErrDataLoad.Status, appErrors.ErrDataLoad.Message)
	case errors.As(err, &pe):
		message := appErrors.ErrPersistence.Message
		var status *StatusError
		if errors.As(pe.Err, &status) && status.Message != "" {
			message = status.Message
		}
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, message)
	case errors.Is(err, ErrMutationPending):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, err.Error())
	case errors.Is(err, ErrReadOnly):
		return appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, err.Error())
	default:
		return appErrors.FromError(err)
	}
}
