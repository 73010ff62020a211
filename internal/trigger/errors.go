package trigger

import (
	"errors"
	"fmt"

	"github.com/djlord-it/easy-import/internal/domain"
	"github.com/djlord-it/easy-import/internal/launcher"
)

// ErrorKind classifies launch failures. All kinds are handled identically
// by the trigger; the kind is carried for logs and metric labels.
type ErrorKind string

const (
	KindAlreadyRunning    ErrorKind = "already_running"
	KindRestartNotAllowed ErrorKind = "restart_not_allowed"
	KindAlreadyComplete   ErrorKind = "already_complete"
	KindInvalidParameters ErrorKind = "invalid_parameters"
	KindUnknown           ErrorKind = "error"
)

// LaunchError is the structured value produced when the launcher refuses or
// fails to start a run.
type LaunchError struct {
	Kind    ErrorKind
	JobName string
	Params  domain.JobParameters
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s (%s): %v", e.JobName, e.Kind, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

func newLaunchError(jobName string, params domain.JobParameters, err error) *LaunchError {
	return &LaunchError{
		Kind:    classify(err),
		JobName: jobName,
		Params:  params,
		Err:     err,
	}
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, launcher.ErrAlreadyRunning):
		return KindAlreadyRunning
	case errors.Is(err, launcher.ErrRestartNotAllowed):
		return KindRestartNotAllowed
	case errors.Is(err, launcher.ErrAlreadyComplete):
		return KindAlreadyComplete
	case errors.Is(err, launcher.ErrInvalidParameters):
		return KindInvalidParameters
	default:
		return KindUnknown
	}
}
