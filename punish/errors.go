package punish

import (
	"fmt"

	"emperror.dev/errors"
)

// Error kinds. Every error returned to callers for a bad request wraps one of these.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrPermission = errors.New("missing permission")
	ErrCancelled  = errors.New("operation cancelled")
)

// UserError is an error meant to be shown to the person who ran the command.
type UserError struct {
	Kind    error
	Message string
}

func (e *UserError) Error() string { return e.Message }

func (e *UserError) Unwrap() error { return e.Kind }

func userErrorf(kind error, format string, args ...any) error {
	return errors.WithStack(&UserError{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

func validationf(format string, args ...any) error {
	return userErrorf(ErrValidation, format, args...)
}

// UserMessage returns the text to show for err, and false when err is internal.
func UserMessage(err error) (string, bool) {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Message, true
	}
	return "", false
}
