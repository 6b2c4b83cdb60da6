package apperr

import "errors"

// Error kinds shared by services and handlers. Services wrap these so
// handlers can pick a status code without matching on message strings.
var (
	// ErrValidation indicates input that was rejected before any store call.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a referenced record that does not exist. Plain
	// absence of an optional record (no entry yet, no participant yet) is not
	// an error and is returned as a nil value instead.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a recoverable uniqueness conflict, e.g. joining a
	// challenge twice or an invite-code collision.
	ErrConflict = errors.New("conflict")

	// ErrUnavailable indicates a transient store or blob-storage failure.
	// Callers may retry; the engine never retries on its own.
	ErrUnavailable = errors.New("temporarily unavailable")
)

// ValidationError carries the rejected field and a human-readable reason.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// Unwrap makes errors.Is(err, ErrValidation) work.
func (e ValidationError) Unwrap() error {
	return ErrValidation
}

func IsValidation(err error) bool  { return errors.Is(err, ErrValidation) }
func IsNotFound(err error) bool    { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool    { return errors.Is(err, ErrConflict) }
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }
