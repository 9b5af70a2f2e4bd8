package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every operation. Specific errors wrap one of these so
// callers can classify failures with errors.Is.
var (
	// ErrInvalidInput marks malformed, missing or out-of-range request data.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks a referenced entity that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a state transition that already happened, e.g. a repeated completion.
	ErrConflict = errors.New("conflict")
)

var (
	// ErrUserNotFound is returned when a profile cannot be located.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	// ErrChallengeNotFound is returned for unknown challenge ids.
	ErrChallengeNotFound = fmt.Errorf("challenge %w", ErrNotFound)
	// ErrParticipationNotFound is returned when the user has not joined the challenge.
	ErrParticipationNotFound = fmt.Errorf("challenge participation %w", ErrNotFound)
	// ErrPostNotFound is returned for unknown community post ids.
	ErrPostNotFound = fmt.Errorf("post %w", ErrNotFound)
	// ErrRecommendationNotFound is returned for unknown recommendation ids.
	ErrRecommendationNotFound = fmt.Errorf("recommendation %w", ErrNotFound)
	// ErrChallengeAlreadyCompleted guards against awarding a challenge reward twice.
	ErrChallengeAlreadyCompleted = fmt.Errorf("challenge already completed: %w", ErrConflict)
	// ErrChallengeExpired is returned when joining a challenge past its expiry.
	ErrChallengeExpired = fmt.Errorf("challenge expired: %w", ErrConflict)
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
