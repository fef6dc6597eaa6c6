package wizard

import "errors"

var (
	// ErrNotFinalStep is returned when Submit is called before the last step.
	ErrNotFinalStep = errors.New("wizard: submit is only allowed on the final step")

	// ErrCaptchaPending is returned when no verification token is available.
	ErrCaptchaPending = errors.New("wizard: verification token missing")

	// ErrStepInvalid is returned when the final step fails validation.
	ErrStepInvalid = errors.New("wizard: step has invalid fields")

	// ErrSubmitting is returned while a submission is in flight.
	ErrSubmitting = errors.New("wizard: submission in progress")

	// ErrAlreadySubmitted is returned once the lead was accepted.
	ErrAlreadySubmitted = errors.New("wizard: lead already submitted")
)
