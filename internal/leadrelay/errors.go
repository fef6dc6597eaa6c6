package leadrelay

import "errors"

var (
	// ErrInvalidRequest is returned when the body is not a lead submission.
	ErrInvalidRequest = errors.New("leadrelay: invalid request body")

	// ErrDelivery is returned when either email could not be sent.
	ErrDelivery = errors.New("leadrelay: email delivery failed")
)
