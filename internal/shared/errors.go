package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrMissingQueue  = fmt.Errorf("work queue URL not configured")

	// Work queue errors
	ErrQueueRequest = fmt.Errorf("work queue request failed")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
