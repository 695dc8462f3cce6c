package domain

import "errors"

var (
	ErrEntryNotFound      = errors.New("cache entry not found")
	ErrCoordinatorClosed  = errors.New("fetch coordinator is closed")
	ErrSchedulerRunning   = errors.New("scheduler already ticking")
	ErrSchedulerNotActive = errors.New("scheduler is not ticking")
)
