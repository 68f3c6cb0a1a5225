package service

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidInput     = errors.New("invalid input")

	ErrJobNotOpen        = errors.New("job is not open")
	ErrDuplicateBid      = errors.New("you already have a pending bid on this job")
	ErrBidAlreadyDecided = errors.New("bid has already been decided")
	ErrJobHasAcceptedBid = errors.New("another bid on this job was already accepted")
	ErrLeadLimitExceeded = errors.New("monthly lead limit exceeded")

	// ErrConflict is returned after bounded retries lose every race on a
	// version check. Transient; the caller may retry the request.
	ErrConflict = errors.New("concurrent update conflict, retry")
)
