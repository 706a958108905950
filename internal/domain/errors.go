package domain

import "errors"

var (
	ErrValidation       = errors.New("invalid input")
	ErrNotAuthorized    = errors.New("not authorized")
	ErrDealNotAvailable = errors.New("deal not available")
	ErrCannotSign       = errors.New("cannot sign")
	ErrNotFound         = errors.New("not found")
	ErrRateLimited      = errors.New("rate limited")
)
