package app

import "errors"

// Sentinel errors mapped to HTTP statuses at the server layer.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUserNotFound        = errors.New("user not found")
	ErrChannelNotFound     = errors.New("channel not found")
	ErrIdeaNotFound        = errors.New("video idea not found")
	ErrAssetNotFound       = errors.New("asset not found")
	ErrJobNotFound         = errors.New("generation job not found")
	ErrPaymentNotCompleted = errors.New("payment not completed")
	ErrPaymentMismatch     = errors.New("payment does not belong to caller")
)
