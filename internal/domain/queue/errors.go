package queue

import "errors"

var (
	ErrTicketNotFound          = errors.New("queue ticket not found")
	ErrInvalidStatus           = errors.New("unknown queue status")
	ErrInvalidStatusTransition = errors.New("invalid queue status transition")
)
