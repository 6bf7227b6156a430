package appointment

import "errors"

var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrAppointmentConflict     = errors.New("time slot unavailable")
	ErrInvalidStatusTransition = errors.New("invalid appointment status transition")
	ErrInvalidInterval         = errors.New("appointment end must be after start")
)
