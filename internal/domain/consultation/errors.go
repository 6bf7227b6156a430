package consultation

import "errors"

var (
	ErrConsultationNotFound = errors.New("consultation not found")
	ErrAlreadyFinished      = errors.New("consultation is already finished")
	ErrPractitionerBusy     = errors.New("practitioner already has an open consultation")
)
