package patient

import "errors"

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrPatientAlreadyExists = errors.New("patient with this phone number already exists")
	ErrPatientInactive      = errors.New("operation not permitted: patient is inactive")
	ErrInvalidDateOfBirth   = errors.New("date of birth cannot be in the future")
)
