package catalog

import "errors"

var (
	ErrServiceNotFound    = errors.New("service not found")
	ErrServiceInactive    = errors.New("service is not offered")
	ErrFollowUpIneligible = errors.New("follow-up requires a completed parent visit within its window")
	ErrServiceCodeTaken   = errors.New("service with this code already exists")
	ErrInvalidDuration    = errors.New("estimated duration must be between 1 and 480 minutes")
	ErrInvalidPromoWindow = errors.New("promo must end on or after its start date")
	ErrInvalidPromoPrice  = errors.New("promo price must be below the regular price")
)
