package v1

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dcms/dentflow/internal/domain/appointment"
	"github.com/dcms/dentflow/internal/domain/catalog"
	"github.com/dcms/dentflow/internal/domain/patient"
	"github.com/dcms/dentflow/internal/domain/schedule"
	"github.com/dcms/dentflow/internal/service"
	"github.com/dcms/dentflow/pkg/idempotency"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type APIResponse[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type ValidationErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse[any]{Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, APIResponse[any]{Data: data})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

// respondServiceError maps domain and service errors onto the booking error
// taxonomy. Codes are stable and meant for clients to branch on.
func respondServiceError(c *gin.Context, err error) {
	var validErr *service.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, ValidationErrorResponse{
			Error:  "validation failed",
			Fields: validErr.Fields,
		})
		return
	}

	var full *schedule.SlotFullError
	switch {
	case errors.Is(err, appointment.ErrBookingRaceLost):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "SLOT_FULL"})

	case errors.As(err, &full):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   err.Error(),
			Code:    "SLOT_FULL",
			Details: map[string]string{"start_time": full.Start.String()},
		})

	case errors.Is(err, schedule.ErrSlotFull):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "SLOT_FULL"})

	case errors.Is(err, schedule.ErrInvalidStartTime):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "INVALID_START_TIME"})

	case errors.Is(err, schedule.ErrNoDentistAvailable):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "NO_DENTIST_AVAILABLE"})

	case errors.Is(err, schedule.ErrClinicClosed):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "CLINIC_CLOSED"})

	case errors.Is(err, catalog.ErrServiceInactive),
		errors.Is(err, patient.ErrPatientInactive):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})

	case errors.Is(err, catalog.ErrFollowUpIneligible):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "FOLLOW_UP_NOT_ELIGIBLE"})

	case errors.Is(err, schedule.ErrInvalidDate):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_DATE"})

	case errors.Is(err, schedule.ErrInvalidClock),
		errors.Is(err, schedule.ErrInvalidHours),
		errors.Is(err, appointment.ErrInvalidStatus),
		errors.Is(err, appointment.ErrInvalidPaymentMethod):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})

	case errors.Is(err, patient.ErrPatientNotFound),
		errors.Is(err, appointment.ErrAppointmentNotFound),
		errors.Is(err, catalog.ErrServiceNotFound),
		errors.Is(err, schedule.ErrDentistNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})

	case errors.Is(err, patient.ErrPatientAlreadyExists),
		errors.Is(err, schedule.ErrDentistCodeTaken),
		errors.Is(err, catalog.ErrServiceCodeTaken),
		errors.Is(err, appointment.ErrInvalidStatusTransition),
		errors.Is(err, appointment.ErrNotReassignable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})

	case errors.Is(err, idempotency.ErrInProgress):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "IDEMPOTENCY_IN_PROGRESS"})

	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "access denied"})

	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return false
	}

	return true
}

func parseUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	raw := c.Param(param)
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + param + ": must be a valid UUID"})
		return uuid.Nil, false
	}
	return id, true
}

// parseOptionalUUID reads a query UUID; a missing value yields nil.
func parseOptionalUUID(c *gin.Context, key string) (*uuid.UUID, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + key + ": must be a valid UUID"})
		return nil, false
	}
	return &id, true
}

// parseDate reads a YYYY-MM-DD value from the named query key or path param.
func parseDate(c *gin.Context, raw, name string) (time.Time, bool) {
	d, err := schedule.ParseDate(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + name + ": expected YYYY-MM-DD", Code: "INVALID_DATE"})
		return time.Time{}, false
	}
	return d, true
}

func parseOptionalDate(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	d, ok := parseDate(c, raw, key)
	if !ok {
		return nil, false
	}
	return &d, true
}

// parseFlag accepts 1/0 as well as the usual boolean spellings.
func parseFlag(raw string) bool {
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}

func parseQueryInt(c *gin.Context, key string, defaultVal int) int {
	if raw := c.Query(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return defaultVal
}
