package v1

import (
	"time"

	"github.com/dcms/dentflow/internal/domain/appointment"
	"github.com/dcms/dentflow/internal/domain/catalog"
	"github.com/dcms/dentflow/internal/domain/patient"
	"github.com/dcms/dentflow/internal/domain/schedule"
	"github.com/google/uuid"
)

type appointmentResponse struct {
	ID                    uuid.UUID  `json:"id"`
	PatientID             uuid.UUID  `json:"patient_id"`
	ServiceID             uuid.UUID  `json:"service_id"`
	Date                  string     `json:"date"`
	TimeSlot              string     `json:"time_slot"`
	Status                string     `json:"status"`
	DentistScheduleID     *uuid.UUID `json:"dentist_schedule_id"`
	HonorPreferredDentist bool       `json:"honor_preferred_dentist"`
	PaymentMethod         string     `json:"payment_method"`
	PaymentStatus         string     `json:"payment_status"`
	Price                 float64    `json:"price"`
	Notes                 string     `json:"notes,omitempty"`
	CancellationReason    string     `json:"cancellation_reason,omitempty"`
	CancelledAt           *time.Time `json:"cancelled_at,omitempty"`
	ApprovedAt            *time.Time `json:"approved_at,omitempty"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
}

func toAppointmentResponse(a *appointment.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:                    a.ID,
		PatientID:             a.PatientID,
		ServiceID:             a.ServiceID,
		Date:                  a.Date.Format(schedule.DateLayout),
		TimeSlot:              a.TimeSlot,
		Status:                string(a.Status),
		DentistScheduleID:     a.DentistScheduleID,
		HonorPreferredDentist: a.HonorPreferredDentist,
		PaymentMethod:         string(a.PaymentMethod),
		PaymentStatus:         string(a.PaymentStatus),
		Price:                 a.Price,
		Notes:                 a.Notes,
		CancellationReason:    a.CancellationReason,
		CancelledAt:           a.CancelledAt,
		ApprovedAt:            a.ApprovedAt,
		CompletedAt:           a.CompletedAt,
		CreatedAt:             a.CreatedAt,
	}
}

type pagedResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"total_count"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

type dentistResponse struct {
	ID     uuid.UUID            `json:"id"`
	Code   string               `json:"code"`
	Name   string               `json:"name"`
	Status string               `json:"status"`
	Week   schedule.WeeklyHours `json:"weekly_hours"`
}

func toDentistResponse(d *schedule.Dentist) dentistResponse {
	return dentistResponse{ID: d.ID, Code: d.Code, Name: d.Name, Status: string(d.Status), Week: d.Week}
}

type weeklyResponse struct {
	Weekday   string          `json:"weekday"`
	IsOpen    bool            `json:"is_open"`
	OpenTime  *schedule.Clock `json:"open_time"`
	CloseTime *schedule.Clock `json:"close_time"`
	Capacity  int             `json:"capacity"`
}

func toWeeklyResponse(ws *schedule.WeeklySchedule) weeklyResponse {
	return weeklyResponse{
		Weekday:   time.Weekday(ws.Weekday).String(),
		IsOpen:    ws.IsOpen,
		OpenTime:  ws.OpenTime,
		CloseTime: ws.CloseTime,
		Capacity:  ws.Capacity,
	}
}

type overrideResponse struct {
	Date       string          `json:"date"`
	IsOpen     *bool           `json:"is_open"`
	OpenTime   *schedule.Clock `json:"open_time"`
	CloseTime  *schedule.Clock `json:"close_time"`
	Capacity   *int            `json:"capacity"`
	DentistIDs []uuid.UUID     `json:"dentist_ids"`
	Note       string          `json:"note,omitempty"`
}

func toOverrideResponse(ov *schedule.CalendarOverride) overrideResponse {
	return overrideResponse{
		Date:       ov.Date.Format(schedule.DateLayout),
		IsOpen:     ov.IsOpen,
		OpenTime:   ov.OpenTime,
		CloseTime:  ov.CloseTime,
		Capacity:   ov.Capacity,
		DentistIDs: ov.DentistIDs,
		Note:       ov.Note,
	}
}

type serviceResponse struct {
	ID                 uuid.UUID  `json:"id"`
	Code               string     `json:"code"`
	Name               string     `json:"name"`
	Description        string     `json:"description,omitempty"`
	EstimatedMinutes   int        `json:"estimated_minutes"`
	Price              float64    `json:"price"`
	IsActive           bool       `json:"is_active"`
	FollowUpOf         *uuid.UUID `json:"follow_up_of,omitempty"`
	FollowUpWindowDays int        `json:"follow_up_window_days,omitempty"`
}

func toServiceResponse(s *catalog.Service) serviceResponse {
	return serviceResponse{
		ID:                 s.ID,
		Code:               s.Code,
		Name:               s.Name,
		Description:        s.Description,
		EstimatedMinutes:   s.EstimatedMinutes,
		Price:              s.Price,
		IsActive:           s.IsActive,
		FollowUpOf:         s.FollowUpOf,
		FollowUpWindowDays: s.FollowUpWindowDays,
	}
}

type promoResponse struct {
	ID         uuid.UUID `json:"id"`
	ServiceID  uuid.UUID `json:"service_id"`
	Name       string    `json:"name"`
	PromoPrice float64   `json:"promo_price"`
	StartsOn   string    `json:"starts_on"`
	EndsOn     string    `json:"ends_on"`
}

func toPromoResponse(p *catalog.Promo) promoResponse {
	return promoResponse{
		ID:         p.ID,
		ServiceID:  p.ServiceID,
		Name:       p.Name,
		PromoPrice: p.PromoPrice,
		StartsOn:   p.StartsOn.Format(schedule.DateLayout),
		EndsOn:     p.EndsOn.Format(schedule.DateLayout),
	}
}

type patientResponse struct {
	ID          uuid.UUID `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	DateOfBirth string    `json:"date_of_birth,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
	Status      string    `json:"status"`
}

func toPatientResponse(p *patient.Patient) patientResponse {
	r := patientResponse{
		ID:        p.ID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Phone:     p.Phone,
		Email:     p.Email,
		Status:    string(p.Status),
	}
	if p.DateOfBirth != nil {
		r.DateOfBirth = p.DateOfBirth.Format(schedule.DateLayout)
	}
	return r
}
