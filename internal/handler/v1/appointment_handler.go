package v1

import (
	"net/http"
	"strings"

	"github.com/dcms/dentflow/internal/domain/appointment"
	"github.com/dcms/dentflow/internal/domain/schedule"
	"github.com/dcms/dentflow/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AppointmentHandler struct {
	scheduling   *service.SchedulingService
	catalog      *service.CatalogService
	appointments *service.AppointmentService
}

func NewAppointmentHandler(scheduling *service.SchedulingService, catalog *service.CatalogService, appointments *service.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{scheduling: scheduling, catalog: catalog, appointments: appointments}
}

// AvailableSlots handles GET /available-slots?date=&service_id=&honor_preferred_dentist=&patient_id=
func (h *AppointmentHandler) AvailableSlots(c *gin.Context) {
	date, ok := parseDate(c, c.Query("date"), "date")
	if !ok {
		return
	}
	serviceID, err := uuid.Parse(c.Query("service_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid service_id: must be a valid UUID")
		return
	}
	patientID, ok := parseOptionalUUID(c, "patient_id")
	if !ok {
		return
	}

	res, err := h.scheduling.AvailableSlots(c.Request.Context(), service.SlotsQuery{
		Date:           date,
		ServiceID:      serviceID,
		HonorPreferred: parseFlag(c.Query("honor_preferred_dentist")),
		PatientID:      patientID,
	}, actor(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	// Returned bare so clients read slots and metadata at the top level.
	c.JSON(http.StatusOK, res)
}

// AvailableServices handles GET /available-services?date=&patient_id=
func (h *AppointmentHandler) AvailableServices(c *gin.Context) {
	date, ok := parseDate(c, c.Query("date"), "date")
	if !ok {
		return
	}
	patientID, ok := parseOptionalUUID(c, "patient_id")
	if !ok {
		return
	}

	list, err := h.catalog.AvailableServices(c.Request.Context(), date, patientID, actor(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, list)
}

type bookRequest struct {
	PatientID             *uuid.UUID `json:"patient_id"`
	ServiceID             uuid.UUID  `json:"service_id"`
	Date                  string     `json:"date" binding:"required"`
	StartTime             string     `json:"start_time" binding:"required"`
	HonorPreferredDentist bool       `json:"honor_preferred_dentist"`
	PaymentMethod         string     `json:"payment_method" binding:"required"`
	Notes                 string     `json:"notes" binding:"max=2000"`
}

// Book handles POST /appointments. An Idempotency-Key header makes retries
// return the original booking.
func (h *AppointmentHandler) Book(c *gin.Context) {
	var req bookRequest
	if !bindJSON(c, &req) {
		return
	}
	date, ok := parseDate(c, req.Date, "date")
	if !ok {
		return
	}
	start, err := schedule.ParseClock(req.StartTime)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "start_time must be HH:MM", Code: "INVALID_START_TIME"})
		return
	}

	cmd := &appointment.BookCommand{
		ServiceID:             req.ServiceID,
		Date:                  date,
		StartTime:             start,
		HonorPreferredDentist: req.HonorPreferredDentist,
		PaymentMethod:         appointment.PaymentMethod(strings.ToLower(req.PaymentMethod)),
		Notes:                 req.Notes,
		IdempotencyKey:        c.GetHeader("Idempotency-Key"),
	}
	if req.PatientID != nil {
		cmd.PatientID = *req.PatientID
	}

	a, replayed, err := h.appointments.Book(c.Request.Context(), cmd, actor(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if replayed {
		c.Header("Idempotent-Replayed", "true")
		respondOK(c, toAppointmentResponse(a))
		return
	}
	respondCreated(c, toAppointmentResponse(a))
}

func (h *AppointmentHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	a, err := h.appointments.GetAppointment(c.Request.Context(), id, actor(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toAppointmentResponse(a))
}

func (h *AppointmentHandler) List(c *gin.Context) {
	q := &appointment.ListAppointmentsQuery{
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "page_size", 20),
	}
	var ok bool
	if q.PatientID, ok = parseOptionalUUID(c, "patient_id"); !ok {
		return
	}
	if q.DentistID, ok = parseOptionalUUID(c, "dentist_id"); !ok {
		return
	}
	if q.DateFrom, ok = parseOptionalDate(c, "date_from"); !ok {
		return
	}
	if q.DateTo, ok = parseOptionalDate(c, "date_to"); !ok {
		return
	}
	if raw := c.Query("status"); raw != "" {
		st := appointment.Status(raw)
		q.Status = &st
	}

	page, err := h.appointments.ListAppointments(c.Request.Context(), q, actor(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	items := make([]appointmentResponse, len(page.Appointments))
	for i, a := range page.Appointments {
		items[i] = toAppointmentResponse(a)
	}
	respondOK(c, pagedResponse[appointmentResponse]{
		Items:      items,
		TotalCount: page.TotalCount,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	})
}

type changeStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason" binding:"max=500"`
}

func (h *AppointmentHandler) ChangeStatus(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req changeStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.appointments.ChangeStatus(c.Request.Context(), id, &appointment.ChangeStatusCommand{
		Status: appointment.Status(req.Status),
		Reason: req.Reason,
	}, actor(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toAppointmentResponse(a))
}

type reassignRequest struct {
	DentistID uuid.UUID `json:"dentist_schedule_id"`
}

func (h *AppointmentHandler) Reassign(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req reassignRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.appointments.Reassign(c.Request.Context(), id, &appointment.ReassignCommand{DentistID: req.DentistID}, actor(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toAppointmentResponse(a))
}
