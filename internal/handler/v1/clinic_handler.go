package v1

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dcms/dentflow/internal/domain/schedule"
	"github.com/dcms/dentflow/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ClinicHandler struct {
	scheduling *service.SchedulingService
}

func NewClinicHandler(scheduling *service.SchedulingService) *ClinicHandler {
	return &ClinicHandler{scheduling: scheduling}
}

func (h *ClinicHandler) Day(c *gin.Context) {
	date, ok := parseDate(c, c.Param("date"), "date")
	if !ok {
		return
	}
	snap, err := h.scheduling.DaySnapshot(c.Request.Context(), date)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, snap)
}

func (h *ClinicHandler) ListWeekly(c *gin.Context) {
	list, err := h.scheduling.ListWeeklySchedules(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := make([]weeklyResponse, len(list))
	for i, ws := range list {
		out[i] = toWeeklyResponse(ws)
	}
	respondOK(c, out)
}

type weeklyRequest struct {
	IsOpen    bool            `json:"is_open"`
	OpenTime  *schedule.Clock `json:"open_time"`
	CloseTime *schedule.Clock `json:"close_time"`
	Capacity  int             `json:"capacity"`
}

// parseWeekday accepts 0-6 (Sunday = 0) or an English day name.
func parseWeekday(raw string) (time.Weekday, bool) {
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Weekday(n), n >= 0 && n <= 6
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), raw) || strings.EqualFold(d.String()[:3], raw) {
			return d, true
		}
	}
	return 0, false
}

func (h *ClinicHandler) UpsertWeekly(c *gin.Context) {
	weekday, ok := parseWeekday(c.Param("weekday"))
	if !ok {
		respondError(c, http.StatusBadRequest, schedule.ErrInvalidWeekday.Error())
		return
	}
	var req weeklyRequest
	if !bindJSON(c, &req) {
		return
	}
	ws, err := h.scheduling.UpsertWeeklySchedule(c.Request.Context(), &schedule.UpsertWeeklyCommand{
		Weekday:   weekday,
		IsOpen:    req.IsOpen,
		OpenTime:  req.OpenTime,
		CloseTime: req.CloseTime,
		Capacity:  req.Capacity,
	}, actor(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toWeeklyResponse(ws))
}

type overrideRequest struct {
	IsOpen     *bool           `json:"is_open"`
	OpenTime   *schedule.Clock `json:"open_time"`
	CloseTime  *schedule.Clock `json:"close_time"`
	Capacity   *int            `json:"capacity"`
	DentistIDs []uuid.UUID     `json:"dentist_ids"`
	Note       string          `json:"note" binding:"max=500"`
}

func (h *ClinicHandler) UpsertOverride(c *gin.Context) {
	date, ok := parseDate(c, c.Param("date"), "date")
	if !ok {
		return
	}
	var req overrideRequest
	if !bindJSON(c, &req) {
		return
	}
	ov, err := h.scheduling.UpsertOverride(c.Request.Context(), &schedule.UpsertOverrideCommand{
		Date:       date,
		IsOpen:     req.IsOpen,
		OpenTime:   req.OpenTime,
		CloseTime:  req.CloseTime,
		Capacity:   req.Capacity,
		DentistIDs: req.DentistIDs,
		Note:       req.Note,
	}, actor(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toOverrideResponse(ov))
}

func (h *ClinicHandler) ListDentists(c *gin.Context) {
	list, err := h.scheduling.ListDentists(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := make([]dentistResponse, len(list))
	for i, d := range list {
		out[i] = toDentistResponse(d)
	}
	respondOK(c, out)
}

type createDentistRequest struct {
	Code   string               `json:"code" binding:"required,max=30"`
	Name   string               `json:"name" binding:"required,max=150"`
	Status string               `json:"status"`
	Week   schedule.WeeklyHours `json:"weekly_hours"`
}

func (h *ClinicHandler) CreateDentist(c *gin.Context) {
	var req createDentistRequest
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.scheduling.CreateDentist(c.Request.Context(), &schedule.CreateDentistCommand{
		Code:   req.Code,
		Name:   req.Name,
		Status: schedule.DentistStatus(req.Status),
		Week:   req.Week,
	}, actor(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, toDentistResponse(d))
}

type updateDentistRequest struct {
	Name   *string                 `json:"name"`
	Status *schedule.DentistStatus `json:"status"`
	Week   *schedule.WeeklyHours   `json:"weekly_hours"`
}

func (h *ClinicHandler) UpdateDentist(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updateDentistRequest
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.scheduling.UpdateDentist(c.Request.Context(), id, &schedule.UpdateDentistCommand{
		Name:   req.Name,
		Status: req.Status,
		Week:   req.Week,
	}, actor(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toDentistResponse(d))
}
