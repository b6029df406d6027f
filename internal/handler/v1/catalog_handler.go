package v1

import (
	"time"

	"github.com/dcms/dentflow/internal/domain/catalog"
	"github.com/dcms/dentflow/internal/domain/patient"
	"github.com/dcms/dentflow/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CatalogHandler struct {
	catalog *service.CatalogService
}

func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

func (h *CatalogHandler) List(c *gin.Context) {
	list, err := h.catalog.ListServices(c.Request.Context(), !parseFlag(c.Query("include_inactive")))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := make([]serviceResponse, len(list))
	for i, s := range list {
		out[i] = toServiceResponse(s)
	}
	respondOK(c, out)
}

type createServiceRequest struct {
	Code               string     `json:"code" binding:"required,max=30"`
	Name               string     `json:"name" binding:"required,max=150"`
	Description        string     `json:"description"`
	EstimatedMinutes   int        `json:"estimated_minutes" binding:"required"`
	Price              float64    `json:"price"`
	FollowUpOf         *uuid.UUID `json:"follow_up_of"`
	FollowUpWindowDays int        `json:"follow_up_window_days"`
}

func (h *CatalogHandler) Create(c *gin.Context) {
	var req createServiceRequest
	if !bindJSON(c, &req) {
		return
	}
	svc, err := h.catalog.CreateService(c.Request.Context(), &catalog.CreateServiceCommand{
		Code:               req.Code,
		Name:               req.Name,
		Description:        req.Description,
		EstimatedMinutes:   req.EstimatedMinutes,
		Price:              req.Price,
		FollowUpOf:         req.FollowUpOf,
		FollowUpWindowDays: req.FollowUpWindowDays,
	}, actor(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, toServiceResponse(svc))
}

type createPromoRequest struct {
	Name       string  `json:"name" binding:"required,max=150"`
	PromoPrice float64 `json:"promo_price"`
	StartsOn   string  `json:"starts_on" binding:"required"`
	EndsOn     string  `json:"ends_on" binding:"required"`
}

func (h *CatalogHandler) CreatePromo(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req createPromoRequest
	if !bindJSON(c, &req) {
		return
	}
	starts, ok := parseDate(c, req.StartsOn, "starts_on")
	if !ok {
		return
	}
	ends, ok := parseDate(c, req.EndsOn, "ends_on")
	if !ok {
		return
	}
	p, err := h.catalog.CreatePromo(c.Request.Context(), &catalog.CreatePromoCommand{
		ServiceID:  id,
		Name:       req.Name,
		PromoPrice: req.PromoPrice,
		StartsOn:   starts,
		EndsOn:     ends,
	}, actor(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, toPromoResponse(p))
}

type PatientHandler struct {
	patients *service.PatientService
}

func NewPatientHandler(patients *service.PatientService) *PatientHandler {
	return &PatientHandler{patients: patients}
}

type registerPatientRequest struct {
	FirstName   string `json:"first_name" binding:"required,max=100"`
	LastName    string `json:"last_name" binding:"required,max=100"`
	DateOfBirth string `json:"date_of_birth"`
	Phone       string `json:"phone" binding:"max=20"`
	Email       string `json:"email" binding:"omitempty,email"`
	Notes       string `json:"notes"`
}

func (h *PatientHandler) Register(c *gin.Context) {
	var req registerPatientRequest
	if !bindJSON(c, &req) {
		return
	}
	var dob *time.Time
	if req.DateOfBirth != "" {
		d, ok := parseDate(c, req.DateOfBirth, "date_of_birth")
		if !ok {
			return
		}
		dob = &d
	}
	a := actor(c)
	p, err := h.patients.RegisterPatient(c.Request.Context(), &patient.CreatePatientCommand{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DateOfBirth: dob,
		Phone:       req.Phone,
		Email:       req.Email,
		Notes:       req.Notes,
		CreatedBy:   a.UserID,
	}, a)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, toPatientResponse(p))
}

func (h *PatientHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	p, err := h.patients.GetPatient(c.Request.Context(), id, actor(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toPatientResponse(p))
}
