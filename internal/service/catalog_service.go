package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dcms/dentflow/internal/domain"
	"github.com/dcms/dentflow/internal/domain/appointment"
	"github.com/dcms/dentflow/internal/domain/catalog"
	"github.com/dcms/dentflow/internal/domain/schedule"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type dayResolver interface {
	ResolveDay(ctx context.Context, date time.Time) (*schedule.ClinicDay, error)
}

type CatalogService struct {
	repo         catalog.Repository
	appointments appointment.Repository
	days         dayResolver
	auditSvc     *AuditService
	log          *zap.Logger
}

func NewCatalogService(
	repo catalog.Repository,
	appointments appointment.Repository,
	days dayResolver,
	auditSvc *AuditService,
	log *zap.Logger,
) *CatalogService {
	return &CatalogService{
		repo:         repo,
		appointments: appointments,
		days:         days,
		auditSvc:     auditSvc,
		log:          log,
	}
}

// OfferedService is a service as priced for one date.
type OfferedService struct {
	ID               uuid.UUID  `json:"id"`
	Code             string     `json:"code"`
	Name             string     `json:"name"`
	Description      string     `json:"description,omitempty"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	Blocks           int        `json:"blocks"`
	Price            float64    `json:"price"`
	PromoPrice       *float64   `json:"promo_price,omitempty"`
	PromoName        string     `json:"promo_name,omitempty"`
	FollowUpOf       *uuid.UUID `json:"follow_up_of,omitempty"`
}

// AvailableServices lists what can be booked on date. Nothing is offered on a
// closed day. Follow-up services are only listed for a patient who completed
// the parent service inside its follow-up window.
func (s *CatalogService) AvailableServices(ctx context.Context, date time.Time, patientID *uuid.UUID, actor Actor) ([]OfferedService, error) {
	if actor.Role == domain.RolePatient {
		patientID = actor.PatientID
	}

	day, err := s.days.ResolveDay(ctx, date)
	if err != nil {
		return nil, err
	}
	out := []OfferedService{}
	if !day.IsOpen {
		return out, nil
	}

	services, err := s.repo.ListServices(ctx, true)
	if err != nil {
		return nil, err
	}
	promos, err := s.repo.PromosOn(ctx, date)
	if err != nil {
		return nil, err
	}

	for _, svc := range services {
		if svc.IsFollowUp() {
			eligible, err := s.followUpEligible(ctx, svc, patientID, date)
			if err != nil {
				return nil, err
			}
			if !eligible {
				continue
			}
		}

		o := OfferedService{
			ID:               svc.ID,
			Code:             svc.Code,
			Name:             svc.Name,
			Description:      svc.Description,
			EstimatedMinutes: svc.EstimatedMinutes,
			Blocks:           svc.Blocks(),
			Price:            svc.Price,
			FollowUpOf:       svc.FollowUpOf,
		}
		if p := catalog.BestPromo(promos, svc.ID, date); p != nil {
			price := p.PromoPrice
			o.PromoPrice = &price
			o.PromoName = p.Name
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *CatalogService) followUpEligible(ctx context.Context, svc *catalog.Service, patientID *uuid.UUID, date time.Time) (bool, error) {
	if patientID == nil {
		return false, nil
	}
	since := schedule.DateOf(date).AddDate(0, 0, -svc.FollowUpWindowDays)
	return s.appointments.HasCompletedService(ctx, *patientID, *svc.FollowUpOf, since)
}

// PriceOn is the price charged for svc on date.
func (s *CatalogService) PriceOn(ctx context.Context, svc *catalog.Service, date time.Time) (float64, error) {
	promos, err := s.repo.PromosOn(ctx, date)
	if err != nil {
		return 0, err
	}
	if p := catalog.BestPromo(promos, svc.ID, date); p != nil {
		return p.PromoPrice, nil
	}
	return svc.Price, nil
}

func (s *CatalogService) ListServices(ctx context.Context, activeOnly bool) ([]*catalog.Service, error) {
	return s.repo.ListServices(ctx, activeOnly)
}

func (s *CatalogService) GetService(ctx context.Context, id uuid.UUID) (*catalog.Service, error) {
	return s.repo.GetService(ctx, id)
}

func (s *CatalogService) CreateService(ctx context.Context, cmd *catalog.CreateServiceCommand, actor Actor) (*catalog.Service, error) {
	var errs []string
	if strings.TrimSpace(cmd.Code) == "" {
		errs = append(errs, "code is required")
	}
	if strings.TrimSpace(cmd.Name) == "" {
		errs = append(errs, "name is required")
	}
	if cmd.EstimatedMinutes < 1 || cmd.EstimatedMinutes > 480 {
		errs = append(errs, catalog.ErrInvalidDuration.Error())
	}
	if cmd.Price < 0 {
		errs = append(errs, "price cannot be negative")
	}
	if cmd.FollowUpOf != nil {
		if cmd.FollowUpWindowDays <= 0 {
			errs = append(errs, "follow_up_window_days must be positive for a follow-up service")
		}
		if _, err := s.repo.GetService(ctx, *cmd.FollowUpOf); err != nil {
			if !errors.Is(err, catalog.ErrServiceNotFound) {
				return nil, err
			}
			errs = append(errs, "follow_up_of: unknown service")
		}
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	svc := &catalog.Service{
		Code:               strings.ToUpper(strings.TrimSpace(cmd.Code)),
		Name:               strings.TrimSpace(cmd.Name),
		Description:        strings.TrimSpace(cmd.Description),
		EstimatedMinutes:   cmd.EstimatedMinutes,
		Price:              cmd.Price,
		IsActive:           true,
		FollowUpOf:         cmd.FollowUpOf,
		FollowUpWindowDays: cmd.FollowUpWindowDays,
	}
	if err := s.repo.CreateService(ctx, svc); err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, actor.audit(domain.ActionCreate, "service", svc.ID.String(), ""))
	s.log.Info("service created", zap.String("service_id", svc.ID.String()), zap.String("code", svc.Code))
	return svc, nil
}

func (s *CatalogService) CreatePromo(ctx context.Context, cmd *catalog.CreatePromoCommand, actor Actor) (*catalog.Promo, error) {
	svc, err := s.repo.GetService(ctx, cmd.ServiceID)
	if err != nil {
		return nil, err
	}

	var errs []string
	if strings.TrimSpace(cmd.Name) == "" {
		errs = append(errs, "name is required")
	}
	if cmd.EndsOn.Before(cmd.StartsOn) {
		errs = append(errs, catalog.ErrInvalidPromoWindow.Error())
	}
	if cmd.PromoPrice < 0 || cmd.PromoPrice >= svc.Price {
		errs = append(errs, catalog.ErrInvalidPromoPrice.Error())
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	p := &catalog.Promo{
		ServiceID:  svc.ID,
		Name:       strings.TrimSpace(cmd.Name),
		PromoPrice: cmd.PromoPrice,
		StartsOn:   schedule.DateOf(cmd.StartsOn),
		EndsOn:     schedule.DateOf(cmd.EndsOn),
	}
	if err := s.repo.CreatePromo(ctx, p); err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, actor.audit(domain.ActionCreate, "service_promo", p.ID.String(), ""))
	return p, nil
}
