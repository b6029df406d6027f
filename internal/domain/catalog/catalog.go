package catalog

import (
	"time"

	"github.com/dcms/dentflow/internal/domain/schedule"
	"github.com/google/uuid"
)

// Service is a bookable dental treatment.
type Service struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	Code             string  `gorm:"column:code;type:varchar(30);uniqueIndex;not null"`
	Name             string  `gorm:"column:name;type:varchar(150);not null"`
	Description      string  `gorm:"column:description;type:text"`
	EstimatedMinutes int     `gorm:"column:estimated_minutes;not null"`
	Price            float64 `gorm:"column:price;type:numeric(10,2);not null"`
	IsActive         bool    `gorm:"column:is_active;not null;default:true;index"`

	// A follow-up is only offered to patients who completed FollowUpOf within
	// the last FollowUpWindowDays.
	FollowUpOf         *uuid.UUID `gorm:"column:follow_up_of;type:uuid;index"`
	FollowUpWindowDays int        `gorm:"column:follow_up_window_days;not null;default:0"`
}

func (Service) TableName() string {
	return "clinic.services"
}

// Blocks is the number of grid blocks one visit occupies.
func (s *Service) Blocks() int {
	return schedule.DurationBlocks(s.EstimatedMinutes)
}

func (s *Service) IsFollowUp() bool {
	return s.FollowUpOf != nil
}

// Promo discounts a service over an inclusive date range.
type Promo struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	ServiceID  uuid.UUID `gorm:"column:service_id;type:uuid;not null;index"`
	Name       string    `gorm:"column:name;type:varchar(150);not null"`
	PromoPrice float64   `gorm:"column:promo_price;type:numeric(10,2);not null"`
	StartsOn   time.Time `gorm:"column:starts_on;type:date;not null"`
	EndsOn     time.Time `gorm:"column:ends_on;type:date;not null"`
}

func (Promo) TableName() string {
	return "clinic.service_promos"
}

func (p *Promo) Covers(date time.Time) bool {
	d := schedule.DateOf(date)
	return !d.Before(schedule.DateOf(p.StartsOn)) && !d.After(schedule.DateOf(p.EndsOn))
}

// BestPromo returns the cheapest promo for serviceID covering date, or nil.
func BestPromo(promos []*Promo, serviceID uuid.UUID, date time.Time) *Promo {
	var best *Promo
	for _, p := range promos {
		if p.ServiceID != serviceID || !p.Covers(date) {
			continue
		}
		if best == nil || p.PromoPrice < best.PromoPrice {
			best = p
		}
	}
	return best
}

type CreateServiceCommand struct {
	Code               string
	Name               string
	Description        string
	EstimatedMinutes   int
	Price              float64
	FollowUpOf         *uuid.UUID
	FollowUpWindowDays int
}

type CreatePromoCommand struct {
	ServiceID  uuid.UUID
	Name       string
	PromoPrice float64
	StartsOn   time.Time
	EndsOn     time.Time
}
