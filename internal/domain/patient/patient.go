package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a patient record.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

type Patient struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	FirstName   string     `gorm:"column:first_name;type:varchar(100);not null"`
	LastName    string     `gorm:"column:last_name;type:varchar(100);not null"`
	DateOfBirth *time.Time `gorm:"column:date_of_birth;type:date"`
	Phone       string     `gorm:"column:phone;type:varchar(20);uniqueIndex"`
	Email       string     `gorm:"column:email;type:varchar(255)"`

	Status Status `gorm:"column:status;type:varchar(20);default:'active';index"`
	Notes  string `gorm:"column:notes;type:text"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
}

func (Patient) TableName() string {
	return "clinic.patients"
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p *Patient) IsActive() bool {
	return p.Status == StatusActive
}

type CreatePatientCommand struct {
	FirstName   string
	LastName    string
	DateOfBirth *time.Time
	Phone       string
	Email       string
	Notes       string
	CreatedBy   uuid.UUID
}
