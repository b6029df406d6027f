// Package memory is an in-process implementation of every repository. It
// backs STORAGE_DRIVER=memory for local development and serves as the fake
// store in service and handler tests.
package memory

import (
	"sync"
	"time"

	"github.com/dcms/dentflow/internal/domain"
	"github.com/dcms/dentflow/internal/domain/appointment"
	"github.com/dcms/dentflow/internal/domain/catalog"
	"github.com/dcms/dentflow/internal/domain/patient"
	"github.com/dcms/dentflow/internal/domain/schedule"
	"github.com/google/uuid"
)

type Store struct {
	mu sync.RWMutex

	appointments map[uuid.UUID]*appointment.Appointment
	dentists     map[uuid.UUID]*schedule.Dentist
	weekly       map[time.Weekday]*schedule.WeeklySchedule
	overrides    map[string]*schedule.CalendarOverride
	services     map[uuid.UUID]*catalog.Service
	promos       []*catalog.Promo
	patients     map[uuid.UUID]*patient.Patient
	audit        []*domain.AuditLog

	locksMu     sync.Mutex
	dateLocks   map[string]chan struct{}
	lockTimeout time.Duration

	now func() time.Time
}

// NewStore returns an empty store. lockTimeout bounds how long WithDateLock
// waits for a busy date.
func NewStore(lockTimeout time.Duration) *Store {
	return &Store{
		appointments: make(map[uuid.UUID]*appointment.Appointment),
		dentists:     make(map[uuid.UUID]*schedule.Dentist),
		weekly:       make(map[time.Weekday]*schedule.WeeklySchedule),
		overrides:    make(map[string]*schedule.CalendarOverride),
		services:     make(map[uuid.UUID]*catalog.Service),
		patients:     make(map[uuid.UUID]*patient.Patient),
		dateLocks:    make(map[string]chan struct{}),
		lockTimeout:  lockTimeout,
		now:          time.Now,
	}
}

func (s *Store) Appointments() appointment.Repository { return &appointmentRepo{s: s} }
func (s *Store) Schedule() schedule.Repository       { return &scheduleRepo{s: s} }
func (s *Store) Catalog() catalog.Repository         { return &catalogRepo{s: s} }
func (s *Store) Patients() patient.Repository        { return &patientRepo{s: s} }
func (s *Store) Audit() *AuditRepo                   { return &AuditRepo{s: s} }

// dateLock returns the single-slot semaphore guarding one date.
func (s *Store) dateLock(date time.Time) chan struct{} {
	key := schedule.DateOf(date).Format(schedule.DateLayout)
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.dateLocks[key]
	if !ok {
		l = make(chan struct{}, 1)
		s.dateLocks[key] = l
	}
	return l
}

func (s *Store) stamp(created, updated *time.Time) {
	now := s.now().UTC()
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}
