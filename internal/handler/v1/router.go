package v1

import (
	"net/http"

	"github.com/dcms/dentflow/internal/config"
	"github.com/dcms/dentflow/internal/domain"
	"github.com/dcms/dentflow/internal/service"
	"github.com/dcms/dentflow/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Config       *config.Config
	Tokens       TokenValidator
	Scheduling   *service.SchedulingService
	Catalog      *service.CatalogService
	Appointments *service.AppointmentService
	Patients     *service.PatientService
	Metrics      *metrics.Collector
	Gatherer     prometheus.Gatherer
	Log          *zap.Logger
}

func NewRouter(d RouterDeps) *gin.Engine {
	if d.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		RequestID(),
		Logger(d.Log),
		Metrics(d.Metrics),
	)
	if d.Config.Tracing.Enabled {
		r.Use(Tracing(d.Config.Tracing.ServiceName))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": d.Config.App.Version})
	})
	r.GET("/metrics", gin.WrapH(metrics.MetricsHandler(d.Gatherer)))

	appts := NewAppointmentHandler(d.Scheduling, d.Catalog, d.Appointments)
	clinic := NewClinicHandler(d.Scheduling)
	services := NewCatalogHandler(d.Catalog)
	patients := NewPatientHandler(d.Patients)

	staff := RequireRoles(domain.RoleAdmin, domain.RoleStaff)
	admin := RequireRoles(domain.RoleAdmin)

	api := r.Group("/api/v1", RateLimit(d.Config.RateLimit, d.Metrics), Authenticate(d.Tokens))
	{
		api.GET("/available-services", appts.AvailableServices)
		api.GET("/available-slots", appts.AvailableSlots)

		api.POST("/appointments", RequireRoles(domain.RolePatient, domain.RoleStaff, domain.RoleAdmin), appts.Book)
		api.GET("/appointments", appts.List)
		api.GET("/appointments/:id", appts.Get)
		api.PATCH("/appointments/:id/status", appts.ChangeStatus)
		api.PATCH("/appointments/:id/dentist", staff, appts.Reassign)

		api.GET("/clinic/days/:date", staff, clinic.Day)
		api.GET("/clinic/weekly", staff, clinic.ListWeekly)
		api.PUT("/clinic/weekly/:weekday", admin, clinic.UpsertWeekly)
		api.PUT("/clinic/overrides/:date", admin, clinic.UpsertOverride)

		api.GET("/dentists", staff, clinic.ListDentists)
		api.POST("/dentists", admin, clinic.CreateDentist)
		api.PUT("/dentists/:id", admin, clinic.UpdateDentist)

		api.GET("/services", services.List)
		api.POST("/services", admin, services.Create)
		api.POST("/services/:id/promos", admin, services.CreatePromo)

		api.POST("/patients", staff, patients.Register)
		api.GET("/patients/:id", patients.Get)
	}

	return r
}
