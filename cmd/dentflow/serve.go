package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/dcms/dentflow/internal/config"
	"github.com/dcms/dentflow/internal/domain/appointment"
	"github.com/dcms/dentflow/internal/domain/catalog"
	"github.com/dcms/dentflow/internal/domain/patient"
	"github.com/dcms/dentflow/internal/domain/schedule"
	"github.com/dcms/dentflow/internal/events"
	v1 "github.com/dcms/dentflow/internal/handler/v1"
	"github.com/dcms/dentflow/internal/repository/memory"
	"github.com/dcms/dentflow/internal/repository/postgres"
	"github.com/dcms/dentflow/internal/service"
	"github.com/dcms/dentflow/pkg/auth"
	"github.com/dcms/dentflow/pkg/database"
	"github.com/dcms/dentflow/pkg/idempotency"
	"github.com/dcms/dentflow/pkg/logger"
	"github.com/dcms/dentflow/pkg/metrics"
	"github.com/dcms/dentflow/pkg/tracer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, seed)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed-demo", false, "with the memory driver, load a demo clinic on start")
	return cmd
}

type repositories struct {
	appointments appointment.Repository
	schedules    schedule.Repository
	catalog      catalog.Repository
	patients     patient.Repository
	audit        service.AuditRepository
	close        func() error
}

func openRepositories(cfg *config.Config, log *zap.Logger) (*repositories, error) {
	switch cfg.Storage.Driver {
	case "memory":
		log.Warn("using in-memory storage; data is lost on exit")
		store := memory.NewStore(cfg.Booking.LockTimeout)
		return &repositories{
			appointments: store.Appointments(),
			schedules:    store.Schedule(),
			catalog:      store.Catalog(),
			patients:     store.Patients(),
			audit:        store.Audit(),
			close:        func() error { return nil },
		}, nil
	case "postgres":
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		return &repositories{
			appointments: postgres.NewAppointmentRepository(db, cfg.Booking.LockTimeout),
			schedules:    postgres.NewScheduleRepository(db),
			catalog:      postgres.NewCatalogRepository(db),
			patients:     postgres.NewPatientRepository(db),
			audit:        postgres.NewAuditRepository(db),
			close:        sqlDB.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

func runServer(ctx context.Context, cfg *config.Config, seed bool) error {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracer.Init(cfg.Tracing, cfg.App.Version)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector(cfg.App.Name, reg)

	repos, err := openRepositories(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = repos.close() }()

	if seed {
		if cfg.Storage.Driver != "memory" {
			return errors.New("--seed-demo requires storage.driver=memory")
		}
		if err := seedDemo(ctx, repos); err != nil {
			return fmt.Errorf("seeding demo clinic: %w", err)
		}
		log.Info("demo clinic loaded")
	}

	var idem idempotency.Store = idempotency.NewMemoryStore()
	if cfg.Redis.Enabled {
		rdb, err := idempotency.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		idem = idempotency.NewRedisStore(rdb, idempotency.RedisOptions{
			BreakerFailures: cfg.Redis.BreakerFailures,
			BreakerTimeout:  cfg.Redis.BreakerTimeout,
		}, log)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, m, log)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("closing event publisher", zap.Error(err))
		}
	}()

	auditSvc := service.NewAuditService(repos.audit, m, log)
	defer auditSvc.Shutdown()

	policy := service.BookingPolicy{Location: cfg.Clinic.Location(), MaxAdvanceDays: cfg.Clinic.MaxAdvanceDays}
	scheduling := service.NewSchedulingService(repos.schedules, repos.appointments, repos.catalog, auditSvc, m, policy, log)
	catalogSvc := service.NewCatalogService(repos.catalog, repos.appointments, scheduling, auditSvc, log)
	appointments := service.NewAppointmentService(service.AppointmentDeps{
		Appointments:   repos.appointments,
		Patients:       repos.patients,
		Scheduling:     scheduling,
		Catalog:        catalogSvc,
		Idempotency:    idem,
		IdempotencyTTL: cfg.Redis.IdempotencyTTL,
		Events:         publisher,
		Audit:          auditSvc,
		Metrics:        m,
		Log:            log,
	})

	router := v1.NewRouter(v1.RouterDeps{
		Config:       cfg,
		Tokens:       auth.NewJWTManager(cfg.JWT),
		Scheduling:   scheduling,
		Catalog:      catalogSvc,
		Appointments: appointments,
		Patients:     service.NewPatientService(repos.patients, auditSvc, log),
		Metrics:      m,
		Gatherer:     reg,
		Log:          log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.App.Environment),
			zap.String("storage", cfg.Storage.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
