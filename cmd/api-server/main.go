package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/medira/clinicflow/internal/config"
	"github.com/medira/clinicflow/internal/domain"
	"github.com/medira/clinicflow/internal/domain/appointment"
	"github.com/medira/clinicflow/internal/domain/consultation"
	"github.com/medira/clinicflow/internal/domain/patient"
	"github.com/medira/clinicflow/internal/domain/queue"
	v1 "github.com/medira/clinicflow/internal/handler/v1"
	"github.com/medira/clinicflow/internal/service"
	"github.com/medira/clinicflow/pkg/auth"
	"github.com/medira/clinicflow/pkg/database"
	"github.com/medira/clinicflow/pkg/logger"
	"github.com/medira/clinicflow/pkg/metrics"
	"github.com/medira/clinicflow/pkg/redisclient"
	"github.com/medira/clinicflow/pkg/tracer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting api-server",
		zap.String("env", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracer.Init(cfg.Tracing)
	if err != nil {
		log.Fatal("initializing tracer", zap.Error(err))
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatal("connecting to database", zap.Error(err))
	}
	if err := database.Migrate(db, log); err != nil {
		log.Fatal("migrating database", zap.Error(err))
	}

	rdb, err := redisclient.New(cfg.Redis)
	if err != nil {
		log.Fatal("connecting to redis", zap.Error(err))
	}

	collector := metrics.NewCollector("clinicflow")
	if err := database.Instrument(db, collector); err != nil {
		log.Fatal("instrumenting database", zap.Error(err))
	}
	go database.MonitorPool(rootCtx, db, collector, 15*time.Second)

	jwtMgr := auth.NewJWTManager(cfg.JWT)

	auditRepo := domain.NewAuditGormRepository(db)
	auditSvc := service.NewAuditService(auditRepo, collector, log)

	patientRepo := patient.NewGormRepository(db)
	appointmentRepo := appointment.NewGormRepository(db)
	queueRepo := queue.NewGormRepository(db)
	consultationRepo := consultation.NewGormRepository(db)

	locker := redisclient.NewCalendarLocker(rdb, cfg.Redis.LockTTL)
	counter := redisclient.NewTicketCounter(rdb)

	queueSvc := service.NewQueueService(queueRepo, patientRepo, counter, auditSvc, collector, cfg.Clinical, time.Now, log)
	appointmentSvc := service.NewAppointmentService(appointmentRepo, patientRepo, queueSvc, locker, auditSvc, collector, cfg.Clinical, log)
	consultationSvc := service.NewConsultationService(consultationRepo, queueSvc, appointmentSvc, auditSvc, cfg.Clinical, time.Now, log)

	router := v1.NewRouter(v1.RouterDeps{
		Config:          cfg,
		Log:             log,
		JWTManager:      jwtMgr,
		Collector:       collector,
		AppointmentSvc:  appointmentSvc,
		QueueSvc:        queueSvc,
		ConsultationSvc: consultationSvc,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}

	auditSvc.Shutdown()

	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error("tracer shutdown", zap.Error(err))
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := rdb.Close(); err != nil {
		log.Error("closing redis", zap.Error(err))
	}

	log.Info("api-server stopped")
}
