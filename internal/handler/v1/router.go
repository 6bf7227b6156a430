package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/medira/clinicflow/internal/config"
	"github.com/medira/clinicflow/internal/domain"
	"github.com/medira/clinicflow/internal/service"
	"github.com/medira/clinicflow/pkg/auth"
	"github.com/medira/clinicflow/pkg/metrics"
)

type RouterDeps struct {
	Config          *config.Config
	Log             *zap.Logger
	JWTManager      *auth.JWTManager
	Collector       *metrics.Collector
	AppointmentSvc  *service.AppointmentService
	QueueSvc        *service.QueueService
	ConsultationSvc *service.ConsultationService
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(deps.Log))
	r.Use(MetricsMiddleware(deps.Collector))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": deps.Config.App.Version})
	})
	r.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	appointments := NewAppointmentHandler(deps.AppointmentSvc)
	tickets := NewQueueHandler(deps.QueueSvc)
	consultations := NewConsultationHandler(deps.ConsultationSvc)
	board := NewBoardHandler(deps.QueueSvc)

	api := r.Group("/v1")
	api.Use(AuthMiddleware(deps.JWTManager))
	{
		api.POST("/appointments",
			RequireRoles(domain.RoleAdmin, domain.RoleReceptionist),
			appointments.Schedule)
		api.GET("/appointments", appointments.List)
		api.GET("/appointments/:id", appointments.Get)
		api.POST("/appointments/:id/cancel",
			RequireRoles(domain.RoleAdmin, domain.RoleReceptionist),
			appointments.Cancel)

		api.POST("/queue/tickets",
			RequireRoles(domain.RoleAdmin, domain.RoleReceptionist, domain.RoleNurse),
			tickets.CheckIn)
		api.GET("/queue/tickets", tickets.List)
		api.POST("/queue/tickets/:id/status",
			RequireRoles(domain.RoleAdmin, domain.RoleReceptionist, domain.RoleNurse, domain.RoleDoctor),
			tickets.ChangeStatus)

		api.POST("/consultations",
			RequireRoles(domain.RoleDoctor),
			consultations.Start)
		api.GET("/consultations/:id", consultations.Get)
		api.POST("/consultations/:id/finish",
			RequireRoles(domain.RoleDoctor, domain.RoleAdmin),
			consultations.Finish)

		api.GET("/board",
			RequireRoles(domain.RoleDisplay, domain.RoleAdmin, domain.RoleReceptionist, domain.RoleNurse, domain.RoleDoctor),
			board.Snapshot)
	}

	return r
}
