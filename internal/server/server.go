package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	admissiondomain "github.com/smallbiznis/meterguard/internal/admission/domain"
	auditdomain "github.com/smallbiznis/meterguard/internal/audit/domain"
	"github.com/smallbiznis/meterguard/internal/authorization"
	"github.com/smallbiznis/meterguard/internal/config"
	ledgerdomain "github.com/smallbiznis/meterguard/internal/ledger/domain"
	"github.com/smallbiznis/meterguard/internal/observability"
	obsmiddleware "github.com/smallbiznis/meterguard/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/meterguard/internal/observability/metrics"
	obstracing "github.com/smallbiznis/meterguard/internal/observability/tracing"
	quotadomain "github.com/smallbiznis/meterguard/internal/quota/domain"
	usagerecorddomain "github.com/smallbiznis/meterguard/internal/usagerecord/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, s *Server) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	admissionSvc   admissiondomain.Service
	ledgerSvc      ledgerdomain.Service
	auditSvc       auditdomain.Service
	usageRecordSvc usagerecorddomain.Service
	quotaSvc       quotadomain.Service
	authzSvc       authorization.Service
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	AdmissionSvc   admissiondomain.Service
	LedgerSvc      ledgerdomain.Service
	AuditSvc       auditdomain.Service
	UsageRecordSvc usagerecorddomain.Service
	QuotaSvc       quotadomain.Service
	AuthzSvc       authorization.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		admissionSvc:   p.AdmissionSvc,
		ledgerSvc:      p.LedgerSvc,
		auditSvc:       p.AuditSvc,
		usageRecordSvc: p.UsageRecordSvc,
		quotaSvc:       p.QuotaSvc,
		authzSvc:       p.AuthzSvc,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	// Anonymous admissions still produce an audited decision.
	api.POST("/features/:feature/admit", s.OptionalAuth(), s.Admit)

	api.GET("/usage/status", s.AuthRequired(), s.GetUsageStatus)
	api.GET("/credits/transactions", s.AuthRequired(), s.ListCreditTransactions)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.AuthRequired())

	// -------- Audit --------
	admin.GET("/audit-logs", s.authorizeAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)

	// -------- Users --------
	admin.GET("/users/:userId/usage-record", s.authorizeAction(authorization.ObjectUsageRecord, authorization.ActionUsageRecordProvision), s.GetUsageRecord)
	admin.POST("/users/:userId/credits", s.authorizeAction(authorization.ObjectCredit, authorization.ActionCreditGrant), s.GrantCredits)
	admin.POST("/users/:userId/grandfather", s.authorizeAction(authorization.ObjectUsageRecord, authorization.ActionUsageRecordProvision), s.MarkGrandfathered)
	admin.PUT("/users/:userId/partnership", s.authorizeAction(authorization.ObjectUsageRecord, authorization.ActionUsageRecordProvision), s.AssignPartnership)

	// -------- Partnerships --------
	admin.GET("/partnerships/:partnershipId/limits", s.authorizeAction(authorization.ObjectPartnership, authorization.ActionPartnershipManage), s.ListPartnershipLimits)
	admin.PUT("/partnerships/:partnershipId/limits", s.authorizeAction(authorization.ObjectPartnership, authorization.ActionPartnershipManage), s.SetPartnershipLimit)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
