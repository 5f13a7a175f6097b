package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/pioneer/internal/audit"
	auditdomain "github.com/smallbiznis/pioneer/internal/audit/domain"
	"github.com/smallbiznis/pioneer/internal/auth"
	"github.com/smallbiznis/pioneer/internal/authorization"
	"github.com/smallbiznis/pioneer/internal/config"
	"github.com/smallbiznis/pioneer/internal/conversion"
	conversiondomain "github.com/smallbiznis/pioneer/internal/conversion/domain"
	"github.com/smallbiznis/pioneer/internal/engagement"
	engagementdomain "github.com/smallbiznis/pioneer/internal/engagement/domain"
	"github.com/smallbiznis/pioneer/internal/invitation"
	invitationdomain "github.com/smallbiznis/pioneer/internal/invitation/domain"
	"github.com/smallbiznis/pioneer/internal/notification"
	notificationdomain "github.com/smallbiznis/pioneer/internal/notification/domain"
	"github.com/smallbiznis/pioneer/internal/observability"
	obsmiddleware "github.com/smallbiznis/pioneer/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/pioneer/internal/observability/metrics"
	obstracing "github.com/smallbiznis/pioneer/internal/observability/tracing"
	"github.com/smallbiznis/pioneer/internal/providers/email"
	"github.com/smallbiznis/pioneer/internal/ratelimit"
	"github.com/smallbiznis/pioneer/internal/referral"
	"github.com/smallbiznis/pioneer/internal/scheduler"
	"github.com/smallbiznis/pioneer/internal/wallet"
	walletdomain "github.com/smallbiznis/pioneer/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module wires the HTTP surface and every service it fronts. Core
// infrastructure (config, observability, db, clock, snowflake) comes from the app.
var Module = fx.Module("http.server",
	authorization.Module,
	auth.Module,
	audit.Module,
	email.Module,
	ratelimit.Module,
	referral.Module,
	invitation.Module,
	engagement.Module,
	notification.Module,
	wallet.Module,
	conversion.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(log, obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
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
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	verifier        *auth.Verifier
	authzSvc        authorization.Service
	invitationSvc   invitationdomain.Service
	engagementSvc   engagementdomain.Service
	conversionSvc   conversiondomain.Service
	notificationSvc notificationdomain.Service
	walletSvc       walletdomain.Service
	auditSvc        auditdomain.Service
	links           *referral.LinkBuilder

	scheduler *scheduler.Scheduler
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	Verifier        *auth.Verifier
	AuthzSvc        authorization.Service
	InvitationSvc   invitationdomain.Service
	EngagementSvc   engagementdomain.Service
	ConversionSvc   conversiondomain.Service
	NotificationSvc notificationdomain.Service
	WalletSvc       walletdomain.Service
	AuditSvc        auditdomain.Service `optional:"true"`
	Links           *referral.LinkBuilder
	Scheduler       *scheduler.Scheduler `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		verifier:        p.Verifier,
		authzSvc:        p.AuthzSvc,
		invitationSvc:   p.InvitationSvc,
		engagementSvc:   p.EngagementSvc,
		conversionSvc:   p.ConversionSvc,
		notificationSvc: p.NotificationSvc,
		walletSvc:       p.WalletSvc,
		auditSvc:        p.AuditSvc,
		links:           p.Links,
		scheduler:       p.Scheduler,
	}
}

// RegisterRoutes mounts every route group on the engine.
func RegisterRoutes(s *Server) {
	s.RegisterWebhookRoutes()
	s.RegisterAPIRoutes()
	s.RegisterSchedulerRoutes()
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterWebhookRoutes() {
	s.engine.POST("/webhook", s.WebhookTokenRequired(), s.HandleEngagementWebhook)
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.AuthRequired())

	// -------- Invitations --------
	api.POST("/invitations", s.authorize(authorization.ObjectInvitation, authorization.ActionInvitationIssue), s.IssueInvitations)
	api.GET("/invitations", s.authorize(authorization.ObjectInvitation, authorization.ActionInvitationView), s.ListInvitations)

	// -------- Conversions --------
	api.POST("/conversions", s.authorize(authorization.ObjectConversion, authorization.ActionConversionConfirm), s.ConfirmConversion)

	// -------- Referral links --------
	api.GET("/referrals/link", s.authorize(authorization.ObjectReferral, authorization.ActionReferralView), s.GetReferralLink)
	api.GET("/referrals/qr", s.authorize(authorization.ObjectReferral, authorization.ActionReferralView), s.GetReferralQRCode)

	// -------- Notifications --------
	api.GET("/notifications", s.authorize(authorization.ObjectNotification, authorization.ActionNotificationView), s.ListNotifications)
	api.POST("/notifications/:id/read", s.authorize(authorization.ObjectNotification, authorization.ActionNotificationUpdate), s.MarkNotificationRead)

	// -------- Wallet --------
	api.GET("/wallet", s.authorize(authorization.ObjectWallet, authorization.ActionWalletView), s.GetWallet)

	// -------- Audit Logs --------
	api.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}
