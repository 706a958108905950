package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CapTomas/Proofo-sub002/internal/config"
	"github.com/CapTomas/Proofo-sub002/internal/domain"
	"github.com/CapTomas/Proofo-sub002/internal/infra/db"
	"github.com/CapTomas/Proofo-sub002/internal/infra/memstore"
	"github.com/CapTomas/Proofo-sub002/internal/infra/notify"
	"github.com/CapTomas/Proofo-sub002/internal/infra/policytrust"
	"github.com/CapTomas/Proofo-sub002/internal/infra/ratelimit"
	"github.com/CapTomas/Proofo-sub002/internal/infra/storage"
	"github.com/CapTomas/Proofo-sub002/internal/usecase"
)

type Server struct {
	cfg   config.Config
	store *db.Store
	r     *gin.Engine
	log   *zap.Logger

	deals    *usecase.DealService
	sealing  *usecase.SealingEngine
	verifier *usecase.VerificationService
	tokens   *usecase.TokenProtocol
	audit    *usecase.AuditEmitter

	signatures domain.SignatureStore
	limiter    domain.RateLimiter
}

// NewServer wires the full dependency graph from configuration: postgres
// or the in-memory store, redis or local rate limiting, kafka or no-op
// notification, S3 or in-memory signature storage, and the static trust
// table unless a Rego bundle overrides it.
func NewServer(cfg config.Config, store *db.Store, log *zap.Logger) (*Server, error) {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{cfg: cfg, store: store, r: r, log: log}
	if err := s.initDeps(); err != nil {
		return nil, err
	}
	s.routes()
	return s, nil
}

// ServerDeps lets tests assemble a server from hand-built collaborators.
type ServerDeps struct {
	Deals      *usecase.DealService
	Sealing    *usecase.SealingEngine
	Verifier   *usecase.VerificationService
	Tokens     *usecase.TokenProtocol
	Audit      *usecase.AuditEmitter
	Signatures domain.SignatureStore
	Limiter    domain.RateLimiter
	Log        *zap.Logger
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:        cfg,
		r:          r,
		log:        deps.Log,
		deals:      deps.Deals,
		sealing:    deps.Sealing,
		verifier:   deps.Verifier,
		tokens:     deps.Tokens,
		audit:      deps.Audit,
		signatures: deps.Signatures,
		limiter:    deps.Limiter,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.routes()
	return s
}

func (s *Server) initDeps() error {
	if s.log == nil {
		s.log = zap.NewNop()
	}

	var (
		dealRepo  usecase.DealRepository
		tokenRepo usecase.TokenRepository
		verifRepo usecase.VerificationRepository
		codeRepo  usecase.CodeRepository
		auditRepo usecase.AuditRepository
	)
	if s.store != nil && s.store.DB != nil {
		dealRepo = db.NewDealRepository(s.store.DB)
		tokenRepo = db.NewTokenRepository(s.store.DB)
		verifRepo = db.NewVerificationRepository(s.store.DB)
		codeRepo = db.NewCodeRepository(s.store.DB)
		auditRepo = db.NewAuditRepository(s.store.DB)
	} else {
		mem := memstore.New()
		dealRepo = mem.Deals()
		tokenRepo = mem.Tokens()
		verifRepo = mem.Verifications()
		codeRepo = mem.Codes()
		auditRepo = mem.Audit()
		s.log.Warn("no postgres dsn configured, using in-memory store")
	}

	s.initRateLimit()
	policy := usecase.RateLimitPolicy{
		Requests:   s.cfg.RateLimitRequests,
		Window:     time.Duration(s.cfg.RateLimitWindowSeconds) * time.Second,
		FailClosed: s.cfg.RateLimitFailClosed,
	}
	if s.cfg.RateLimitOTPRequests > 0 {
		policy.BucketRequests = map[string]int{
			domain.RateBucketOTPIssue: s.cfg.RateLimitOTPRequests,
		}
	}

	var notifier domain.Notifier
	if s.cfg.KafkaBroker != "" {
		notifier = notify.NewKafkaNotifier(notify.KafkaConfig{
			Broker:        s.cfg.KafkaBroker,
			Topic:         s.cfg.KafkaTopic,
			Username:      s.cfg.KafkaUsername,
			Password:      s.cfg.KafkaPassword,
			From:          s.cfg.NotifyFromEmail,
			InviteBaseURL: s.cfg.InviteBaseURL,
		}, s.log)
	} else {
		notifier = notify.NopNotifier{Log: s.log}
	}

	if s.cfg.S3Bucket != "" {
		sigStore, err := storage.NewS3SignatureStore(context.Background(), storage.S3Config{
			Region:    s.cfg.S3Region,
			Bucket:    s.cfg.S3Bucket,
			Endpoint:  s.cfg.S3Endpoint,
			AccessKey: s.cfg.S3AccessKey,
			SecretKey: s.cfg.S3SecretKey,
		})
		if err != nil {
			return err
		}
		s.signatures = sigStore
	} else {
		s.signatures = storage.NewMemorySignatureStore()
		s.log.Warn("no s3 bucket configured, signatures kept in memory")
	}

	var trust usecase.TrustEvaluator = usecase.StaticTrustPolicy{}
	if s.cfg.TrustPolicyBundlePath != "" {
		engine, err := policytrust.NewEngineFromBundlePath(context.Background(), s.cfg.TrustPolicyBundlePath)
		if err != nil {
			return err
		}
		trust = engine
	}

	s.audit = usecase.NewAuditEmitter(auditRepo, nil)
	s.tokens = usecase.NewTokenProtocol(tokenRepo, s.audit, nil)
	s.verifier = &usecase.VerificationService{
		Deals:         dealRepo,
		Codes:         codeRepo,
		Verifications: verifRepo,
		Trust:         trust,
		Audit:         s.audit,
		Notifier:      notifier,
		Limiter:       s.limiter,
		RateLimit:     policy,
		Log:           s.log,
	}
	s.deals = &usecase.DealService{
		Deals:     dealRepo,
		Audit:     auditRepo,
		Emitter:   s.audit,
		Tokens:    s.tokens,
		Notifier:  notifier,
		Limiter:   s.limiter,
		RateLimit: policy,
		Log:       s.log,
	}
	s.sealing = &usecase.SealingEngine{
		Deals:         dealRepo,
		Verifications: verifRepo,
		Tokens:        s.tokens,
		Verifier:      s.verifier,
		Audit:         s.audit,
		Signatures:    s.signatures,
		Limiter:       s.limiter,
		RateLimit:     policy,
		Log:           s.log,
	}
	return nil
}

func (s *Server) initRateLimit() {
	if s.cfg.RateLimitRequests <= 0 {
		return
	}
	if s.cfg.RedisAddr != "" {
		if limiter, err := ratelimit.NewRedis(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
			s.limiter = limiter
			return
		}
		s.log.Warn("redis limiter unavailable, falling back to memory")
	}
	s.limiter = ratelimit.NewMemory(ratelimit.MemoryConfig{MaxKeys: s.cfg.RateLimitMaxKeys})
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		mode := "no-db"
		if s.store != nil && s.store.DB != nil {
			mode = "db"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": mode})
	})

	v1 := s.r.Group("/v1")
	mutating := s.checkOrigin()
	{
		v1.POST("/deals", mutating, s.handleCreateDeal)
		// The view route addresses deals by public ID; the router shares
		// one param name across the group.
		v1.GET("/deals/:deal_id", s.handleGetDeal)
		v1.POST("/deals/:deal_id/void", mutating, s.handleVoidDeal)
		v1.POST("/deals/:deal_id/confirm", mutating, s.handleConfirmDeal)
		v1.POST("/deals/:deal_id/nudge", mutating, s.handleNudgeDeal)
		v1.POST("/deals/:deal_id/verification/send", mutating, s.handleSendCode)
		v1.POST("/deals/:deal_id/verification/verify", mutating, s.handleVerifyCode)
		v1.GET("/deals/:deal_id/signature", s.handleSignatureLink)
		v1.GET("/deals/:deal_id/seal/verify", s.handleVerifySeal)
		v1.GET("/deals/:deal_id/audit", s.handleAuditTrail)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

// checkOrigin rejects cross-origin mutating requests before any state is
// touched. An empty allowlist disables the check for local development.
func (s *Server) checkOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(s.cfg.AllowedOrigins) == 0 {
			c.Next()
			return
		}
		origin := c.GetHeader("Origin")
		if origin == "" {
			// Non-browser clients send no Origin header.
			c.Next()
			return
		}
		for _, allowed := range s.cfg.AllowedOrigins {
			if origin == allowed {
				c.Next()
				return
			}
		}
		writeErrorCode(c, http.StatusForbidden, "ORIGIN_FORBIDDEN", "origin not allowed")
		c.Abort()
	}
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}

// Handler exposes the router for httptest-based tests.
func (s *Server) Handler() http.Handler {
	return s.r
}
