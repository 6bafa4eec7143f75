// Package api exposes payments, sessions, scores, leaderboards and
// settlement administration over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/decred/slog"
	"github.com/gin-gonic/gin"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/ledger"
	"arcade-pot/internal/observability"
	"arcade-pot/internal/payment"
	"arcade-pot/internal/scoring"
	"arcade-pot/internal/session"
	"arcade-pot/internal/settlement"
	"arcade-pot/internal/storage"
)

// AdminKeyHeader carries the operator key on admin routes.
const AdminKeyHeader = "X-Admin-Key"

// Payment limits of the audit listing.
const (
	DefaultPaymentsLimit = 50
	MaxPaymentsLimit     = 200
)

// PaymentService quotes and verifies entry fees.
type PaymentService interface {
	EntryFeeUSD() float64
	Info(ctx context.Context) (map[domain.Network]payment.Quote, error)
	Verify(ctx context.Context, req payment.VerifyRequest) (*session.Issued, error)
}

// SessionValidator resolves a credential to its payment.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*domain.Payment, error)
}

// ScoreService admits and ranks scores.
type ScoreService interface {
	Admit(ctx context.Context, sub scoring.Submission) (int, error)
	Leaderboard(ctx context.Context, dayKey string) ([]*domain.Score, error)
}

// PotSource sums a day's pools.
type PotSource interface {
	PotFor(ctx context.Context, dayKey string) (*ledger.Pot, error)
}

// Settlement runs and inspects daily payouts.
type Settlement interface {
	Settle(ctx context.Context, dayKey string) (*settlement.Report, error)
	MarkPaidManually(ctx context.Context, dayKey, notes string) error
	Summary(ctx context.Context, dayKey string) (*settlement.DaySummary, error)
	History(ctx context.Context) ([]*domain.Winner, error)
}

// Options configures Server.
type Options struct {
	Payments   PaymentService
	Sessions   SessionValidator
	Scores     ScoreService
	Pots       PotSource
	Settlement Settlement
	// PaymentLog backs the admin payments listing.
	PaymentLog storage.PaymentStore

	AdminKey      string
	AllowedOrigin string
	SessionTTL    time.Duration

	Now func() time.Time
	Log slog.Logger
}

// Server is the HTTP transport.
type Server struct {
	payments   PaymentService
	sessions   SessionValidator
	scores     ScoreService
	pots       PotSource
	settlement Settlement
	paymentLog storage.PaymentStore

	adminKey      []byte
	allowedOrigin string
	sessionTTL    time.Duration
	now           func() time.Time
	log           slog.Logger

	engine *gin.Engine
}

// New creates a Server with all routes registered.
func New(opts Options) *Server {
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = session.DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = slog.Disabled
	}
	s := &Server{
		payments:      opts.Payments,
		sessions:      opts.Sessions,
		scores:        opts.Scores,
		pots:          opts.Pots,
		settlement:    opts.Settlement,
		paymentLog:    opts.PaymentLog,
		adminKey:      []byte(opts.AdminKey),
		allowedOrigin: opts.AllowedOrigin,
		sessionTTL:    opts.SessionTTL,
		now:           opts.Now,
		log:           opts.Log,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestMetrics(), s.cors())

	r.GET("/metrics", gin.WrapH(observability.Handler()))

	api := r.Group("/api")
	api.GET("/health", s.health)

	pay := api.Group("/payment")
	pay.GET("/info", s.paymentInfo)
	pay.POST("/verify", s.verifyPayment)
	pay.GET("/session/:token", s.validateSession)

	api.POST("/score/submit", s.submitScore)

	board := api.Group("/leaderboard")
	board.GET("", s.leaderboard)
	board.GET("/history", s.history)

	admin := api.Group("/admin", s.requireAdmin())
	admin.GET("/day/:dayKey", s.daySummary)
	admin.GET("/payments", s.listPayments)
	admin.POST("/payout/:dayKey", s.settle)
	admin.PATCH("/payout/:dayKey/mark-paid", s.markPaid)

	return r
}

// requestMetrics counts requests by route template and status.
func (s *Server) requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		observability.RecordHTTPRequest(route, strconv.Itoa(status))
		s.log.Debugf("%s %s %d %s", c.Request.Method, route, status, time.Since(start))
	}
}

func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", s.allowedOrigin)
		h.Set("Access-Control-Allow-Headers", "Content-Type, "+AdminKeyHeader)
		h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := []byte(c.GetHeader(AdminKeyHeader))
		if len(s.adminKey) == 0 || subtle.ConstantTimeCompare(key, s.adminKey) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "Unauthorised."})
			return
		}
		c.Next()
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "ts": s.now().UnixMilli()})
}
