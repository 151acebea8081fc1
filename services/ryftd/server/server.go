package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ryft/crypto"
	"ryft/native/ryft"
	"ryft/services/ryftd/journal"
	"ryft/services/ryftd/middleware"
	"ryft/services/ryftd/runtime"
)

// Ledger is the execution surface served over HTTP.
type Ledger interface {
	Execute(ctx context.Context, caller crypto.Address, instructions []runtime.Instruction) (*runtime.Receipt, error)
	GlobalState(ctx context.Context) (*ryft.GlobalState, error)
	StakeOf(ctx context.Context, owner crypto.Address) (*ryft.StakeAccount, error)
	ReputationOf(ctx context.Context, borrower crypto.Address) (*ryft.Reputation, error)
	ActiveFlashLoan(ctx context.Context, borrower crypto.Address) (*ryft.FlashLoan, bool, error)
	BalanceOf(ctx context.Context, addr crypto.Address) (uint64, error)
}

// EventLog lists archived ledger events.
type EventLog interface {
	List(ctx context.Context, eventType string, limit int) ([]journal.Entry, error)
}

// Rate limit groups.
const (
	LimitAdmin     = "admin"
	LimitLiquidity = "liquidity"
	LimitStake     = "stake"
	LimitFlash     = "flash"
	LimitRewards   = "rewards"
	LimitTx        = "tx"
	LimitQuery     = "query"
)

type Config struct {
	Auth        middleware.AuthConfig
	RateLimits  map[string]middleware.RateLimit
	ServiceName string
	LogRequests bool
}

// Server exposes the ledger over a JSON API.
type Server struct {
	ledger  Ledger
	events  EventLog
	logger  *slog.Logger
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter
	obs     *middleware.Observability
}

func New(cfg Config, ledger Ledger, events EventLog, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ledger:  ledger,
		events:  events,
		logger:  logger.With(slog.String("component", "server")),
		auth:    middleware.NewAuthenticator(cfg.Auth, logger),
		limiter: middleware.NewRateLimiter(cfg.RateLimits, logger),
		obs:     middleware.NewObservability(middleware.ObservabilityConfig{ServiceName: cfg.ServiceName, LogRequests: cfg.LogRequests}, logger),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.obs.MetricsHandler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(s.auth.Middleware)

		route := func(name, limit string) chi.Router {
			return v1.With(s.obs.Middleware(name), s.limiter.Middleware(limit))
		}

		route("admin.fee_rate", LimitAdmin).Post("/admin/fee-rate", s.handleUpdateFeeRate)
		route("admin.allow_list", LimitAdmin).Post("/admin/allow-list", s.handleAllowList)
		route("liquidity.deposit", LimitLiquidity).Post("/liquidity/deposit", s.amountHandler(runtime.OpDepositLiquidity))
		route("liquidity.withdraw", LimitLiquidity).Post("/liquidity/withdraw", s.amountHandler(runtime.OpWithdrawLiquidity))
		route("stake", LimitStake).Post("/stake", s.amountHandler(runtime.OpStake))
		route("unstake", LimitStake).Post("/unstake", s.amountHandler(runtime.OpUnstake))
		route("flash_loan", LimitFlash).Post("/flash-loans", s.handleFlashLoan)
		route("flash_loan.multi_hop", LimitFlash).Post("/flash-loans/multi-hop", s.handleMultiHop)
		route("rewards.distribute", LimitRewards).Post("/rewards/distribute", s.emptyHandler(runtime.OpDistributeRewards))
		route("rewards.compound", LimitRewards).Post("/rewards/compound", s.emptyHandler(runtime.OpCompoundRewards))
		route("tx", LimitTx).Post("/tx", s.handleBundle)

		route("state", LimitQuery).Get("/state", s.handleState)
		route("stakes", LimitQuery).Get("/stakes/{address}", s.handleStake)
		route("reputation", LimitQuery).Get("/reputation/{address}", s.handleReputation)
		route("flash_loans", LimitQuery).Get("/flash-loans/{address}", s.handleActiveFlashLoan)
		route("balances", LimitQuery).Get("/balances/{address}", s.handleBalance)
		route("events", LimitQuery).Get("/events", s.handleEvents)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.ledger.GlobalState(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
