package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"fusdpool/core/events"
	"fusdpool/crypto"
	"fusdpool/native/liquidity"
	"fusdpool/observability/logging"
	"fusdpool/observability/metrics"
)

// Pool is the engine surface served over HTTP.
type Pool interface {
	NativeSymbol() string
	PoolAddress() crypto.Address
	CurrentEpoch() (uint64, error)
	RewardConfig() (liquidity.RewardConfig, error)
	FeeConfig() (liquidity.FeeConfig, error)
	LimitConfig() (liquidity.LimitConfig, error)
	SetRewardConfig(liquidity.RewardConfig) error
	SetFeeConfig(liquidity.FeeConfig) error
	SetLimitConfig(liquidity.LimitConfig) error
	Totals() (*liquidity.PoolTotals, error)
	AccountCount() (uint64, error)
	Account(crypto.Address) (*liquidity.AccountEntry, bool, error)
	Accounts(cursor string, limit int) ([]*liquidity.AccountEntry, string, error)
	DepositInfo(amount *uint256.Int) (liquidity.DepositQuote, error)
	WithdrawInfo(caller crypto.Address, amount *uint256.Int) (liquidity.WithdrawQuote, error)
	Deposit(caller crypto.Address, amount *uint256.Int) (*liquidity.Receipt, error)
	Withdraw(caller crypto.Address, amount *uint256.Int) (*liquidity.Receipt, error)
	Transfer(from, to crypto.Address, amount *uint256.Int) (*liquidity.Receipt, error)
	ApplyRewards(cursor string, limit int) (liquidity.BatchResult, error)
	ApplyRewardsAll() (liquidity.BatchResult, error)
}

// Operator exposes development controls that sit outside the engine.
type Operator interface {
	Fund(addr crypto.Address, amount *uint256.Int) error
	NativeBalance(addr crypto.Address) (*uint256.Int, error)
	AdvanceEpoch(count uint64) (uint64, error)
}

// Config captures the dependencies required to construct the server.
type Config struct {
	Pool     Pool
	Operator Operator
	Auth     *Authenticator
	Stream   *events.Stream
	Logger   *slog.Logger
	Metrics  *metrics.LiquidityMetrics
	// MaxBodyBytes bounds request bodies on mutating routes.
	MaxBodyBytes int64
	// OriginPatterns lists the cross-origin hosts allowed to open the event
	// stream. Empty keeps the same-origin check.
	OriginPatterns []string
}

// Server exposes the pool over HTTP.
type Server struct {
	pool         Pool
	operator     Operator
	auth         *Authenticator
	stream       *events.Stream
	logger       *slog.Logger
	metrics      *metrics.LiquidityMetrics
	maxBodyBytes int64
	origins      []string

	router http.Handler
}

// New constructs the HTTP router.
func New(cfg Config) (*Server, error) {
	if cfg.Pool == nil {
		return nil, fmt.Errorf("pool required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Liquidity()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	srv := &Server{
		pool:         cfg.Pool,
		operator:     cfg.Operator,
		auth:         cfg.Auth,
		stream:       cfg.Stream,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		maxBodyBytes: cfg.MaxBodyBytes,
		origins:      append([]string(nil), cfg.OriginPatterns...),
	}
	srv.router = srv.buildRouter()
	return srv, nil
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.observe)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Get("/pool", s.handlePool)
		api.Get("/params", s.handleParams)
		api.Get("/totals", s.handleTotals)
		api.Get("/accounts", s.handleAccounts)
		api.Get("/accounts/{address}", s.handleAccount)
		api.Get("/quote/deposit", s.handleDepositQuote)
		api.Get("/quote/withdraw", s.handleWithdrawQuote)
		api.Get("/events/ws", s.handleEventsWS)

		api.Group(func(protected chi.Router) {
			protected.Use(s.auth.Middleware)
			protected.Use(s.limitBody)
			protected.Put("/params/reward", s.handleSetReward)
			protected.Put("/params/fee", s.handleSetFee)
			protected.Put("/params/limit", s.handleSetLimit)
			protected.Post("/deposit", s.handleDeposit)
			protected.Post("/withdraw", s.handleWithdraw)
			protected.Post("/transfer", s.handleTransfer)
			protected.Post("/rewards/apply", s.handleApplyRewards)
			protected.Post("/admin/fund", s.handleFund)
			protected.Post("/admin/epoch/advance", s.handleAdvanceEpoch)
		})
	})

	return otelhttp.NewHandler(r, "poold",
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}))
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		s.metrics.ObserveHTTP(route, status)
		s.logger.Debug("poold: request served",
			slog.String("request_id", chimw.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Duration("took", time.Since(start)))
	})
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger.Error("poold: request failed",
			slog.String("request_id", chimw.GetReqID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	writeJSON(w, status, body)
}

// audit records an authenticated mutation. fields are key/value pairs taken
// from the request and pass through the log redaction allowlist.
func (s *Server) audit(r *http.Request, action string, fields ...string) {
	attrs := make([]any, 0, 4+len(fields)/2)
	attrs = append(attrs,
		slog.String("request_id", chimw.GetReqID(r.Context())),
		slog.String("action", action))
	if principal, ok := PrincipalFromContext(r.Context()); ok {
		attrs = append(attrs,
			slog.String("auth_method", principal.Method),
			slog.String("subject", principal.Subject))
	}
	for i := 0; i+1 < len(fields); i += 2 {
		attrs = append(attrs, logging.MaskField(fields[i], fields[i+1]))
	}
	s.logger.Info("poold: operator action", attrs...)
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func parseAmount(raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

func parseLimit(raw string) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(trimmed)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return limit, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.pool.CurrentEpoch(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	current, err := s.pool.CurrentEpoch()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	accounts, err := s.pool.AccountCount()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nativeSymbol": s.pool.NativeSymbol(),
		"poolAddress":  s.pool.PoolAddress().String(),
		"epoch":        current,
		"accounts":     accounts,
	})
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	reward, err := s.pool.RewardConfig()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	fee, err := s.pool.FeeConfig()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := s.pool.LimitConfig()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newParamsView(reward, fee, limit))
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := s.pool.Totals()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTotalsView(totals))
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, next, err := s.pool.Accounts(r.URL.Query().Get("cursor"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	page := accountPageView{Accounts: make([]accountView, 0, len(entries)), NextCursor: next}
	for _, entry := range entries {
		page.Accounts = append(page.Accounts, newAccountView(entry))
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := crypto.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	entry, ok, err := s.pool.Account(addr)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(entry))
}

func (s *Server) handleDepositQuote(w http.ResponseWriter, r *http.Request) {
	amount, err := parseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	quote, err := s.pool.DepositInfo(amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDepositQuoteView(quote))
}

func (s *Server) handleWithdrawQuote(w http.ResponseWriter, r *http.Request) {
	addr, err := crypto.ParseAddress(r.URL.Query().Get("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	amount, err := parseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	quote, err := s.pool.WithdrawInfo(addr, amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newWithdrawQuoteView(quote))
}

type movementRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

func (s *Server) parseMovement(w http.ResponseWriter, r *http.Request) (crypto.Address, *uint256.Int, bool) {
	var req movementRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return crypto.Address{}, nil, false
	}
	addr, err := crypto.ParseAddress(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account")
		return crypto.Address{}, nil, false
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return crypto.Address{}, nil, false
	}
	return addr, amount, true
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	addr, amount, ok := s.parseMovement(w, r)
	if !ok {
		return
	}
	receipt, err := s.pool.Deposit(addr, amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "deposit", "account", addr.String(), "amount", amount.Dec())
	writeJSON(w, http.StatusOK, newReceiptView(receipt))
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	addr, amount, ok := s.parseMovement(w, r)
	if !ok {
		return
	}
	receipt, err := s.pool.Withdraw(addr, amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "withdraw", "account", addr.String(), "amount", amount.Dec())
	writeJSON(w, http.StatusOK, newReceiptView(receipt))
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From   string `json:"from"`
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	from, err := crypto.ParseAddress(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from address")
		return
	}
	to, err := crypto.ParseAddress(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to address")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	receipt, err := s.pool.Transfer(from, to, amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "transfer", "from", from.String(), "to", to.String(), "amount", amount.Dec())
	writeJSON(w, http.StatusOK, newReceiptView(receipt))
}

func (s *Server) handleApplyRewards(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cursor string `json:"cursor"`
		Limit  int    `json:"limit"`
		All    bool   `json:"all"`
	}
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
	}
	if req.Limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must not be negative")
		return
	}
	var (
		result liquidity.BatchResult
		err    error
	)
	if req.All {
		result, err = s.pool.ApplyRewardsAll()
	} else {
		result, err = s.pool.ApplyRewards(req.Cursor, req.Limit)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "apply_rewards", "cursor", req.Cursor, "epoch", strconv.FormatUint(result.Epoch, 10),
		"minted", dec(result.Minted))
	writeJSON(w, http.StatusOK, newBatchView(result))
}

func (s *Server) handleSetReward(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Instant  string `json:"instantReward"`
		Epoch    string `json:"epochReward"`
		EpochMin string `json:"epochMin"`
		EpochMax string `json:"epochMax"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	var cfg liquidity.RewardConfig
	var err error
	if cfg.Instant, err = liquidity.ParseRate(req.Instant); err != nil {
		s.fail(w, r, err)
		return
	}
	if cfg.Epoch, err = liquidity.ParseRate(req.Epoch); err != nil {
		s.fail(w, r, err)
		return
	}
	for _, clamp := range []struct {
		raw string
		dst *uint256.Int
	}{{req.EpochMin, &cfg.EpochMin}, {req.EpochMax, &cfg.EpochMax}} {
		raw := strings.TrimSpace(clamp.raw)
		if raw == "" {
			continue
		}
		value, err := uint256.FromDecimal(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid clamp %q", clamp.raw))
			return
		}
		clamp.dst.Set(value)
	}
	if err := s.pool.SetRewardConfig(cfg); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "set_reward", "instant_reward", cfg.Instant.String(), "epoch_reward", cfg.Epoch.String(),
		"epoch_min", cfg.EpochMin.Dec(), "epoch_max", cfg.EpochMax.Dec())
	s.handleParams(w, r)
}

func (s *Server) handleSetFee(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fee string `json:"fee"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	fee, err := liquidity.ParseRate(req.Fee)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.pool.SetFeeConfig(liquidity.FeeConfig{Fee: fee}); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "set_fee", "fee", fee.String())
	s.handleParams(w, r)
}

func (s *Server) handleSetLimit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Limit string `json:"limit"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	limit, err := liquidity.ParseRate(req.Limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.pool.SetLimitConfig(liquidity.LimitConfig{Limit: limit}); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "set_limit", "limit", limit.String())
	s.handleParams(w, r)
}

func (s *Server) handleFund(w http.ResponseWriter, r *http.Request) {
	if s.operator == nil {
		writeError(w, http.StatusNotImplemented, "operator controls disabled")
		return
	}
	addr, amount, ok := s.parseMovement(w, r)
	if !ok {
		return
	}
	if err := s.operator.Fund(addr, amount); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "fund", "account", addr.String(), "amount", amount.Dec())
	balance, err := s.operator.NativeBalance(addr)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"account": addr.String(), "native": dec(balance)})
}

func (s *Server) handleAdvanceEpoch(w http.ResponseWriter, r *http.Request) {
	if s.operator == nil {
		writeError(w, http.StatusNotImplemented, "operator controls disabled")
		return
	}
	var req struct {
		Count uint64 `json:"count"`
	}
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
	}
	if req.Count == 0 {
		req.Count = 1
	}
	next, err := s.operator.AdvanceEpoch(req.Count)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.audit(r, "advance_epoch", "count", strconv.FormatUint(req.Count, 10), "epoch", strconv.FormatUint(next, 10))
	writeJSON(w, http.StatusOK, map[string]uint64{"epoch": next})
}
