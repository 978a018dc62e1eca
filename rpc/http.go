package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"stakevault/native/staking"
	"stakevault/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeModulePaused   = -32010
	codeRateLimited    = -32020
)

// ServerConfig carries the transport settings the node passes down when it
// constructs the RPC surface.
type ServerConfig struct {
	// AdminJWTSecret protects the staking_set*/pause methods. Empty disables
	// admin methods entirely rather than leaving them open.
	AdminJWTSecret string
	// RateLimitPerMinute caps requests per client address. Zero disables
	// limiting.
	RateLimitPerMinute int
	RateLimitBurst     int
}

type Server struct {
	engine *staking.Engine
	logger *slog.Logger
	cfg    ServerConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewServer(engine *staking.Engine, logger *slog.Logger, cfg ServerConfig) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 1
	}
	return &Server{
		engine:   engine,
		logger:   logger.With("component", "rpc"),
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Router assembles the HTTP surface: the JSON-RPC endpoint plus the
// operational endpoints every deployment expects.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Method(http.MethodPost, "/", otelhttp.NewHandler(http.HandlerFunc(s.handle), "rpc"))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) allow(remoteAddr string) bool {
	if s.cfg.RateLimitPerMinute <= 0 {
		return true
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	s.mu.Lock()
	limiter, ok := s.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(s.cfg.RateLimitPerMinute)/60.0), s.cfg.RateLimitBurst)
		s.limiters[host] = limiter
	}
	s.mu.Unlock()
	return limiter.Allow()
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	requestID := uuid.NewString()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-Id", requestID)

	if !s.allow(r.RemoteAddr) {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	outcome := "ok"
	switch req.Method {
	case "staking_stake":
		outcome = s.handleStake(w, req)
	case "staking_unstake":
		outcome = s.handleUnstake(w, req)
	case "staking_withdraw":
		outcome = s.handleWithdraw(w, req)
	case "staking_claimRewards":
		outcome = s.handleClaimRewards(w, req)
	case "staking_getStakedItems":
		outcome = s.handleGetStakedItems(w, req)
	case "staking_previewRewards":
		outcome = s.handlePreviewRewards(w, req)
	case "staking_getParams":
		outcome = s.handleGetParams(w, req)
	case "staking_setRewardRate":
		outcome = s.withAdminAuth(w, r, req, s.handleSetRewardRate)
	case "staking_setUnbondingPeriod":
		outcome = s.withAdminAuth(w, r, req, s.handleSetUnbondingPeriod)
	case "staking_setClaimDelay":
		outcome = s.withAdminAuth(w, r, req, s.handleSetClaimDelay)
	case "staking_pause":
		outcome = s.withAdminAuth(w, r, req, s.handlePause)
	case "staking_unpause":
		outcome = s.withAdminAuth(w, r, req, s.handleUnpause)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		outcome = "not_found"
	}

	observability.Staking().Observe(req.Method, outcome, started)
	s.logger.Info("rpc request",
		"requestId", requestID,
		"method", req.Method,
		"outcome", outcome,
		"durationMs", time.Since(started).Milliseconds(),
	)
}
