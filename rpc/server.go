package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"hashledger/cache"
	"hashledger/core"
	"hashledger/interfaces"
	"hashledger/logger"

	"github.com/gorilla/mux"
)

type Config struct {
	Addr        string // host:port, port 0 memilih port bebas
	EnableCache bool
	CacheTTL    time.Duration
}

// Server adalah lapisan HTTP tipis di atas Ledger.
type Server struct {
	config    *Config
	ledger    *core.Ledger
	router    *mux.Router
	server    *http.Server
	listener  net.Listener
	cache     *cache.Cache
	chainAPI  *ChainAPI
	miningAPI *MiningAPI
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewServer(config *Config, ledger *core.Ledger, engine interfaces.Engine, miner *core.Miner) *Server {
	s := &Server{
		config: config,
		ledger: ledger,
	}
	if config.EnableCache {
		ttl := config.CacheTTL
		if ttl <= 0 {
			ttl = cache.DefaultTTL
		}
		s.cache = cache.NewCache(ttl)
	}
	s.chainAPI = NewChainAPI(ledger, s.cache)
	s.miningAPI = NewMiningAPI(ledger, engine, miner)
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.handleHealth).Methods("GET", "OPTIONS")

	router.HandleFunc("/mine", s.miningAPI.MineHandler).Methods("GET", "OPTIONS")
	router.HandleFunc("/transaction/new", s.chainAPI.NewTransactionHandler).Methods("PUT", "POST", "OPTIONS")
	router.HandleFunc("/chain", s.chainAPI.ChainHandler).Methods("GET", "OPTIONS")
	router.HandleFunc("/chain/verify", s.chainAPI.VerifyHandler).Methods("GET", "OPTIONS")
	router.HandleFunc("/chain/{index:[0-9]+}", s.chainAPI.BlockHandler).Methods("GET", "OPTIONS")
	router.HandleFunc("/transactions/pending", s.chainAPI.PendingHandler).Methods("GET", "OPTIONS")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/metrics", s.chainAPI.MetricsHandler).Methods("GET", "OPTIONS")

	mining := api.PathPrefix("/mining").Subrouter()
	mining.HandleFunc("/start", s.miningAPI.StartHandler).Methods("POST", "OPTIONS")
	mining.HandleFunc("/stop", s.miningAPI.StopHandler).Methods("POST", "OPTIONS")
	mining.HandleFunc("/stats", s.miningAPI.StatsHandler).Methods("GET", "OPTIONS")

	return router
}

// Router dipakai test (httptest) tanpa membuka port.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start membuka listener secara sinkron lalu melayani di goroutine terpisah.
// Kegagalan bind dikembalikan langsung; kegagalan Serve dikirim ke channel hasil.
func (s *Server) Start() (<-chan error, error) {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", s.config.Addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("RPC server error: %v", err)
			errCh <- err
		}
	}()

	logger.Infof("HTTP server started on %s", ln.Addr())
	return errCh, nil
}

// Addr mengembalikan alamat listener yang sebenarnya (berguna untuk port 0).
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown menunggu request yang sedang berjalan selesai atau ctx habis.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
		logger.Info("HTTP server stopped")
	}
	if s.cache != nil {
		s.cache.Close()
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r, "GET") {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"blocks": s.ledger.Len(),
	})
}

// setCORS memasang header CORS yang sama untuk semua endpoint.
func setCORS(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods+", OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// preflight memasang CORS dan menjawab OPTIONS. true berarti request sudah ditangani.
func preflight(w http.ResponseWriter, r *http.Request, methods string) bool {
	setCORS(w, methods)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Errorf("Failed to encode response: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeRawJSON(w, status, data)
}

func writeRawJSON(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func sendError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
