package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/paperstreet/brokerd/pkg/broker"
	"github.com/paperstreet/brokerd/pkg/identity"
	"github.com/paperstreet/brokerd/pkg/storage"
)

// Server exposes the ledger over REST plus a websocket event stream.
// Routes mirror the mock brokerage wire contract: the acting user is
// carried in the "userid" request header.
type Server struct {
	engine   *broker.Engine
	identity *identity.Service
	store    *storage.Store
	router   *mux.Router
	hub      *Hub
	log      *zap.SugaredLogger
	origins  []string
	srv      *http.Server
}

// NewServer wires the HTTP surface over the engine and identity service.
func NewServer(engine *broker.Engine, id *identity.Service, store *storage.Store, log *zap.SugaredLogger, corsOrigins []string) *Server {
	s := &Server{
		engine:   engine,
		identity: id,
		store:    store,
		router:   mux.NewRouter(),
		hub:      NewHub(log),
		log:      log,
		origins:  corsOrigins,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Ledger
	s.router.HandleFunc("/transactions", s.handleGetTransactions).Methods("GET")
	s.router.HandleFunc("/transactions", s.handleExecuteOrder).Methods("POST")
	s.router.HandleFunc("/drafts", s.handleGetDrafts).Methods("GET")
	s.router.HandleFunc("/drafts", s.handleDeleteDrafts).Methods("DELETE")

	// Account
	s.router.HandleFunc("/userdata", s.handleGetAccount).Methods("GET")
	s.router.HandleFunc("/userdata/allocations", s.handleGetAllocations).Methods("GET")
	s.router.HandleFunc("/userdata/liquidity", s.handleGetLiquidity).Methods("GET")
	s.router.HandleFunc("/userdata/watchlist", s.handleGetWatchlist).Methods("GET")
	s.router.HandleFunc("/userdata/watchlist", s.handleFollowStock).Methods("POST")

	// Directory + credentials
	s.router.HandleFunc("/userstats", s.handleGetUserStats).Methods("GET")
	s.router.HandleFunc("/userdata/login", s.handleLogin).Methods("POST")
	s.router.HandleFunc("/userdata/register", s.handleRegister).Methods("POST")

	// Infra
	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the websocket hub and serves HTTP until Shutdown.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "userid"},
		AllowCredentials: true,
	})

	s.srv = &http.Server{Addr: addr, Handler: c.Handler(s.router)}
	s.log.Infow("api_listening", "addr", addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler exposes the routed handler, without CORS, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// ==============================
// Ledger handlers
// ==============================

func (s *Server) handleGetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUserID(w, r)
	if !ok {
		return
	}
	txns, err := s.engine.Transactions(userID)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	respondJSON(w, txns)
}

func (s *Server) handleGetDrafts(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUserID(w, r)
	if !ok {
		return
	}
	drafts, err := s.engine.Drafts(userID)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	respondJSON(w, drafts)
}

func (s *Server) handleDeleteDrafts(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUserID(w, r)
	if !ok {
		return
	}
	if err := s.engine.ClearDrafts(userID); err != nil {
		s.respondFailure(w, err)
		return
	}
	respondJSON(w, MessageResponse{Message: "Drafts cleared."})
}

func (s *Server) handleExecuteOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUserID(w, r)
	if !ok {
		return
	}

	var ord broker.Order
	if err := json.NewDecoder(r.Body).Decode(&ord); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}

	txn, err := s.engine.ExecuteOrder(r.Context(), userID, ord)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	acc, err := s.engine.GetAccount(userID)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	s.hub.Broadcast(WSEvent{Type: "transaction", UserID: userID, Data: txn})
	respondJSON(w, OrderResult{Transaction: *txn, Account: newAccountInfo(acc)})
}

// ==============================
// Account handlers
// ==============================

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUserID(w, r)
	if !ok {
		return
	}
	acc, err := s.engine.GetAccount(userID)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	respondJSON(w, newAccountInfo(acc))
}

func (s *Server) handleGetAllocations(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUserID(w, r)
	if !ok {
		return
	}
	acc, err := s.engine.GetAccount(userID)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	respondJSON(w, acc.Allocations)
}

func (s *Server) handleGetLiquidity(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUserID(w, r)
	if !ok {
		return
	}
	acc, err := s.engine.GetAccount(userID)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	respondJSON(w, acc.Liquidity)
}

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUserID(w, r)
	if !ok {
		return
	}
	acc, err := s.engine.GetAccount(userID)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	respondJSON(w, acc.WatchList)
}

func (s *Server) handleFollowStock(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUserID(w, r)
	if !ok {
		return
	}

	var req FollowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}
	action, err := broker.ParseFollowAction(req.Action)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	msg, err := s.engine.FollowStock(r.Context(), userID, req.Symbol, action)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	s.hub.Broadcast(WSEvent{Type: "watchlist", UserID: userID, Data: msg})
	respondJSON(w, MessageResponse{Message: msg})
}

// ==============================
// Directory + credential handlers
// ==============================

func (s *Server) handleGetUserStats(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.GlobalStats()
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	out := make([]UserStatsInfo, len(entries))
	for i, entry := range entries {
		out[i] = newUserStatsInfo(entry)
	}
	respondJSON(w, out)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}
	entry, err := s.identity.Login(req.Email, req.Password)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	respondJSON(w, AuthResponse{Message: "Login successful.", User: newUserStatsInfo(entry)})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}
	entry, err := s.identity.Register(req.Name, req.Email, req.Password)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	respondJSON(w, AuthResponse{Message: "Signup successful, please login.", User: newUserStatsInfo(entry)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helpers
// ==============================

func (s *Server) requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("userid")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing_userid", "userid header is required")
		return "", false
	}
	return userID, true
}

// respondFailure maps rejections to 400 with their reason code and
// everything else to 500.
func (s *Server) respondFailure(w http.ResponseWriter, err error) {
	var rejection *broker.Error
	if errors.As(err, &rejection) {
		respondError(w, http.StatusBadRequest, rejection.Reason.String(), rejection.Message)
		return
	}
	s.log.Errorw("request_failed", "err", err)
	respondError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Message: message})
}
