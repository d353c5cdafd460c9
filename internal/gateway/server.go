// Package gateway hosts the two real-time namespaces (matching, chat), the
// internal hooks the CRUD flow invokes, and the HTTP plumbing around them.
package gateway

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/service-match/internal/config"
	"github.com/example/service-match/internal/match"
	"github.com/example/service-match/internal/nego"
	"github.com/example/service-match/internal/rooms"
	"github.com/example/service-match/internal/session"
	"github.com/example/service-match/internal/store"
)

type Server struct {
	cfg      config.GatewayConfig
	logger   *slog.Logger
	rooms    *rooms.Registry
	match    *match.Coordinator
	nego     *nego.Coordinator
	store    store.Facade
	verifier session.Verifier

	mux      *mux.Router
	upgrader websocket.Upgrader

	matchingHandlers map[string]eventHandler
	chatHandlers     map[string]eventHandler
}

// NewServer wires the gateway from explicitly constructed dependencies.
// The handler tables are built once here and never mutated afterwards.
func NewServer(cfg config.GatewayConfig, logger *slog.Logger, reg *rooms.Registry,
	mc *match.Coordinator, nc *nego.Coordinator, st store.Facade, verifier session.Verifier) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		rooms:    reg,
		match:    mc,
		nego:     nc,
		store:    st,
		verifier: verifier,
		mux:      mux.NewRouter(),
		upgrader: websocket.Upgrader{},
	}
	s.matchingHandlers = s.buildMatchingHandlers()
	s.chatHandlers = s.buildChatHandlers()
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/ws/matching", s.handleMatchingWS)
	s.mux.HandleFunc("/ws/chat", s.handleChatWS)
	s.mux.HandleFunc("/internal/events", s.handleLifecycleEvent).Methods("POST")
	s.mux.HandleFunc("/api/v1/bookings/{booking_id}/messages", s.handleGetMessages).Methods("GET")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
