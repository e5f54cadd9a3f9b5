// Package httpapi exposes the supervisor's DumpState and liveness over
// HTTP (SPEC_FULL §4.11), generalizing the original's command-channel-only
// introspection for a long-running daemon operators can curl (REDESIGN
// FLAGS).
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/cdot-network/ibc-relayer-supervisor/internal/ibc"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/supervisor"
)

// livenessWindow is how stale the supervisor loop's last tick may be
// before /healthz reports unhealthy.
const livenessWindow = 5 * time.Second

// Supervisor is the narrow slice of *supervisor.Supervisor the HTTP
// server needs.
type Supervisor interface {
	Commands() chan<- supervisor.SupervisorCmd
	LastTick() time.Time
}

// Server wraps a gorilla/mux router serving /state, /metrics, and
// /healthz.
type Server struct {
	router *mux.Router
	super  Supervisor
	clock  clock.Clock
	log    *logrus.Entry
}

// New builds a Server. registry backs /metrics; clk is injectable for
// deterministic liveness tests.
func New(super Supervisor, registry *prometheus.Registry, clk clock.Clock, log *logrus.Entry) *Server {
	if clk == nil {
		clk = clock.New()
	}
	s := &Server{
		router: mux.NewRouter(),
		super:  super,
		clock:  clk,
		log:    log.WithField("component", "httpapi"),
	}
	s.router.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type supervisorStateDTO struct {
	Chains  []ibc.ChainID                `json:"chains"`
	Workers map[ibc.ObjectType][]string `json:"workers"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	reply := make(chan supervisor.SupervisorState, 1)
	select {
	case s.super.Commands() <- supervisor.NewDumpStateCmd(reply):
	case <-r.Context().Done():
		return
	}

	select {
	case state := <-reply:
		dto := supervisorStateDTO{Chains: state.Chains, Workers: make(map[ibc.ObjectType][]string)}
		for _, t := range state.OrderedWorkerTypes() {
			names := make([]string, 0, len(state.Workers[t]))
			for _, o := range state.Workers[t] {
				names = append(names, o.ShortName())
			}
			dto.Workers[t] = names
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(dto); err != nil {
			s.log.WithError(err).Warn("failed to encode state response")
		}
	case <-r.Context().Done():
	case <-s.clock.After(livenessWindow):
		http.Error(w, "timed out waiting for supervisor state", http.StatusGatewayTimeout)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.clock.Now().Sub(s.super.LastTick()) > livenessWindow {
		http.Error(w, "supervisor loop stalled", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}
