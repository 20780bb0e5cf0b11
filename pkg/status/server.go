package status

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/numbergroup/autopool-notifier/pkg/monitor"
	"github.com/numbergroup/autopool-notifier/pkg/rpcpool"
)

// PollerState is what the report needs from the event poller.
type PollerState interface {
	Running() bool
	LastScannedBlock() uint64
}

type Report struct {
	Status           string                  `json:"status"`
	UptimeSeconds    float64                 `json:"uptime_seconds"`
	Timestamp        time.Time               `json:"timestamp"`
	IsRunning        bool                    `json:"is_running"`
	Stats            rpcpool.StatsSnapshot   `json:"stats"`
	EndpointCount    int                     `json:"endpoint_count"`
	Endpoints        []rpcpool.EndpointState `json:"endpoints"`
	LastScannedBlock uint64                  `json:"last_scanned_block"`
}

// Server exposes /health and /metrics for external orchestration.
type Server struct {
	addr    string
	pool    *rpcpool.Pool
	stats   *rpcpool.Stats
	poller  PollerState
	started time.Time
	now     func() time.Time
	log     logrus.Ext1FieldLogger
}

var _ monitor.Monitor = (*Server)(nil)

func NewServer(addr string, pool *rpcpool.Pool, stats *rpcpool.Stats, poller PollerState, log logrus.Ext1FieldLogger) *Server {
	s := &Server{
		addr:    addr,
		pool:    pool,
		stats:   stats,
		poller:  poller,
		started: time.Now(),
		now:     time.Now,
	}
	s.log = log.WithFields(logrus.Fields{"name": s.Name(), "addr": addr})
	return s
}

func (s *Server) Name() string {
	return "status::Server"
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/", http.NotFound)
	return mux
}

func (s *Server) Report() Report {
	now := s.now()
	running := s.poller.Running()
	out := Report{
		Status:           "ok",
		UptimeSeconds:    now.Sub(s.started).Seconds(),
		Timestamp:        now.UTC(),
		IsRunning:        running,
		Stats:            s.stats.Snapshot(),
		EndpointCount:    s.pool.Len(),
		Endpoints:        s.pool.Snapshot(),
		LastScannedBlock: s.poller.LastScannedBlock(),
	}
	if !running {
		out.Status = "stopped"
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.Report()
	w.Header().Set("Content-Type", "application/json")
	if !report.IsRunning {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(report); err != nil {
		s.log.WithError(err).Warn("failed to write status report")
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("status server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("status server failed")
		}
		return
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.WithError(err).Warn("status server shutdown failed")
	}
	s.log.Info("status server stopped")
}
