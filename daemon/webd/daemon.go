package webd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/olahol/melody"
	"github.com/rotblauer/catmotion/delivery"
	"github.com/rotblauer/catmotion/params"
	"github.com/rotblauer/catmotion/tracker"
)

// WebDaemon is the HTTP face of the tracker.
// Devices post their samples to it, learn the cadence they should deliver at,
// and start and stop tracking. Browsers watch state changes over a websocket.
type WebDaemon struct {
	Config *params.WebDaemonConfig

	tracker  *tracker.Controller
	delivery *delivery.Advertised
	grants   *delivery.ReportedGrants

	started        time.Time
	logger         *slog.Logger
	melodyInstance *melody.Melody
	server         *http.Server
	quit           chan struct{}
	wg             sync.WaitGroup
}

func NewWebDaemon(config *params.WebDaemonConfig, t *tracker.Controller, d *delivery.Advertised, g *delivery.ReportedGrants) (*WebDaemon, error) {
	if config == nil {
		config = params.DefaultWebDaemonConfig()
	}
	if t == nil || d == nil || g == nil {
		return nil, errors.New("webd: tracker, delivery and grants are required")
	}
	return &WebDaemon{
		Config:   config,
		tracker:  t,
		delivery: d,
		grants:   g,
		started:  time.Now(),
		logger:   slog.With("d", "web"),
		quit:     make(chan struct{}),
	}, nil
}

// Start listens and serves in the background.
func (s *WebDaemon) Start() error {
	listener, err := net.Listen(s.Config.Network, s.Config.Address)
	if err != nil {
		return err
	}
	s.server = &http.Server{
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Web daemon listening", "network", s.Config.Network, "address", listener.Addr().String())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Web daemon serve failed", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server and websocket down and waits for them.
func (s *WebDaemon) Stop(ctx context.Context) error {
	s.logger.Info("Web daemon stopping")
	close(s.quit)
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	if s.melodyInstance != nil {
		_ = s.melodyInstance.Close()
	}
	s.wg.Wait()
	return err
}

func (s *WebDaemon) NewRouter() *mux.Router {
	router := mux.NewRouter().StrictSlash(false)
	router.Use(s.loggingMiddleware)

	// Handle websocket.
	s.initMelody()
	router.Path("/socat").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = s.melodyInstance.HandleRequest(w, r)
	})

	apiRoutes := router.NewRoute().Subrouter()

	// All API routes use permissive CORS settings.
	apiRoutes.Use(permissiveCorsMiddleware)

	// /ping is a simple server healthcheck endpoint
	apiRoutes.Path("/ping").HandlerFunc(pingPong)
	apiRoutes.Path("/status").HandlerFunc(s.statusReport).Methods(http.MethodGet)

	apiJSONRoutes := apiRoutes.NewRoute().Subrouter()
	apiJSONRoutes.Use(contentTypeMiddlewareFunc("application/json"))

	apiJSONRoutes.Path("/movement").HandlerFunc(s.handleMovement).Methods(http.MethodGet)
	apiJSONRoutes.Path("/delivery").HandlerFunc(s.handleDelivery).Methods(http.MethodGet)
	apiJSONRoutes.Path("/visits/current").HandlerFunc(s.handleCurrentVisit).Methods(http.MethodGet)
	apiJSONRoutes.Path("/locations/recent").HandlerFunc(s.handleRecentLocations).Methods(http.MethodGet)

	authenticatedAPIRoutes := apiJSONRoutes.NewRoute().Subrouter()
	authenticatedAPIRoutes.Use(s.tokenAuthenticationMiddleware)

	authenticatedAPIRoutes.Path("/tracking/start").HandlerFunc(s.handleStart).Methods(http.MethodPost)
	authenticatedAPIRoutes.Path("/tracking/stop").HandlerFunc(s.handleStop).Methods(http.MethodPost)
	authenticatedAPIRoutes.Path("/samples").HandlerFunc(s.handleSamples).Methods(http.MethodPost)

	return router
}
