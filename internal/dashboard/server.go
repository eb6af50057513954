// Package dashboard serves the JSON API over inventory, leads,
// analytics and escalations.
package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lotline/lotline/internal/analytics"
	"github.com/lotline/lotline/internal/escalation"
	"github.com/lotline/lotline/internal/geo"
	"github.com/lotline/lotline/internal/inventory"
	"github.com/lotline/lotline/internal/leads"
	"github.com/lotline/lotline/internal/sales"
	"go.uber.org/zap"
)

// Server holds the wired engines behind the HTTP surface.
type Server struct {
	inv     *inventory.Store
	engine  *leads.Engine
	reports *analytics.Engine
	sales   *sales.Recorder
	esc     *escalation.Store
	geo     *geo.Index
	log     *zap.SugaredLogger
}

// Opts holds the dependencies for a dashboard server.
type Opts struct {
	Inventory   *inventory.Store
	Leads       *leads.Engine
	Analytics   *analytics.Engine
	Sales       *sales.Recorder
	Escalations *escalation.Store
	Geo         *geo.Index
	Logger      *zap.SugaredLogger
}

// New creates the server. All engine dependencies are required.
func New(opts Opts) (*Server, error) {
	if opts.Inventory == nil || opts.Leads == nil || opts.Analytics == nil ||
		opts.Sales == nil || opts.Escalations == nil {
		return nil, fmt.Errorf("dashboard: all engines are required")
	}
	if opts.Geo == nil {
		opts.Geo = geo.NewIndex()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Server{
		inv:     opts.Inventory,
		engine:  opts.Leads,
		reports: opts.Analytics,
		sales:   opts.Sales,
		esc:     opts.Escalations,
		geo:     opts.Geo,
		log:     opts.Logger.With("component", "dashboard"),
	}, nil
}

// Router builds the gin router with all routes registered. Exposed so
// tests can drive it without a listener.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	s.registerRoutes(router)
	return router
}

// Start launches the HTTP server on the given port. It blocks until
// ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port int) error {
	if port <= 0 {
		port = 8080
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warnw("shutdown", "error", err)
		}
	}()

	s.log.Infow("dashboard listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
