// Package api exposes the pattern engine over HTTP and a websocket stream.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bbernstein/lacylights-bulbs/internal/database/models"
	"github.com/bbernstein/lacylights-bulbs/internal/services/device"
	"github.com/bbernstein/lacylights-bulbs/internal/services/pattern"
	"github.com/bbernstein/lacylights-bulbs/internal/services/playback"
	"github.com/bbernstein/lacylights-bulbs/internal/services/pubsub"
	"github.com/bbernstein/lacylights-bulbs/internal/services/scheduler"
)

// RunHistory reads persisted runs. *repositories.PatternRunRepository satisfies it.
type RunHistory interface {
	FindRecent(ctx context.Context, limit int) ([]models.PatternRun, error)
	FindByDevice(ctx context.Context, deviceID string, limit int) ([]models.PatternRun, error)
}

// Devices is the part of the bulb API client used for direct device commands.
type Devices interface {
	ListDevices(ctx context.Context) ([]device.DeviceInfo, error)
	UpdateAlias(ctx context.Context, deviceIP, alias string) (bool, error)
	QuickAction(ctx context.Context, deviceID, action string) (bool, error)
}

// Schedules manages cron schedules. *scheduler.Scheduler satisfies it.
type Schedules interface {
	Add(ctx context.Context, name, spec string, req pattern.PatternRequest) (*scheduler.Entry, error)
	Remove(ctx context.Context, id string) error
	List(ctx context.Context) ([]scheduler.Entry, error)
}

// Deps holds the services the handlers call. History and Schedules may be nil.
type Deps struct {
	Playback  *playback.Service
	Devices   Devices
	History   RunHistory
	Schedules Schedules
	PubSub    *pubsub.PubSub
}

// Server holds the HTTP handlers.
type Server struct {
	playback  *playback.Service
	devices   Devices
	history   RunHistory
	schedules Schedules
	pubsub    *pubsub.PubSub
}

// NewServer creates the API handlers.
func NewServer(deps Deps) *Server {
	return &Server{
		playback:  deps.Playback,
		devices:   deps.Devices,
		history:   deps.History,
		schedules: deps.Schedules,
		pubsub:    deps.PubSub,
	}
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/patterns", s.handleStartPattern)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListActiveRuns)
			r.Get("/history", s.handleRunHistory)
			r.Get("/{id}", s.handleGetRun)
			r.Delete("/{id}", s.handleCancelRun)
		})

		r.Post("/quick-action", s.handleQuickAction)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/{deviceIp}/alias", s.handleUpdateAlias)
			r.Delete("/{deviceId}/pattern", s.handleStopDevice)
		})

		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", s.handleListSchedules)
			r.Post("/", s.handleCreateSchedule)
			r.Delete("/{id}", s.handleDeleteSchedule)
		})
	})

	r.Get("/ws", s.handleWebSocket)
}

// Handler returns a router carrying only the API routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	s.Routes(r)
	return r
}
