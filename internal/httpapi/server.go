// Package httpapi is the control-plane HTTP surface, built on gofiber/fiber
// with prometheus/client_golang's fiber adapter serving /metrics and
// swaggo/http-swagger serving interactive docs at /docs.
package httpapi

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"pointskeeper/internal/analytics"
	"pointskeeper/internal/config"
	"pointskeeper/internal/entities"
	"pointskeeper/internal/logging"
	"pointskeeper/internal/registry"
)

type Server struct {
	app        *fiber.App
	registry   *registry.Registry
	store      *analytics.Store
	cfg        *entities.Config
	configPath string
	logger     *logging.Logger
	reg        *prometheus.Registry
	logRing    *RingLog
}

// New wires every control-plane route. reg is the prometheus registry
// metrics.New registered collectors against, reused here for /metrics.
func New(reg *registry.Registry, store *analytics.Store, cfg *entities.Config, configPath string, logger *logging.Logger, promReg *prometheus.Registry, logRing *RingLog) *Server {
	s := &Server{
		app:        fiber.New(fiber.Config{DisableStartupMessage: true}),
		registry:   reg,
		store:      store,
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		reg:        promReg,
		logRing:    logRing,
	}
	s.app.Use(fiberlogger.New())
	s.app.Use(cors.New(cors.Config{AllowOrigins: "*"}))
	s.routes()
	return s
}

func (s *Server) Listen(address string) error {
	return s.app.Listen(address)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) routes() {
	s.app.Get("/api", s.handleState)
	s.app.Get("/api/streamers/:name", s.handleStreamer)
	s.app.Get("/api/streamers/live", s.handleStreamersLive)
	s.app.Put("/api/streamers/mine/:name", s.handleAddMine)
	s.app.Delete("/api/streamers/mine/:name/", s.handleRemoveMine)
	s.app.Post("/api/predictions/bet/:streamer", s.handleBetOverride)
	s.app.Get("/api/predictions/live", s.handlePredictionsLive)
	s.app.Get("/api/config/presets", s.handlePresetsList)
	s.app.Post("/api/config/presets/", s.handlePresetsCreate)
	s.app.Delete("/api/config/presets/:name", s.handlePresetsDelete)
	s.app.Post("/api/config/streamer/:name", s.handleStreamerConfigUpdate)
	s.app.Get("/api/config/watch_priority", s.handleWatchPriorityGet)
	s.app.Post("/api/config/watch_priority", s.handleWatchPriorityPost)
	s.app.Post("/api/analytics/timeline", s.handleTimeline)
	s.app.Get("/api/logs", s.handleLogs)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})))
	s.app.Get("/docs/openapi.json", s.handleOpenAPISpec)
	s.app.Get("/docs/*", adaptor.HTTPHandlerFunc(httpSwagger.Handler(httpSwagger.URL("/docs/openapi.json"))))
}

func (s *Server) handleOpenAPISpec(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.SendString(openAPISpec)
}

func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"broadcasters": snapshotAll(s.registry)})
}

func snapshotAll(reg *registry.Registry) []registry.Snapshot {
	all := reg.All()
	out := make([]registry.Snapshot, 0, len(all))
	for _, b := range all {
		if snap, ok := reg.SnapshotOf(b.ChannelID); ok {
			out = append(out, snap)
		}
	}
	return out
}

func (s *Server) handleStreamer(c *fiber.Ctx) error {
	name := c.Params("name")
	b := s.registry.ByName(name)
	if b == nil {
		return fiber.NewError(fiber.StatusNotFound, "unknown streamer")
	}
	snap, _ := s.registry.SnapshotOf(b.ChannelID)
	return c.JSON(snap)
}

func (s *Server) handleStreamersLive(c *fiber.Ctx) error {
	live := s.registry.Live()
	names := make([]string, 0, len(live))
	for _, b := range live {
		names = append(names, b.Name)
	}
	return c.JSON(names)
}

type mineRequest struct {
	Config entities.ConfigType `json:"config"`
}

func (s *Server) handleAddMine(c *fiber.Ctx) error {
	name := c.Params("name")
	for _, ns := range s.cfg.Streamers {
		if ns.Name == name {
			return fiber.NewError(fiber.StatusConflict, "streamer already configured")
		}
	}
	var req mineRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if req.Config.Specific != nil {
		config.NormalizeStreamerConfig(req.Config.Specific)
	}
	s.cfg.Streamers = append(s.cfg.Streamers, entities.NamedStreamer{Name: name, Entry: req.Config})
	if err := config.Save(s.configPath, s.cfg); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusCreated)
}

func (s *Server) handleRemoveMine(c *fiber.Ctx) error {
	name := c.Params("name")
	idx := -1
	for i, ns := range s.cfg.Streamers {
		if ns.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fiber.NewError(fiber.StatusNotFound, "unknown streamer")
	}
	s.cfg.Streamers = append(s.cfg.Streamers[:idx], s.cfg.Streamers[idx+1:]...)
	if b := s.registry.ByName(name); b != nil {
		s.registry.Remove(b.ChannelID)
	}
	if err := config.Save(s.configPath, s.cfg); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type betOverrideRequest struct {
	EventID   string `json:"event_id"`
	OutcomeID string `json:"outcome_id"`
	Points    int64  `json:"points"`
}

func (s *Server) handleBetOverride(c *fiber.Ctx) error {
	name := c.Params("streamer")
	b := s.registry.ByName(name)
	if b == nil {
		return fiber.NewError(fiber.StatusNotFound, "unknown streamer")
	}
	var req betOverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	s.registry.MarkPlaced(b.ChannelID, req.EventID)
	s.store.Submit(analytics.PlaceBet{ChannelID: b.ChannelID, EventID: req.EventID, OutcomeID: req.OutcomeID, Points: req.Points})
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) handlePredictionsLive(c *fiber.Ctx) error {
	return c.JSON(s.registry.LivePredictions())
}

func (s *Server) handlePresetsList(c *fiber.Ctx) error {
	return c.JSON(s.cfg.Presets)
}

func (s *Server) handlePresetsCreate(c *fiber.Ctx) error {
	var preset entities.NamedPreset
	if err := c.BodyParser(&preset); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	for _, p := range s.cfg.Presets {
		if p.Name == preset.Name {
			return fiber.NewError(fiber.StatusConflict, "preset already exists")
		}
	}
	if preset.Config != nil {
		config.NormalizeStreamerConfig(preset.Config)
	}
	s.cfg.Presets = append(s.cfg.Presets, preset)
	if err := config.Save(s.configPath, s.cfg); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusCreated)
}

func (s *Server) handlePresetsDelete(c *fiber.Ctx) error {
	name := c.Params("name")
	idx := -1
	for i, p := range s.cfg.Presets {
		if p.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fiber.NewError(fiber.StatusNotFound, "unknown preset")
	}
	s.cfg.Presets = append(s.cfg.Presets[:idx], s.cfg.Presets[idx+1:]...)
	if err := config.Save(s.configPath, s.cfg); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleStreamerConfigUpdate(c *fiber.Ctx) error {
	name := c.Params("name")
	var sc entities.StreamerConfig
	if err := c.BodyParser(&sc); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	config.NormalizeStreamerConfig(&sc)

	found := false
	for i, ns := range s.cfg.Streamers {
		if ns.Name == name {
			s.cfg.Streamers[i].Entry = entities.ConfigType{Kind: entities.ConfigTypeSpecific, Specific: &sc}
			found = true
			break
		}
	}
	if !found {
		return fiber.NewError(fiber.StatusNotFound, "unknown streamer")
	}
	if b := s.registry.ByName(name); b != nil {
		b.Config = &sc
	}
	if err := config.Save(s.configPath, s.cfg); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusOK)
}

func (s *Server) handleWatchPriorityGet(c *fiber.Ctx) error {
	return c.JSON(s.cfg.WatchPriority)
}

func (s *Server) handleWatchPriorityPost(c *fiber.Ctx) error {
	var names []string
	if err := c.BodyParser(&names); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	s.cfg.WatchPriority = names
	if err := config.Save(s.configPath, s.cfg); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusOK)
}

type timelineRequest struct {
	ChannelID string `json:"channel_id"`
	SinceUnix int64  `json:"since_unix"`
	Limit     int    `json:"limit"`
}

func (s *Server) handleTimeline(c *fiber.Ctx) error {
	var req timelineRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := analytics.Timeline(s.store.ReadDB(), req.ChannelID, time.Unix(req.SinceUnix, 0), limit)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(rows)
}

func (s *Server) handleLogs(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "0"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "200"))
	lines := s.logRing.Page(page, pageSize)
	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.SendString(renderANSILinesAsHTML(lines))
}
