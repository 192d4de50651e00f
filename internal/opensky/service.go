package opensky

import (
	"context"
	"errors"
	"time"

	"github.com/dan1elw/LARA/internal/geo"
	"github.com/dan1elw/LARA/internal/tracking"
	"github.com/dan1elw/LARA/pkg/logger"
)

// fetcher retrieves position samples inside a bounding box.
type fetcher interface {
	FetchStates(ctx context.Context, bbox geo.BoundingBox) ([]tracking.PositionSample, error)
}

// sessionStore persists sealed flight sessions.
type sessionStore interface {
	SaveSession(sess *tracking.FlightSession) error
}

// broadcaster pushes live updates to connected clients.
type broadcaster interface {
	BroadcastPositions(samples []tracking.PositionSample)
	BroadcastSessionOpened(sess *tracking.FlightSession)
	BroadcastSessionSealed(sess *tracking.FlightSession)
}

// ServiceConfig holds the collector settings
type ServiceConfig struct {
	Home          geo.Point
	RadiusKM      float64
	FetchInterval time.Duration
}

// Service polls OpenSky on a fixed interval, filters the returned states
// to the configured radius around home, and feeds them to the session
// segmenter. Sealed sessions are persisted and broadcast.
type Service struct {
	client    fetcher
	segmenter *tracking.Segmenter
	store     sessionStore
	ws        broadcaster
	spheroid  geo.Spheroid
	cfg       ServiceConfig
	bbox      geo.BoundingBox
	logger    *logger.Logger
}

// NewService creates the polling collector. The bounding box is derived
// once from home and radius; per-sample filtering uses the exact distance.
func NewService(client fetcher, segmenter *tracking.Segmenter, store sessionStore, ws broadcaster, spheroid geo.Spheroid, cfg ServiceConfig, log *logger.Logger) (*Service, error) {
	if cfg.FetchInterval <= 0 {
		cfg.FetchInterval = 60 * time.Second
	}
	bbox, err := spheroid.BoundingBox(cfg.Home, cfg.RadiusKM)
	if err != nil {
		return nil, err
	}
	return &Service{
		client:    client,
		segmenter: segmenter,
		store:     store,
		ws:        ws,
		spheroid:  spheroid,
		cfg:       cfg,
		bbox:      bbox,
		logger:    log.Named("opensky"),
	}, nil
}

// Run polls until the context is cancelled, then seals and persists all
// open sessions.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("Starting OpenSky collector",
		logger.Float64("home_lat", s.cfg.Home.Lat),
		logger.Float64("home_lon", s.cfg.Home.Lon),
		logger.Float64("radius_km", s.cfg.RadiusKM),
		logger.Duration("interval", s.cfg.FetchInterval))

	ticker := time.NewTicker(s.cfg.FetchInterval)
	defer ticker.Stop()

	s.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			s.drain()
			return ctx.Err()
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Service) poll(ctx context.Context) {
	samples, err := s.client.FetchStates(ctx, s.bbox)
	if err != nil {
		var rl *RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > s.cfg.FetchInterval {
			s.logger.Warn("Rate limited, backing off",
				logger.Duration("retry_after", rl.RetryAfter))
			s.sleep(ctx, rl.RetryAfter-s.cfg.FetchInterval)
			return
		}
		s.logger.Error("Failed to fetch states", logger.Error(err))
		return
	}

	inRadius := samples[:0]
	for _, sample := range samples {
		p, ok := sample.Position()
		if !ok {
			continue
		}
		if s.spheroid.DistanceKM(s.cfg.Home, p) > s.cfg.RadiusKM {
			continue
		}
		inRadius = append(inRadius, sample)
	}

	s.logger.Debug("Fetched states",
		logger.Int("total", len(samples)),
		logger.Int("in_radius", len(inRadius)))

	for _, sample := range inRadius {
		before := s.segmenter.OpenCount()
		sealed, err := s.segmenter.Observe(sample)
		if err != nil {
			// Out-of-order or malformed samples are dropped, the
			// session itself stays intact.
			s.logger.Debug("Dropped sample",
				logger.String("icao24", sample.ICAO24),
				logger.Error(err))
			continue
		}
		if sealed != nil {
			s.persist(sealed)
		}
		if sealed != nil || s.segmenter.OpenCount() > before {
			s.ws.BroadcastSessionOpened(s.openedFor(sample))
		}
	}

	s.ws.BroadcastPositions(inRadius)
}

// openedFor returns the freshly opened session for a sample. Observe has
// just accepted the sample, so the lookup cannot miss; a nil return only
// happens on a logic error upstream.
func (s *Service) openedFor(sample tracking.PositionSample) *tracking.FlightSession {
	for _, sess := range s.segmenter.Open() {
		if sess.ICAO24 == sample.ICAO24 && sess.Callsign == tracking.NormalizeCallsign(sample.Callsign) {
			return sess
		}
	}
	return nil
}

// drain seals every open session and persists it.
func (s *Service) drain() {
	sealed := s.segmenter.Flush()
	s.logger.Info("Draining open sessions", logger.Int("count", len(sealed)))
	for _, sess := range sealed {
		s.persist(sess)
	}
}

func (s *Service) persist(sess *tracking.FlightSession) {
	if err := s.store.SaveSession(sess); err != nil {
		s.logger.Error("Failed to save session",
			logger.String("session_id", sess.ID),
			logger.Error(err))
		return
	}
	s.logger.Info("Session sealed",
		logger.String("session_id", sess.ID),
		logger.String("callsign", sess.Callsign),
		logger.Int("samples", len(sess.Samples)))
	s.ws.BroadcastSessionSealed(sess)
}

func (s *Service) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
