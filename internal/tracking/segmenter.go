package tracking

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dan1elw/LARA/internal/geo"
	"github.com/dan1elw/LARA/pkg/logger"
)

// ErrOutOfOrderSample is returned when a sample's timestamp regresses within
// one identity's stream. The segmenter never reorders; ordering is the
// ingestion layer's responsibility.
var ErrOutOfOrderSample = errors.New("out of order sample")

// DefaultIdleTimeout is the maximum gap between observations still
// considered the same flight session.
const DefaultIdleTimeout = 30 * time.Minute

type identityKey struct {
	icao24   string
	callsign string
}

// Segmenter groups a chronological stream of position samples into flight
// sessions per (icao24, callsign) identity using a time-gap rule. Merging
// depends only on elapsed time, never on spatial continuity.
type Segmenter struct {
	spheroid    geo.Spheroid
	home        geo.Point
	idleTimeout time.Duration
	open        map[identityKey]*FlightSession
	logger      *logger.Logger
}

// NewSegmenter creates a segmenter for the given home location and idle
// timeout. A non-positive timeout falls back to the default.
func NewSegmenter(spheroid geo.Spheroid, home geo.Point, idleTimeout time.Duration, log *logger.Logger) (*Segmenter, error) {
	if err := geo.ValidatePoint(home); err != nil {
		return nil, fmt.Errorf("home location: %w", err)
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Segmenter{
		spheroid:    spheroid,
		home:        home,
		idleTimeout: idleTimeout,
		open:        make(map[identityKey]*FlightSession),
		logger:      log.Named("segmenter"),
	}, nil
}

// Observe feeds one sample into the segmenter. When the sample arrives after
// the idle timeout for its identity, the previously open session is sealed
// and returned; otherwise the returned session is nil.
func (s *Segmenter) Observe(sample PositionSample) (*FlightSession, error) {
	if p, ok := sample.Position(); ok {
		if err := geo.ValidatePoint(p); err != nil {
			return nil, fmt.Errorf("sample for %s at %s: %w", sample.ICAO24, sample.Timestamp, err)
		}
	}

	sample.Callsign = NormalizeCallsign(sample.Callsign)
	key := identityKey{icao24: sample.ICAO24, callsign: sample.Callsign}

	current, ok := s.open[key]
	if !ok {
		s.open[key] = s.openSession(sample)
		return nil, nil
	}

	if sample.Timestamp.Before(current.LastSeen) {
		return nil, fmt.Errorf("identity %s/%s: %s before %s: %w",
			key.icao24, key.callsign, sample.Timestamp, current.LastSeen, ErrOutOfOrderSample)
	}

	if sample.Timestamp.Sub(current.LastSeen) > s.idleTimeout {
		sealed := s.seal(current)
		s.open[key] = s.openSession(sample)
		return sealed, nil
	}

	current.Samples = append(current.Samples, sample)
	current.LastSeen = sample.Timestamp
	return nil, nil
}

// Flush seals every remaining open session, as at end-of-stream. Sessions
// are returned in a stable order (identity, then first-seen).
func (s *Segmenter) Flush() []*FlightSession {
	sealed := make([]*FlightSession, 0, len(s.open))
	for _, sess := range s.open {
		sealed = append(sealed, s.seal(sess))
	}
	s.open = make(map[identityKey]*FlightSession)

	SortSessions(sealed)
	return sealed
}

// OpenCount returns the number of currently open sessions
func (s *Segmenter) OpenCount() int {
	return len(s.open)
}

// Open returns the currently open sessions in a stable order. Callers must
// not mutate the returned sessions.
func (s *Segmenter) Open() []*FlightSession {
	open := make([]*FlightSession, 0, len(s.open))
	for _, sess := range s.open {
		open = append(open, sess)
	}
	SortSessions(open)
	return open
}

func (s *Segmenter) openSession(sample PositionSample) *FlightSession {
	return &FlightSession{
		ID:        sessionID(sample.ICAO24, sample.Callsign, sample.Timestamp),
		ICAO24:    sample.ICAO24,
		Callsign:  sample.Callsign,
		FirstSeen: sample.Timestamp,
		LastSeen:  sample.Timestamp,
		Samples:   []PositionSample{sample},
	}
}

// seal finalizes a session: computes the derived summary and hands the
// session over as immutable analysis input.
func (s *Segmenter) seal(sess *FlightSession) *FlightSession {
	sess.Summary = s.summarize(sess)
	s.logger.Debug("Sealed flight session",
		logger.String("id", sess.ID),
		logger.String("icao24", sess.ICAO24),
		logger.String("callsign", sess.Callsign),
		logger.Int("samples", len(sess.Samples)),
		logger.Duration("duration", sess.Duration()),
	)
	return sess
}

func (s *Segmenter) summarize(sess *FlightSession) SessionSummary {
	summary := SessionSummary{SampleCount: len(sess.Samples)}

	var velocitySum float64
	var velocityCount int

	for _, sample := range sess.Samples {
		if p, ok := sample.Position(); ok {
			d := s.DistanceFromHome(p)
			if summary.MinDistanceKM == nil || d < *summary.MinDistanceKM {
				summary.MinDistanceKM = &d
			}
		}
		if alt, ok := sample.AltitudeM(); ok {
			if summary.MaxAltitudeM == nil || alt > *summary.MaxAltitudeM {
				summary.MaxAltitudeM = &alt
			}
			if summary.MinAltitudeM == nil || alt < *summary.MinAltitudeM {
				summary.MinAltitudeM = &alt
			}
		}
		if sample.VelocityMS != nil {
			velocitySum += *sample.VelocityMS
			velocityCount++
		}
	}

	if velocityCount > 0 {
		mean := velocitySum / float64(velocityCount)
		summary.MeanVelocityMS = &mean
	}
	return summary
}

// DistanceFromHome returns the distance in km from the home location to a
// validated point.
func (s *Segmenter) DistanceFromHome(p geo.Point) float64 {
	d, err := s.spheroid.Distance(s.home, p)
	if err != nil {
		// Points reaching here were validated at Observe
		return 0
	}
	return d
}

// SortSessions orders sessions by identity and first-seen time. Clustering
// determinism requires this stable order before any analysis run.
func SortSessions(sessions []*FlightSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if a.ICAO24 != b.ICAO24 {
			return a.ICAO24 < b.ICAO24
		}
		if a.Callsign != b.Callsign {
			return a.Callsign < b.Callsign
		}
		return a.FirstSeen.Before(b.FirstSeen)
	})
}
