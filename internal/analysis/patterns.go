package analysis

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dan1elw/LARA/internal/geo"
	"github.com/dan1elw/LARA/internal/tracking"
	"github.com/dan1elw/LARA/pkg/logger"
)

// Periodicity describes how regularly a pattern recurs within the day. It is
// only reported when the occurrence times are tight enough to be a schedule
// rather than coincidence.
type Periodicity struct {
	// MeanTimeOfDayUTC is the circular mean first-seen time of day,
	// formatted "15:04".
	MeanTimeOfDayUTC string `json:"mean_time_of_day_utc"`
	// SigmaMinutes is the circular spread of the occurrence times.
	SigmaMinutes float64 `json:"sigma_minutes"`
	// CV is SigmaMinutes normalized by the full day.
	CV float64 `json:"cv"`
}

// RoutePattern is a recurring route signature over a historical window.
// Supporting sessions are referenced by ID only.
type RoutePattern struct {
	ID              string       `json:"id"`
	HeadingDeg      float64      `json:"heading_deg"`
	Representative  string       `json:"representative_session_id"`
	OccurrenceCount int          `json:"occurrence_count"`
	MemberIDs       []string     `json:"member_ids"`
	FirstSeen       time.Time    `json:"first_seen"`
	LastSeen        time.Time    `json:"last_seen"`
	Periodicity     *Periodicity `json:"periodicity,omitempty"`
}

// PatternDetector finds recurring routes by pairwise route similarity over a
// trailing window of sessions.
type PatternDetector struct {
	spheroid geo.Spheroid
	opts     Options
	logger   *logger.Logger
}

func NewPatternDetector(spheroid geo.Spheroid, opts Options, log *logger.Logger) *PatternDetector {
	return &PatternDetector{
		spheroid: spheroid,
		opts:     opts,
		logger:   log.Named("patterns"),
	}
}

// Similarity scores how alike two tracks are, in [0,1]. The score weighs
// heading agreement and spatial overlap equally; it is symmetric and equals
// 1.0 for identical tracks. Spatial overlap saturates at the proximity
// threshold: tracks further apart than that score zero on the spatial half.
func (d *PatternDetector) Similarity(a, b TrackShape) float64 {
	if !a.HasHeading || !b.HasHeading {
		return 0
	}
	headingTerm := 1 - geo.CircularDiff(a.DominantHeading, b.DominantHeading)/180

	dist := d.spheroid.MeanPolylineDistanceKM(a.Fixes, b.Fixes)
	spatialTerm := 1 - dist/d.opts.ProximityThresholdKM
	if spatialTerm < 0 {
		spatialTerm = 0
	}

	return 0.5*headingTerm + 0.5*spatialTerm
}

// Detect groups the windowed sessions into route patterns. The window is the
// trailing TrendWindowDays anchored at the newest session's first-seen time,
// so replaying a historical batch reproduces the same patterns.
func (d *PatternDetector) Detect(ctx context.Context, sessions []*tracking.FlightSession) ([]RoutePattern, error) {
	ordered := make([]*tracking.FlightSession, len(sessions))
	copy(ordered, sessions)
	tracking.SortSessions(ordered)

	windowed := d.window(ordered)

	shapes := make([]TrackShape, 0, len(windowed))
	byID := make(map[string]*tracking.FlightSession, len(windowed))
	for _, sess := range windowed {
		shape := shapeOf(d.spheroid, sess)
		if !shape.HasHeading {
			continue
		}
		shapes = append(shapes, shape)
		byID[sess.ID] = sess
	}

	edges, err := d.similarEdges(ctx, shapes)
	if err != nil {
		return nil, err
	}

	uf := newUnionFind(len(shapes))
	for _, e := range edges {
		uf.union(e.a, e.b)
	}

	patterns := make([]RoutePattern, 0)
	for _, members := range uf.groups() {
		if len(members) < d.opts.MinPatternOccurrences {
			continue
		}
		patterns = append(patterns, d.buildPattern(shapes, members, byID))
	}

	sort.SliceStable(patterns, func(i, j int) bool {
		if patterns[i].OccurrenceCount != patterns[j].OccurrenceCount {
			return patterns[i].OccurrenceCount > patterns[j].OccurrenceCount
		}
		return patterns[i].MemberIDs[0] < patterns[j].MemberIDs[0]
	})
	for i := range patterns {
		patterns[i].ID = fmt.Sprintf("pattern_%03d", i+1)
	}

	d.logger.Info("Pattern detection complete",
		logger.Int("windowed_sessions", len(windowed)),
		logger.Int("patterns", len(patterns)),
	)
	return patterns, nil
}

// window restricts the batch to the trailing trend window. Anchoring on the
// newest session rather than the wall clock keeps detection deterministic on
// replay.
func (d *PatternDetector) window(ordered []*tracking.FlightSession) []*tracking.FlightSession {
	if len(ordered) == 0 {
		return nil
	}
	newest := ordered[0].FirstSeen
	for _, sess := range ordered[1:] {
		if sess.FirstSeen.After(newest) {
			newest = sess.FirstSeen
		}
	}
	cutoff := newest.AddDate(0, 0, -d.opts.TrendWindowDays)

	windowed := make([]*tracking.FlightSession, 0, len(ordered))
	for _, sess := range ordered {
		if !sess.FirstSeen.Before(cutoff) {
			windowed = append(windowed, sess)
		}
	}
	return windowed
}

// similarEdges evaluates pairwise similarity against the threshold, sharded
// the same way as corridor compatibility. Pairs whose heading difference
// alone already caps the score below the threshold are skipped before the
// polyline comparison.
func (d *PatternDetector) similarEdges(ctx context.Context, shapes []TrackShape) ([]edge, error) {
	n := len(shapes)
	if n < 2 {
		return nil, nil
	}

	// With equal weights, a pair can only reach the threshold when the
	// heading term leaves enough headroom for a perfect spatial term.
	maxHeadingDiff := 360 * (1 - d.opts.RouteSimilarityThreshold)

	shards := d.opts.Shards
	if shards <= 0 {
		shards = runtime.GOMAXPROCS(0)
	}
	if shards > n {
		shards = n
	}

	results := make([][]edge, shards)
	g, ctx := errgroup.WithContext(ctx)
	for shard := 0; shard < shards; shard++ {
		g.Go(func() error {
			var out []edge
			for a := shard; a < n; a += shards {
				if err := ctx.Err(); err != nil {
					return err
				}
				for b := a + 1; b < n; b++ {
					if geo.CircularDiff(shapes[a].DominantHeading, shapes[b].DominantHeading) > maxHeadingDiff {
						continue
					}
					if d.Similarity(shapes[a], shapes[b]) >= d.opts.RouteSimilarityThreshold {
						out = append(out, edge{a: a, b: b})
					}
				}
			}
			results[shard] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []edge
	for _, out := range results {
		merged = append(merged, out...)
	}
	return merged, nil
}

func (d *PatternDetector) buildPattern(shapes []TrackShape, members []int, byID map[string]*tracking.FlightSession) RoutePattern {
	headings := make([]float64, 0, len(members))
	memberIDs := make([]string, 0, len(members))
	var first, last time.Time
	var firstSeens []time.Time

	// The representative is the member with the longest track, a cheap
	// stand-in for a medoid.
	representative := ""
	bestLength := -1.0

	for _, idx := range members {
		shape := shapes[idx]
		headings = append(headings, shape.DominantHeading)
		memberIDs = append(memberIDs, shape.SessionID)
		if shape.PathLengthKM > bestLength {
			bestLength = shape.PathLengthKM
			representative = shape.SessionID
		}

		sess := byID[shape.SessionID]
		if first.IsZero() || sess.FirstSeen.Before(first) {
			first = sess.FirstSeen
		}
		if sess.LastSeen.After(last) {
			last = sess.LastSeen
		}
		firstSeens = append(firstSeens, sess.FirstSeen)
	}

	meanHeading, _ := geo.CircularMean(headings, nil)

	return RoutePattern{
		HeadingDeg:      meanHeading,
		Representative:  representative,
		OccurrenceCount: len(members),
		MemberIDs:       memberIDs,
		FirstSeen:       first,
		LastSeen:        last,
		Periodicity:     d.periodicity(firstSeens),
	}
}

// periodicity estimates schedule regularity from the occurrence first-seen
// times of day, treated as angles on a 24h circle. A period is reported only
// when the circular spread, as a fraction of the day, stays below the
// configured bound.
func (d *PatternDetector) periodicity(firstSeens []time.Time) *Periodicity {
	if len(firstSeens) < 2 {
		return nil
	}

	angles := make([]float64, len(firstSeens))
	for i, ts := range firstSeens {
		utc := ts.UTC()
		sec := float64(utc.Hour()*3600 + utc.Minute()*60 + utc.Second())
		angles[i] = sec / 86400 * 360
	}

	mean, ok := geo.CircularMean(angles, nil)
	if !ok {
		return nil
	}
	sigmaDeg := geo.CircularStdDev(angles)
	sigmaMinutes := sigmaDeg / 360 * 24 * 60
	cv := sigmaMinutes / (24 * 60)
	if cv >= d.opts.PeriodicityBound {
		return nil
	}

	meanSec := mean / 360 * 86400
	h := int(meanSec) / 3600
	m := (int(meanSec) % 3600) / 60

	return &Periodicity{
		MeanTimeOfDayUTC: fmt.Sprintf("%02d:%02d", h, m),
		SigmaMinutes:     math.Round(sigmaMinutes*100) / 100,
		CV:               cv,
	}
}
