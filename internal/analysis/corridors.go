package analysis

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
	"golang.org/x/sync/errgroup"

	"github.com/dan1elw/LARA/internal/geo"
	"github.com/dan1elw/LARA/internal/tracking"
	"github.com/dan1elw/LARA/pkg/logger"
)

// Corridor is a detected linear traffic lane: a derived, read-only view over
// one batch of sessions, recomputed from scratch per analysis run. Members
// are referenced by session ID only.
type Corridor struct {
	ID                 string      `json:"id"`
	Centerline         []geo.Point `json:"centerline"`
	MeanHeadingDeg     float64     `json:"mean_heading_deg"`
	MagneticHeadingDeg float64     `json:"magnetic_heading_deg"`
	HeadingSpreadDeg   float64     `json:"heading_spread_deg"`
	LengthKM           float64     `json:"length_km"`
	Linearity          float64     `json:"linearity"`
	MeanAltitudeM      *float64    `json:"mean_altitude_m,omitempty"`
	MemberIDs          []string    `json:"member_ids"`
	MemberCount        int         `json:"member_count"`
}

// centerlineStationKM is the spacing of resampling stations along a
// cluster's principal axis.
const centerlineStationKM = 1.0

// centerlineSimplifyDeg is the Douglas-Peucker threshold applied to the raw
// station sequence, roughly 200 m.
const centerlineSimplifyDeg = 0.002

// CorridorDetector clusters sealed sessions into corridors by dominant
// heading and track proximity.
type CorridorDetector struct {
	spheroid geo.Spheroid
	opts     Options
	logger   *logger.Logger
}

func NewCorridorDetector(spheroid geo.Spheroid, opts Options, log *logger.Logger) *CorridorDetector {
	return &CorridorDetector{
		spheroid: spheroid,
		opts:     opts,
		logger:   log.Named("corridors"),
	}
}

type edge struct {
	a, b int
}

// projected is a member fix with its scalar position along the cluster's
// principal axis.
type projected struct {
	t float64
	p geo.Point
}

// Detect partitions the session batch into corridors. Sessions too short,
// too curved, or in clusters too lightly populated are dropped silently.
// The input is re-sorted internally so repeated runs over the same session
// set produce identical corridor membership.
func (d *CorridorDetector) Detect(ctx context.Context, sessions []*tracking.FlightSession, asOf time.Time) ([]Corridor, error) {
	ordered := make([]*tracking.FlightSession, len(sessions))
	copy(ordered, sessions)
	tracking.SortSessions(ordered)

	shapes := make([]TrackShape, 0, len(ordered))
	byID := make(map[string]*tracking.FlightSession, len(ordered))
	for _, sess := range ordered {
		shape := shapeOf(d.spheroid, sess)
		if !shape.HasHeading {
			continue
		}
		if shape.Linearity < d.opts.MinLinearityScore {
			continue
		}
		shapes = append(shapes, shape)
		byID[sess.ID] = sess
	}

	d.logger.Debug("Corridor candidates selected",
		logger.Int("sessions", len(ordered)),
		logger.Int("candidates", len(shapes)),
	)

	edges, err := d.compatibleEdges(ctx, shapes)
	if err != nil {
		return nil, err
	}

	uf := newUnionFind(len(shapes))
	for _, e := range edges {
		uf.union(e.a, e.b)
	}

	corridors := make([]Corridor, 0)
	for _, members := range uf.groups() {
		if len(members) < d.opts.MinFlightsForCorridor {
			continue
		}
		c, ok := d.buildCorridor(shapes, members, byID, asOf)
		if !ok {
			continue
		}
		corridors = append(corridors, c)
	}

	// Rank by traffic volume; ties break on the first member ID so the
	// ordering is reproducible.
	sort.SliceStable(corridors, func(i, j int) bool {
		if corridors[i].MemberCount != corridors[j].MemberCount {
			return corridors[i].MemberCount > corridors[j].MemberCount
		}
		return corridors[i].MemberIDs[0] < corridors[j].MemberIDs[0]
	})
	for i := range corridors {
		corridors[i].ID = fmt.Sprintf("corridor_%03d", i+1)
	}

	d.logger.Info("Corridor detection complete",
		logger.Int("candidates", len(shapes)),
		logger.Int("corridors", len(corridors)),
	)
	return corridors, nil
}

// compatibleEdges evaluates the O(n²) pairwise compatibility relation,
// sharded across workers. Each shard owns a fixed stripe of row indices and
// emits its edges in ascending (a, b) order; shards are merged in stripe
// order so the result is independent of scheduling.
func (d *CorridorDetector) compatibleEdges(ctx context.Context, shapes []TrackShape) ([]edge, error) {
	n := len(shapes)
	if n < 2 {
		return nil, nil
	}

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
					if d.compatible(shapes[a], shapes[b]) {
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

// compatible reports whether two tracks could share a corridor: headings
// within tolerance and tracks within proximity. Clusters form over the
// transitive closure of this relation, so a corridor may bend slightly.
func (d *CorridorDetector) compatible(a, b TrackShape) bool {
	if geo.CircularDiff(a.DominantHeading, b.DominantHeading) > d.opts.HeadingToleranceDeg {
		return false
	}
	return d.spheroid.MinPolylineDistanceKM(a.Fixes, b.Fixes) <= d.opts.ProximityThresholdKM
}

// buildCorridor computes cluster metrics and the representative centerline.
// It returns ok=false when the cluster fails the length gate.
func (d *CorridorDetector) buildCorridor(shapes []TrackShape, members []int, byID map[string]*tracking.FlightSession, asOf time.Time) (Corridor, bool) {
	headings := make([]float64, 0, len(members))
	memberIDs := make([]string, 0, len(members))
	var linearitySum float64
	var fixCount int
	for _, idx := range members {
		headings = append(headings, shapes[idx].DominantHeading)
		memberIDs = append(memberIDs, shapes[idx].SessionID)
		linearitySum += shapes[idx].Linearity
		fixCount += len(shapes[idx].Fixes)
	}

	meanHeading, _ := geo.CircularMean(headings, nil)

	// Centroid of all member fixes anchors the local projection frame.
	var latSum, lonSum float64
	for _, idx := range members {
		for _, p := range shapes[idx].Fixes {
			latSum += p.Lat
			lonSum += p.Lon
		}
	}
	centroid := geo.Point{
		Lat: latSum / float64(fixCount),
		Lon: lonSum / float64(fixCount),
	}

	// Project every fix onto the principal axis (the mean heading through
	// the centroid). The corridor length is the extent of the projections.
	axisX := math.Sin(meanHeading * math.Pi / 180)
	axisY := math.Cos(meanHeading * math.Pi / 180)

	projections := make([]projected, 0, fixCount)
	minT, maxT := math.Inf(1), math.Inf(-1)
	for _, idx := range members {
		for _, p := range shapes[idx].Fixes {
			x, y := d.spheroid.LocalKM(centroid, p)
			t := x*axisX + y*axisY
			projections = append(projections, projected{t: t, p: p})
			if t < minT {
				minT = t
			}
			if t > maxT {
				maxT = t
			}
		}
	}

	length := maxT - minT
	if length < d.opts.MinCorridorLengthKM {
		return Corridor{}, false
	}

	c := Corridor{
		Centerline:       d.centerline(projections, minT, maxT),
		MeanHeadingDeg:   meanHeading,
		HeadingSpreadDeg: geo.CircularStdDev(headings),
		LengthKM:         length,
		Linearity:        linearitySum / float64(len(members)),
		MemberIDs:        memberIDs,
		MemberCount:      len(members),
	}

	c.MeanAltitudeM = meanAltitude(members, shapes, byID)
	altM := 0.0
	if c.MeanAltitudeM != nil {
		altM = *c.MeanAltitudeM
	}
	c.MagneticHeadingDeg = geo.MagneticHeading(meanHeading, centroid, altM, asOf)
	return c, true
}

// centerline resamples the member fixes onto evenly spaced stations along
// the principal axis and takes the per-station mean position, then
// simplifies the polyline.
func (d *CorridorDetector) centerline(projections []projected, minT, maxT float64) []geo.Point {
	span := maxT - minT
	stations := int(span/centerlineStationKM) + 1
	if stations < 2 {
		stations = 2
	}

	type bucket struct {
		latSum, lonSum float64
		count          int
	}
	buckets := make([]bucket, stations)
	for _, pr := range projections {
		i := int((pr.t - minT) / span * float64(stations-1))
		if i < 0 {
			i = 0
		} else if i >= stations {
			i = stations - 1
		}
		buckets[i].latSum += pr.p.Lat
		buckets[i].lonSum += pr.p.Lon
		buckets[i].count++
	}

	line := make(orb.LineString, 0, stations)
	for _, b := range buckets {
		if b.count == 0 {
			continue
		}
		line = append(line, orb.Point{
			b.lonSum / float64(b.count),
			b.latSum / float64(b.count),
		})
	}
	if len(line) > 2 {
		line = simplify.DouglasPeucker(centerlineSimplifyDeg).Simplify(line).(orb.LineString)
	}

	out := make([]geo.Point, len(line))
	for i, p := range line {
		out[i] = geo.Point{Lat: p.Lat(), Lon: p.Lon()}
	}
	return out
}

// meanAltitude averages the altitude over every member sample reporting one.
func meanAltitude(members []int, shapes []TrackShape, byID map[string]*tracking.FlightSession) *float64 {
	var sum float64
	var count int
	for _, idx := range members {
		sess, ok := byID[shapes[idx].SessionID]
		if !ok {
			continue
		}
		for _, sample := range sess.Samples {
			if alt, ok := sample.AltitudeM(); ok {
				sum += alt
				count++
			}
		}
	}
	if count == 0 {
		return nil
	}
	mean := sum / float64(count)
	return &mean
}
