package reroute

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/climaroute/navigator/internal/routing"
	"github.com/climaroute/navigator/internal/trip"
)

// fakeSearcher returns a canned result or error.
type fakeSearcher struct {
	result  *routing.SearchResult
	err     error
	lastReq routing.SearchRequest
}

func (f *fakeSearcher) SearchRoutes(_ context.Context, req routing.SearchRequest) (*routing.SearchResult, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeSearcher) Name() string { return "fake" }

func routeWithScore(score float64, geometry ...trip.Coordinate) trip.Route {
	if len(geometry) == 0 {
		geometry = []trip.Coordinate{
			{Lat: 52.0 + score/1000, Lon: 4.0},
			{Lat: 52.1 + score/1000, Lon: 4.1},
		}
	}
	return trip.Route{Geometry: geometry, SafetyScore: score}
}

func TestEvaluateOnce_PicksHighestSafetyScore(t *testing.T) {
	searcher := &fakeSearcher{
		result: &routing.SearchResult{
			Alternatives: []trip.Route{
				routeWithScore(80),
				routeWithScore(95),
				routeWithScore(60),
			},
		},
	}
	evaluator := New(Config{Searcher: searcher, Logger: zerolog.Nop()})

	decision, err := evaluator.EvaluateOnce(context.Background(),
		trip.Coordinate{Lat: 52.37, Lon: 4.89}, "Utrecht")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if decision.SelectedIndex != 1 {
		t.Errorf("expected index 1 selected, got %d", decision.SelectedIndex)
	}
	if decision.Selected().SafetyScore != 95 {
		t.Errorf("expected safety score 95, got %f", decision.Selected().SafetyScore)
	}
	if len(decision.Segments) == 0 {
		t.Error("expected segments for the selected route")
	}

	// The search origin is the current position, not the trip origin.
	if searcher.lastReq.Origin != "52.370000,4.890000" {
		t.Errorf("unexpected search origin %q", searcher.lastReq.Origin)
	}
	if searcher.lastReq.Destination != "Utrecht" {
		t.Errorf("unexpected search destination %q", searcher.lastReq.Destination)
	}
}

func TestEvaluateOnce_NoRouteFound(t *testing.T) {
	searcher := &fakeSearcher{err: routing.ErrNoRouteFound}
	evaluator := New(Config{Searcher: searcher, Logger: zerolog.Nop()})

	_, err := evaluator.EvaluateOnce(context.Background(), trip.Coordinate{Lat: 52, Lon: 4}, "Utrecht")
	if !errors.Is(err, ErrNoValidRoute) {
		t.Errorf("expected ErrNoValidRoute, got %v", err)
	}
}

func TestEvaluateOnce_AllCandidatesFiltered(t *testing.T) {
	searcher := &fakeSearcher{
		result: &routing.SearchResult{
			Alternatives: []trip.Route{
				{Geometry: []trip.Coordinate{{Lat: 1, Lon: 1}}, SafetyScore: 99},
			},
		},
	}
	evaluator := New(Config{Searcher: searcher, Logger: zerolog.Nop()})

	_, err := evaluator.EvaluateOnce(context.Background(), trip.Coordinate{Lat: 52, Lon: 4}, "Utrecht")
	if !errors.Is(err, ErrNoValidRoute) {
		t.Errorf("expected ErrNoValidRoute when every candidate is dropped, got %v", err)
	}
}

func TestEvaluateOnce_SearchError(t *testing.T) {
	wantErr := errors.New("connection refused")
	searcher := &fakeSearcher{err: wantErr}
	evaluator := New(Config{Searcher: searcher, Logger: zerolog.Nop()})

	_, err := evaluator.EvaluateOnce(context.Background(), trip.Coordinate{Lat: 52, Lon: 4}, "Utrecht")
	if !errors.Is(err, wantErr) {
		t.Errorf("expected the search error passed through, got %v", err)
	}
}

func TestDeduplicate(t *testing.T) {
	shared := []trip.Coordinate{
		{Lat: 52.3702, Lon: 4.8952},
		{Lat: 52.3650, Lon: 4.9000},
		{Lat: 52.3600, Lon: 4.9100},
		{Lat: 52.3550, Lon: 4.9200},
		{Lat: 52.3500, Lon: 4.9300},
	}

	// Same first five points at 3 decimals, divergent after.
	dupA := trip.Route{Geometry: append(append([]trip.Coordinate{}, shared...),
		trip.Coordinate{Lat: 52.30, Lon: 4.95}), SafetyScore: 70}
	dupB := trip.Route{Geometry: append(append([]trip.Coordinate{}, shared...),
		trip.Coordinate{Lat: 52.20, Lon: 5.10}), SafetyScore: 90}
	distinct := trip.Route{Geometry: []trip.Coordinate{
		{Lat: 52.40, Lon: 4.80},
		{Lat: 52.35, Lon: 4.85},
	}, SafetyScore: 50}
	tooShort := trip.Route{Geometry: []trip.Coordinate{{Lat: 1, Lon: 1}}}

	out := Deduplicate([]trip.Route{dupA, dupB, distinct, tooShort})
	if len(out) != 2 {
		t.Fatalf("expected 2 surviving routes, got %d", len(out))
	}
	// First occurrence wins, even with a lower score.
	if out[0].SafetyScore != 70 {
		t.Errorf("expected first duplicate kept, got score %f", out[0].SafetyScore)
	}
	if out[1].SafetyScore != 50 {
		t.Errorf("expected distinct route kept, got score %f", out[1].SafetyScore)
	}
}

func TestDeduplicate_SubPrecisionDifference(t *testing.T) {
	// 4th-decimal differences collapse at 3-decimal precision.
	a := trip.Route{Geometry: []trip.Coordinate{
		{Lat: 52.37021, Lon: 4.89516},
		{Lat: 52.36502, Lon: 4.90003},
	}}
	b := trip.Route{Geometry: []trip.Coordinate{
		{Lat: 52.37024, Lon: 4.89519},
		{Lat: 52.36498, Lon: 4.90001},
	}}

	out := Deduplicate([]trip.Route{a, b})
	if len(out) != 1 {
		t.Fatalf("expected near-identical geometries to collapse, got %d routes", len(out))
	}
}

func TestSelectBest_TieBreaksToEarliest(t *testing.T) {
	routes := []trip.Route{
		routeWithScore(90),
		routeWithScore(90),
		routeWithScore(80),
	}
	if got := SelectBest(routes); got != 0 {
		t.Errorf("expected tie broken to index 0, got %d", got)
	}
}

func TestSegments(t *testing.T) {
	// A straight north-south line of 11 points.
	geometry := make([]trip.Coordinate, 11)
	for i := range geometry {
		geometry[i] = trip.Coordinate{Lat: 52.0 + float64(i)*0.01, Lon: 4.9}
	}

	segments := Segments(geometry, SegmentCount)
	if len(segments) != SegmentCount {
		t.Fatalf("expected %d segments, got %d", SegmentCount, len(segments))
	}
	if segments[0].Coord != geometry[0] {
		t.Errorf("expected first segment at route start, got %+v", segments[0].Coord)
	}
	last := segments[len(segments)-1]
	if last.Coord != geometry[len(geometry)-1] {
		t.Errorf("expected last segment at route end, got %+v", last.Coord)
	}
	for i := 1; i < len(segments); i++ {
		if segments[i].DistanceMeters <= segments[i-1].DistanceMeters {
			t.Errorf("expected cumulative distance to increase at segment %d", i)
		}
		if segments[i].Index != i {
			t.Errorf("expected index %d, got %d", i, segments[i].Index)
		}
	}
}

func TestSegments_ShortGeometry(t *testing.T) {
	if got := Segments(nil, SegmentCount); got != nil {
		t.Errorf("expected nil for empty geometry, got %v", got)
	}

	two := []trip.Coordinate{{Lat: 52, Lon: 4.9}, {Lat: 52.01, Lon: 4.9}}
	segments := Segments(two, SegmentCount)
	if len(segments) == 0 {
		t.Fatal("expected at least the endpoints")
	}
	if segments[len(segments)-1].Coord != two[1] {
		t.Error("expected the final point to be included")
	}
}
