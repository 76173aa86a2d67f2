package search

import (
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/glowbook/marketplace-booking/internal/calendar"
	"github.com/glowbook/marketplace-booking/internal/geo"
	"github.com/glowbook/marketplace-booking/internal/schedule"
)

const earthRadiusMeters = 6371008.8

// latAt returns the latitude whose pure-north displacement from the equator
// equals the given distance, so Haversine distances in tests are exact.
func latAt(meters float64) float64 {
	return meters / earthRadiusMeters * 180 / math.Pi
}

type staticStore struct {
	providers []calendar.Provider
}

func (s *staticStore) ListProvidersWithin(_ context.Context, box geo.BoundingBox) ([]calendar.Provider, error) {
	var out []calendar.Provider
	for _, p := range s.providers {
		if p.Latitude >= box.MinLat && p.Latitude <= box.MaxLat &&
			p.Longitude >= box.MinLng && p.Longitude <= box.MaxLng {
			out = append(out, p)
		}
	}
	return out, nil
}

type staticAvailability struct {
	open map[uuid.UUID]bool
}

func (s *staticAvailability) Slots(_ context.Context, req schedule.Request) ([]schedule.Slot, error) {
	if !s.open[req.ProviderID] {
		return nil, nil
	}
	return []schedule.Slot{{ProviderID: req.ProviderID, Start: req.From, End: req.From.Add(req.Duration)}}, nil
}

func provider(name string, lat, lng float64) calendar.Provider {
	return calendar.Provider{ID: uuid.New(), Name: name, Latitude: lat, Longitude: lng}
}

func TestSearchNearby_RadiusBoundary(t *testing.T) {
	const radius = 5000.0

	inside := provider("inside", latAt(radius-1), 0)
	outside := provider("outside", latAt(radius+1), 0)

	ranker := NewRanker(&staticStore{providers: []calendar.Provider{outside, inside}}, nil)

	results, err := ranker.SearchNearby(context.Background(), Query{
		Origin:       geo.Point{Lat: 0, Lng: 0},
		RadiusMeters: radius,
	})
	if err != nil {
		t.Fatalf("SearchNearby: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Provider.ID != inside.ID {
		t.Fatalf("kept %q, want the provider inside the radius", results[0].Provider.Name)
	}
	if math.Abs(results[0].DistanceMeters-(radius-1)) > 0.001 {
		t.Fatalf("distance = %.4f, want %.4f", results[0].DistanceMeters, radius-1)
	}
}

func TestSearchNearby_OrderedByDistance(t *testing.T) {
	providers := []calendar.Provider{
		provider("far", latAt(4000), 0),
		provider("near", latAt(500), 0),
		provider("mid", latAt(2500), 0),
	}
	ranker := NewRanker(&staticStore{providers: providers}, nil)

	results, err := ranker.SearchNearby(context.Background(), Query{
		Origin:       geo.Point{Lat: 0, Lng: 0},
		RadiusMeters: 10_000,
	})
	if err != nil {
		t.Fatalf("SearchNearby: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].DistanceMeters < results[i-1].DistanceMeters {
			t.Fatalf("ordering not non-decreasing: %.1f before %.1f",
				results[i-1].DistanceMeters, results[i].DistanceMeters)
		}
	}
	if results[0].Provider.Name != "near" || results[2].Provider.Name != "far" {
		t.Fatalf("unexpected order: %s, %s, %s",
			results[0].Provider.Name, results[1].Provider.Name, results[2].Provider.Name)
	}
}

func TestSearchNearby_EqualDistanceTieBreaksOnID(t *testing.T) {
	// One provider due north, one due south, both exactly 1 km away.
	north := provider("north", latAt(1000), 0)
	south := provider("south", -latAt(1000), 0)

	ranker := NewRanker(&staticStore{providers: []calendar.Provider{north, south}}, nil)

	results, err := ranker.SearchNearby(context.Background(), Query{
		Origin:       geo.Point{Lat: 0, Lng: 0},
		RadiusMeters: 5000,
	})
	if err != nil {
		t.Fatalf("SearchNearby: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	a, b := results[0].Provider.ID, results[1].Provider.ID
	if bytes.Compare(a[:], b[:]) >= 0 {
		t.Fatalf("equal distances must order by ascending provider id, got %s before %s", a, b)
	}
}

func TestSearchNearby_AvailabilityFilter(t *testing.T) {
	free := provider("free", latAt(1000), 0)
	booked := provider("booked", latAt(500), 0)

	store := &staticStore{providers: []calendar.Provider{free, booked}}
	avail := &staticAvailability{open: map[uuid.UUID]bool{free.ID: true}}
	ranker := NewRanker(store, avail)

	results, err := ranker.SearchNearby(context.Background(), Query{
		Origin:       geo.Point{Lat: 0, Lng: 0},
		RadiusMeters: 5000,
		Day:          time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		Duration:     45 * time.Minute,
	})
	if err != nil {
		t.Fatalf("SearchNearby: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Provider.ID != free.ID {
		t.Fatal("fully booked provider must be excluded by the availability filter")
	}
}

func TestSearchNearby_InvalidQuery(t *testing.T) {
	ranker := NewRanker(&staticStore{}, nil)

	if _, err := ranker.SearchNearby(context.Background(), Query{Origin: geo.Point{}, RadiusMeters: 0}); err == nil {
		t.Fatal("zero radius must be rejected")
	}
	if _, err := ranker.SearchNearby(context.Background(), Query{Origin: geo.Point{Lat: 91}, RadiusMeters: 100}); err == nil {
		t.Fatal("out-of-range latitude must be rejected")
	}
}
