// Package search ranks providers by great-circle distance from a client
// location, optionally keeping only those with open slots.
package search

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/glowbook/marketplace-booking/internal/calendar"
	"github.com/glowbook/marketplace-booking/internal/geo"
	"github.com/glowbook/marketplace-booking/internal/schedule"
)

// ProviderStore lists candidate providers inside a bounding box. The box is a
// cheap SQL prefilter; exact distances are computed here.
type ProviderStore interface {
	ListProvidersWithin(ctx context.Context, box geo.BoundingBox) ([]calendar.Provider, error)
}

// AvailabilitySource generates candidate slots, used for the optional
// availability post-filter.
type AvailabilitySource interface {
	Slots(ctx context.Context, req schedule.Request) ([]schedule.Slot, error)
}

type Ranker struct {
	store ProviderStore
	gen   AvailabilitySource
}

func NewRanker(store ProviderStore, gen AvailabilitySource) *Ranker {
	return &Ranker{store: store, gen: gen}
}

type Query struct {
	Origin       geo.Point
	RadiusMeters float64

	// Optional availability filter: when Day is non-zero, providers without a
	// single open slot of Duration on that day are dropped.
	Day      time.Time
	Duration time.Duration
}

type Result struct {
	Provider       calendar.Provider
	DistanceMeters float64
}

// SearchNearby returns providers within the radius ordered by ascending
// distance. Equal distances tie-break on ascending provider id so pagination
// stays deterministic.
func (r *Ranker) SearchNearby(ctx context.Context, q Query) ([]Result, error) {
	if q.RadiusMeters <= 0 {
		return nil, fmt.Errorf("radius must be positive, got %f", q.RadiusMeters)
	}
	if q.Origin.Lat < -90 || q.Origin.Lat > 90 || q.Origin.Lng < -180 || q.Origin.Lng > 180 {
		return nil, fmt.Errorf("origin coordinate out of range: %+v", q.Origin)
	}

	box := geo.BoundFromRadius(q.Origin, q.RadiusMeters)
	candidates, err := r.store.ListProvidersWithin(ctx, box)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}

	results := make([]Result, 0, len(candidates))
	for _, p := range candidates {
		d := geo.Haversine(q.Origin, geo.Point{Lat: p.Latitude, Lng: p.Longitude})
		// Outside the radius means excluded, not sorted last.
		if d > q.RadiusMeters {
			continue
		}
		results = append(results, Result{Provider: p, DistanceMeters: d})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].DistanceMeters != results[j].DistanceMeters {
			return results[i].DistanceMeters < results[j].DistanceMeters
		}
		return lessUUID(results[i].Provider.ID, results[j].Provider.ID)
	})

	if !q.Day.IsZero() {
		results, err = r.filterAvailable(ctx, results, q)
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}

// filterAvailable drops providers with zero open slots for the requested day.
// Runs after the distance filter, which is cheaper.
func (r *Ranker) filterAvailable(ctx context.Context, results []Result, q Query) ([]Result, error) {
	duration := q.Duration
	if duration <= 0 {
		duration = 30 * time.Minute
	}

	day := q.Day.UTC().Truncate(24 * time.Hour)
	kept := results[:0]
	for _, res := range results {
		slots, err := r.gen.Slots(ctx, schedule.Request{
			ProviderID: res.Provider.ID,
			Duration:   duration,
			From:       day,
			To:         day.AddDate(0, 0, 1),
		})
		if err != nil {
			return nil, fmt.Errorf("availability for provider %s: %w", res.Provider.ID, err)
		}
		if len(slots) > 0 {
			kept = append(kept, res)
		}
	}
	return kept, nil
}

func lessUUID(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}
