package geo

import (
	"math"
	"testing"
)

func TestHaversine_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Point
		want      float64 // meters
		tolerance float64
	}{
		{
			name:      "same point",
			a:         Point{Lat: 40.7128, Lng: -74.0060},
			b:         Point{Lat: 40.7128, Lng: -74.0060},
			want:      0,
			tolerance: 0.001,
		},
		{
			name: "one degree of latitude at the equator",
			a:    Point{Lat: 0, Lng: 0},
			b:    Point{Lat: 1, Lng: 0},
			// one degree of arc on the mean sphere
			want:      earthRadiusMeters * math.Pi / 180,
			tolerance: 0.001,
		},
		{
			name:      "paris to london",
			a:         Point{Lat: 48.8566, Lng: 2.3522},
			b:         Point{Lat: 51.5074, Lng: -0.1278},
			want:      343_556,
			tolerance: 1000,
		},
		{
			name:      "antipodal",
			a:         Point{Lat: 0, Lng: 0},
			b:         Point{Lat: 0, Lng: 180},
			want:      earthRadiusMeters * math.Pi,
			tolerance: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.a, tt.b)
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Fatalf("Haversine() = %.3f m, want %.3f m (±%.3f)", got, tt.want, tt.tolerance)
			}
		})
	}
}

func TestHaversine_Symmetric(t *testing.T) {
	a := Point{Lat: 52.5200, Lng: 13.4050}
	b := Point{Lat: 48.1351, Lng: 11.5820}
	if d1, d2 := Haversine(a, b), Haversine(b, a); math.Abs(d1-d2) > 1e-9 {
		t.Fatalf("distance not symmetric: %.9f vs %.9f", d1, d2)
	}
}

func TestBoundFromRadius_ContainsCircle(t *testing.T) {
	center := Point{Lat: 40.7128, Lng: -74.0060}
	const radius = 5000.0

	box := BoundFromRadius(center, radius)

	// Sample points on the circle boundary in each cardinal direction must
	// land inside the box.
	for _, bearing := range []float64{0, 90, 180, 270} {
		rad := bearing * math.Pi / 180
		latDelta := radius / earthRadiusMeters * 180 / math.Pi
		lngDelta := latDelta / math.Cos(center.Lat*math.Pi/180)
		p := Point{
			Lat: center.Lat + latDelta*math.Cos(rad),
			Lng: center.Lng + lngDelta*math.Sin(rad),
		}
		if p.Lat < box.MinLat || p.Lat > box.MaxLat || p.Lng < box.MinLng || p.Lng > box.MaxLng {
			t.Fatalf("point at bearing %.0f (%v) outside box %+v", bearing, p, box)
		}
	}
}

func TestBoundFromRadius_PolarFallback(t *testing.T) {
	box := BoundFromRadius(Point{Lat: 89.9, Lng: 10}, 50_000)
	if box.MinLng != -180 || box.MaxLng != 180 {
		t.Fatalf("expected full longitude range near the pole, got %+v", box)
	}
}
