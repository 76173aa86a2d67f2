// Package geo computes great-circle distances between client and provider
// coordinates. No spatial index is assumed; proximity queries prefilter with a
// bounding box and rank with the haversine formula.
package geo

import "math"

// Mean Earth radius in meters (IUGG).
const earthRadiusMeters = 6371008.8

type Point struct {
	Lat float64
	Lng float64
}

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng

	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// BoundingBox is a latitude/longitude rectangle used to prefilter providers
// in SQL before exact distances are computed.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// BoundFromRadius returns a box guaranteed to contain every point within
// radiusMeters of center. Near the poles, or when the radius spans the
// antimeridian, the longitude range degrades to the full [-180, 180].
func BoundFromRadius(center Point, radiusMeters float64) BoundingBox {
	latDelta := radiusMeters / earthRadiusMeters * 180 / math.Pi

	box := BoundingBox{
		MinLat: math.Max(center.Lat-latDelta, -90),
		MaxLat: math.Min(center.Lat+latDelta, 90),
		MinLng: -180,
		MaxLng: 180,
	}

	cosLat := math.Cos(center.Lat * math.Pi / 180)
	if cosLat <= 0 {
		return box
	}
	lngDelta := latDelta / cosLat
	if lngDelta >= 180 || center.Lng-lngDelta < -180 || center.Lng+lngDelta > 180 {
		return box
	}

	box.MinLng = center.Lng - lngDelta
	box.MaxLng = center.Lng + lngDelta
	return box
}
