// Package geo holds the small geographic value types shared by the presence
// and incident domains.
package geo

import (
	"fmt"
)

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks the coordinate ranges.
func (p Point) Validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude out of range: %f", p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude out of range: %f", p.Lng)
	}
	return nil
}

// IsZero reports whether the point is the (0,0) zero value.  Devices never
// report a true null-island fix, so the zero value doubles as "no location".
func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}
