// Package model contains the transfer objects exchanged between the host, the
// bridge and the wrapped map library. Shapes follow the map library's own
// option and event names.
package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// LngLat is a geographic position.
type LngLat struct {
	Lng float64 `json:"lng" minimum:"-180" maximum:"180" doc:"Longitude"`
	Lat float64 `json:"lat" minimum:"-90" maximum:"90" doc:"Latitude"`
}

// ToArray returns [lng, lat].
func (p LngLat) ToArray() [2]float64 { return [2]float64{p.Lng, p.Lat} }

// Point converts to an orb point.
func (p LngLat) Point() orb.Point { return orb.Point{p.Lng, p.Lat} }

// Validate checks the position ranges.
func (p LngLat) Validate() error {
	return ValidateLngLat(p.Lng, p.Lat)
}

// ValidateLngLat checks that longitude is in [-180,180] and latitude in [-90,90].
func ValidateLngLat(lng, lat float64) error {
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", lng)
	}
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", lat)
	}
	return nil
}

// MapCenter is the center of the viewport.
type MapCenter struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// MapBounds is a west/south/east/north box.
type MapBounds struct {
	North float64 `json:"north" minimum:"-90" maximum:"90"`
	South float64 `json:"south" minimum:"-90" maximum:"90"`
	East  float64 `json:"east" minimum:"-180" maximum:"180"`
	West  float64 `json:"west" minimum:"-180" maximum:"180"`
}

// ToArray returns [west, south, east, north].
func (b MapBounds) ToArray() [4]float64 {
	return [4]float64{b.West, b.South, b.East, b.North}
}

// BoundsFromArray parses [west, south, east, north].
func BoundsFromArray(a []float64) (MapBounds, error) {
	if len(a) != 4 {
		return MapBounds{}, errors.New("bounds array must have 4 elements")
	}
	return MapBounds{West: a[0], South: a[1], East: a[2], North: a[3]}, nil
}

// BoundsFromOrb converts an orb bound.
func BoundsFromOrb(b orb.Bound) MapBounds {
	return MapBounds{West: b.Min.Lon(), South: b.Min.Lat(), East: b.Max.Lon(), North: b.Max.Lat()}
}

// Bound converts to an orb bound.
func (b MapBounds) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.West, b.South}, Max: orb.Point{b.East, b.North}}
}

// Validate checks corner ranges and that south is not above north.
// West may exceed east for boxes crossing the antimeridian.
func (b MapBounds) Validate() error {
	if err := ValidateLngLat(b.West, b.South); err != nil {
		return err
	}
	if err := ValidateLngLat(b.East, b.North); err != nil {
		return err
	}
	if b.South > b.North {
		return fmt.Errorf("south %v is north of north %v", b.South, b.North)
	}
	return nil
}

// ScreenPoint is a pixel position relative to the map container.
type ScreenPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MeasureDistance returns the length in kilometers of the path through coords.
func MeasureDistance(coords [][2]float64) float64 {
	var meters float64
	for i := 0; i+1 < len(coords); i++ {
		meters += geo.DistanceHaversine(orb.Point(coords[i]), orb.Point(coords[i+1]))
	}
	return meters / 1000
}

// MeasureArea returns the area in square kilometers of the ring. The ring is
// closed if the last position differs from the first.
func MeasureArea(ring [][2]float64) (float64, error) {
	if len(ring) < 3 {
		return 0, errors.New("polygon ring needs at least 3 positions")
	}
	r := make(orb.Ring, 0, len(ring)+1)
	for _, c := range ring {
		r = append(r, orb.Point(c))
	}
	if !r.Closed() {
		r = append(r, r[0])
	}
	return math.Abs(geo.Area(orb.Polygon{r})) / 1e6, nil
}
