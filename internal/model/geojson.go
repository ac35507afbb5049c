package model

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// PointFeature builds a point feature at lng/lat.
func PointFeature(lng, lat float64, props map[string]any) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{lng, lat})
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

// LineFeature builds a line string feature.
func LineFeature(coords [][2]float64, props map[string]any) *geojson.Feature {
	ls := make(orb.LineString, 0, len(coords))
	for _, c := range coords {
		ls = append(ls, orb.Point(c))
	}
	f := geojson.NewFeature(ls)
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

// PolygonFeature builds a polygon feature from rings.
func PolygonFeature(rings [][][2]float64, props map[string]any) *geojson.Feature {
	poly := make(orb.Polygon, 0, len(rings))
	for _, ring := range rings {
		r := make(orb.Ring, 0, len(ring))
		for _, c := range ring {
			r = append(r, orb.Point(c))
		}
		poly = append(poly, r)
	}
	f := geojson.NewFeature(poly)
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

// FeatureCollection gathers features into a collection.
func FeatureCollection(features ...*geojson.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = append(fc.Features, features...)
	return fc
}

// ValidateGeoJSON checks that data is a GeoJSON document (feature collection,
// feature or bare geometry) with positions in range, or a URL string the map
// library fetches itself.
func ValidateGeoJSON(data json.RawMessage) error {
	if len(data) == 0 {
		return errors.New("geojson data is required")
	}

	var url string
	if err := json.Unmarshal(data, &url); err == nil {
		if url == "" {
			return errors.New("geojson data url is empty")
		}
		return nil
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("geojson data: %w", err)
	}

	var geoms []orb.Geometry
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return fmt.Errorf("geojson feature collection: %w", err)
		}
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return fmt.Errorf("geojson feature: %w", err)
		}
		geoms = append(geoms, f.Geometry)
	case "":
		return errors.New("geojson data has no type")
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return fmt.Errorf("geojson geometry: %w", err)
		}
		geoms = append(geoms, g.Geometry())
	}

	for _, g := range geoms {
		if g == nil {
			continue
		}
		b := g.Bound()
		if err := ValidateLngLat(b.Min.Lon(), b.Min.Lat()); err != nil {
			return err
		}
		if err := ValidateLngLat(b.Max.Lon(), b.Max.Lat()); err != nil {
			return err
		}
	}
	return nil
}
