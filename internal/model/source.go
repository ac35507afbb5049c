package model

import "encoding/json"

// Source types understood by the map library.
const (
	SourceVector    = "vector"
	SourceRaster    = "raster"
	SourceRasterDEM = "raster-dem"
	SourceGeoJSON   = "geojson"
	SourceImage     = "image"
	SourceVideo     = "video"
)

// GeoJSONSource is a source backed by inline GeoJSON or a GeoJSON URL.
type GeoJSONSource struct {
	Type              string          `json:"type" jsonschema:"enum=geojson"`
	Data              json.RawMessage `json:"data"`
	MaxZoom           *int            `json:"maxzoom,omitempty"`
	Attribution       string          `json:"attribution,omitempty"`
	Buffer            *int            `json:"buffer,omitempty"`
	LineMetrics       *bool           `json:"lineMetrics,omitempty"`
	Tolerance         *float64        `json:"tolerance,omitempty"`
	Cluster           *bool           `json:"cluster,omitempty"`
	ClusterMaxZoom    *int            `json:"clusterMaxZoom,omitempty"`
	ClusterRadius     *int            `json:"clusterRadius,omitempty"`
	ClusterProperties map[string]any  `json:"clusterProperties,omitempty"`
}

// NewGeoJSONSource wraps data in a geojson source.
func NewGeoJSONSource(data json.RawMessage) GeoJSONSource {
	return GeoJSONSource{Type: SourceGeoJSON, Data: data}
}

type VectorSource struct {
	Type        string    `json:"type" jsonschema:"enum=vector"`
	URL         string    `json:"url,omitempty"`
	Tiles       []string  `json:"tiles,omitempty"`
	Bounds      []float64 `json:"bounds,omitempty"`
	Scheme      string    `json:"scheme,omitempty"`
	MinZoom     *int      `json:"minzoom,omitempty"`
	MaxZoom     *int      `json:"maxzoom,omitempty"`
	Attribution string    `json:"attribution,omitempty"`
	Volatile    *bool     `json:"volatile,omitempty"`
}

type RasterSource struct {
	Type        string    `json:"type" jsonschema:"enum=raster"`
	URL         string    `json:"url,omitempty"`
	Tiles       []string  `json:"tiles,omitempty"`
	Bounds      []float64 `json:"bounds,omitempty"`
	MinZoom     *int      `json:"minzoom,omitempty"`
	MaxZoom     *int      `json:"maxzoom,omitempty"`
	TileSize    int       `json:"tileSize,omitempty"`
	Scheme      string    `json:"scheme,omitempty"`
	Attribution string    `json:"attribution,omitempty"`
	Volatile    *bool     `json:"volatile,omitempty"`
}

// RasterDEMSource is an elevation source used by terrain.
type RasterDEMSource struct {
	Type     string `json:"type" jsonschema:"enum=raster-dem"`
	URL      string `json:"url,omitempty"`
	TileSize int    `json:"tileSize,omitempty"`
	MaxZoom  *int   `json:"maxzoom,omitempty"`
}

// ImageSource places an image at four corner coordinates
// (top-left, top-right, bottom-right, bottom-left).
type ImageSource struct {
	Type        string        `json:"type" jsonschema:"enum=image"`
	URL         string        `json:"url"`
	Coordinates [4][2]float64 `json:"coordinates"`
}

type VideoSource struct {
	Type        string        `json:"type" jsonschema:"enum=video"`
	URLs        []string      `json:"urls"`
	Coordinates [4][2]float64 `json:"coordinates"`
}

// Document marshals a typed source or layer into the opaque form the bridge
// forwards to the map library.
func Document(v any) (json.RawMessage, error) {
	return json.Marshal(v)
}
