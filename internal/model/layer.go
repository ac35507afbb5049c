package model

import "encoding/json"

// Layer types understood by the map library.
const (
	LayerFill          = "fill"
	LayerLine          = "line"
	LayerSymbol        = "symbol"
	LayerCircle        = "circle"
	LayerHeatmap       = "heatmap"
	LayerFillExtrusion = "fill-extrusion"
	LayerRaster        = "raster"
	LayerHillshade     = "hillshade"
	LayerBackground    = "background"
	LayerSky           = "sky"
)

// LayerDefinition is a style layer. Filter, layout and paint are passed
// through to the map library untouched.
type LayerDefinition struct {
	ID          string          `json:"id" required:"true" minLength:"1" doc:"Layer id, unique within the map" example:"parks-fill" jsonschema:"minLength=1"`
	Type        string          `json:"type" required:"true" enum:"fill,line,symbol,circle,heatmap,fill-extrusion,raster,hillshade,background,sky" jsonschema:"enum=fill,enum=line,enum=symbol,enum=circle,enum=heatmap,enum=fill-extrusion,enum=raster,enum=hillshade,enum=background,enum=sky"`
	Source      string          `json:"source,omitempty" doc:"Id of the source the layer draws from"`
	SourceLayer string          `json:"source-layer,omitempty" doc:"Layer inside a vector source"`
	Filter      json.RawMessage `json:"filter,omitempty" doc:"Filter expression"`
	Layout      map[string]any  `json:"layout,omitempty"`
	Paint       map[string]any  `json:"paint,omitempty"`
	MinZoom     *float64        `json:"minzoom,omitempty" minimum:"0" maximum:"24"`
	MaxZoom     *float64        `json:"maxzoom,omitempty" minimum:"0" maximum:"24"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
}

// NeedsSource reports whether the layer type draws from a source.
func (l LayerDefinition) NeedsSource() bool {
	return l.Type != LayerBackground && l.Type != LayerSky
}

func NewFillLayer(id, source string) LayerDefinition {
	return LayerDefinition{ID: id, Type: LayerFill, Source: source, Paint: map[string]any{
		"fill-color":   "#000000",
		"fill-opacity": 0.5,
	}}
}

func NewLineLayer(id, source string) LayerDefinition {
	return LayerDefinition{ID: id, Type: LayerLine, Source: source, Paint: map[string]any{
		"line-color": "#000000",
		"line-width": 1,
	}}
}

func NewCircleLayer(id, source string) LayerDefinition {
	return LayerDefinition{ID: id, Type: LayerCircle, Source: source, Paint: map[string]any{
		"circle-radius": 5,
		"circle-color":  "#000000",
	}}
}

func NewSymbolLayer(id, source string) LayerDefinition {
	return LayerDefinition{ID: id, Type: LayerSymbol, Source: source, Layout: map[string]any{
		"text-field": "",
		"text-font":  []string{"Open Sans Regular", "Arial Unicode MS Regular"},
		"text-size":  12,
	}}
}

func NewHeatmapLayer(id, source string) LayerDefinition {
	return LayerDefinition{ID: id, Type: LayerHeatmap, Source: source, Paint: map[string]any{
		"heatmap-radius":    30,
		"heatmap-intensity": 1,
	}}
}

func NewFillExtrusionLayer(id, source string) LayerDefinition {
	return LayerDefinition{ID: id, Type: LayerFillExtrusion, Source: source, Paint: map[string]any{
		"fill-extrusion-color":  "#000000",
		"fill-extrusion-height": 0,
		"fill-extrusion-base":   0,
	}}
}

// Visibility values for the layout "visibility" property.
const (
	Visible = "visible"
	Hidden  = "none"
)
