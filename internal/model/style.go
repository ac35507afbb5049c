package model

// Hosted styles published by the map library vendor.
const (
	StyleStreets          = "mapbox://styles/mapbox/streets-v12"
	StyleOutdoors         = "mapbox://styles/mapbox/outdoors-v12"
	StyleLight            = "mapbox://styles/mapbox/light-v11"
	StyleDark             = "mapbox://styles/mapbox/dark-v11"
	StyleSatellite        = "mapbox://styles/mapbox/satellite-v9"
	StyleSatelliteStreets = "mapbox://styles/mapbox/satellite-streets-v12"
	StyleNavigationDay    = "mapbox://styles/mapbox/navigation-day-v1"
	StyleNavigationNight  = "mapbox://styles/mapbox/navigation-night-v1"
)

// MapOptions are the construction options of a map instance.
type MapOptions struct {
	Container          string     `json:"container" required:"true" minLength:"1" doc:"Container element id; also the map id" example:"m1"`
	AccessToken        string     `json:"accessToken,omitempty" doc:"Overrides the configured access token"`
	Style              string     `json:"style,omitempty" doc:"Style URL" example:"mapbox://styles/mapbox/streets-v12"`
	Center             *LngLat    `json:"center,omitempty"`
	Zoom               float64    `json:"zoom,omitempty" minimum:"0" maximum:"24"`
	MinZoom            *float64   `json:"minZoom,omitempty" minimum:"0" maximum:"24"`
	MaxZoom            *float64   `json:"maxZoom,omitempty" minimum:"0" maximum:"24"`
	Bearing            float64    `json:"bearing,omitempty"`
	Pitch              float64    `json:"pitch,omitempty" minimum:"0" maximum:"85"`
	Interactive        *bool      `json:"interactive,omitempty"`
	AttributionControl *bool      `json:"attributionControl,omitempty"`
	ScrollZoom         *bool      `json:"scrollZoom,omitempty"`
	BoxZoom            *bool      `json:"boxZoom,omitempty"`
	DragRotate         *bool      `json:"dragRotate,omitempty"`
	DragPan            *bool      `json:"dragPan,omitempty"`
	Keyboard           *bool      `json:"keyboard,omitempty"`
	DoubleClickZoom    *bool      `json:"doubleClickZoom,omitempty"`
	TouchZoomRotate    *bool      `json:"touchZoomRotate,omitempty"`
	MaxBounds          *MapBounds `json:"maxBounds,omitempty"`
	RenderWorldCopies  *bool      `json:"renderWorldCopies,omitempty"`
}

// Camera is the viewport state.
type Camera struct {
	Center  LngLat  `json:"center"`
	Zoom    float64 `json:"zoom"`
	Bearing float64 `json:"bearing"`
	Pitch   float64 `json:"pitch"`
}

// CameraOptions is the target of a jump, ease or fly move. Omitted fields
// keep their current value. Essential forces the animation even when the
// user prefers reduced motion.
type CameraOptions struct {
	Center    *LngLat  `json:"center,omitempty"`
	Zoom      *float64 `json:"zoom,omitempty" minimum:"0" maximum:"24"`
	Bearing   *float64 `json:"bearing,omitempty"`
	Pitch     *float64 `json:"pitch,omitempty" minimum:"0" maximum:"85"`
	Duration  int      `json:"duration,omitempty" minimum:"0" doc:"Animation duration in milliseconds" default:"1000"`
	Essential bool     `json:"essential,omitempty" doc:"Animate even under reduced-motion preferences"`
}

// FitBoundsOptions pads and caps a fit-bounds move.
type FitBoundsOptions struct {
	Padding   float64 `json:"padding" default:"50"`
	MaxZoom   float64 `json:"maxZoom" default:"15"`
	Essential bool    `json:"essential,omitempty"`
}

// Viewport is a snapshot of the map's camera and motion state.
type Viewport struct {
	Camera
	Bounds   MapBounds `json:"bounds"`
	Moving   bool      `json:"moving"`
	Zooming  bool      `json:"zooming"`
	Rotating bool      `json:"rotating"`
}

type LightOptions struct {
	Anchor    string    `json:"anchor,omitempty" enum:"map,viewport" default:"viewport"`
	Position  []float64 `json:"position,omitempty"`
	Color     string    `json:"color,omitempty"`
	Intensity *float64  `json:"intensity,omitempty" minimum:"0" maximum:"1"`
}

type FogOptions struct {
	Color         string    `json:"color,omitempty"`
	HighColor     string    `json:"high-color,omitempty"`
	HorizonBlend  *float64  `json:"horizon-blend,omitempty"`
	SpaceColor    string    `json:"space-color,omitempty"`
	StarIntensity *float64  `json:"star-intensity,omitempty"`
	Range         []float64 `json:"range,omitempty"`
}

// SkyFog is the fog applied when terrain is enabled with a sky.
func SkyFog() FogOptions {
	blend, stars := 0.02, 0.6
	return FogOptions{
		Color:         "rgb(186, 210, 235)",
		HighColor:     "rgb(36, 92, 223)",
		HorizonBlend:  &blend,
		SpaceColor:    "rgb(11, 11, 25)",
		StarIntensity: &stars,
	}
}

type TerrainOptions struct {
	Exaggeration float64 `json:"exaggeration" default:"1.5"`
	Sky          bool    `json:"sky" default:"true"`
}

// DefaultTerrainOptions returns exaggeration 1.5 with sky fog.
func DefaultTerrainOptions() TerrainOptions {
	return TerrainOptions{Exaggeration: 1.5, Sky: true}
}
