package model

// PluginKind identifies an optional map library plugin.
type PluginKind string

const (
	PluginDraw       PluginKind = "draw"
	PluginGeocoder   PluginKind = "geocoder"
	PluginDirections PluginKind = "directions"
	PluginCompare    PluginKind = "compare"
)

// PluginKinds lists every supported plugin kind.
func PluginKinds() []PluginKind {
	return []PluginKind{PluginDraw, PluginGeocoder, PluginDirections, PluginCompare}
}

// Valid reports whether k is a supported plugin kind.
func (k PluginKind) Valid() bool {
	for _, known := range PluginKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// PluginOptions is implemented by each plugin's construction options.
type PluginOptions interface {
	PluginKind() PluginKind
}

// DrawOptions enables drawing tools. Draw events are forwarded to the host
// through the relay.
type DrawOptions struct {
	Polygon     bool   `json:"polygon" default:"true"`
	Line        bool   `json:"line" default:"true"`
	Point       bool   `json:"point" default:"true"`
	Trash       bool   `json:"trash" default:"true"`
	Combine     bool   `json:"combine" default:"true"`
	Uncombine   bool   `json:"uncombine" default:"true"`
	DefaultMode string `json:"defaultMode" default:"simple_select"`
	Position    string `json:"position" default:"top-right"`
}

func (DrawOptions) PluginKind() PluginKind { return PluginDraw }

func DefaultDrawOptions() DrawOptions {
	return DrawOptions{
		Polygon: true, Line: true, Point: true, Trash: true, Combine: true, Uncombine: true,
		DefaultMode: "simple_select",
		Position:    "top-right",
	}
}

type GeocoderOptions struct {
	Marker            bool      `json:"marker" default:"true"`
	Placeholder       string    `json:"placeholder" default:"Rechercher..."`
	Proximity         []float64 `json:"proximity,omitempty"`
	TrackProximity    bool      `json:"trackProximity" default:"true"`
	Collapsed         bool      `json:"collapsed"`
	ClearAndBlurOnEsc bool      `json:"clearAndBlurOnEsc" default:"true"`
	ClearOnBlur       bool      `json:"clearOnBlur" default:"true"`
	Types             []string  `json:"types,omitempty"`
	Countries         []string  `json:"countries,omitempty"`
	Language          string    `json:"language" default:"fr"`
	Limit             int       `json:"limit" default:"5" minimum:"1" maximum:"10"`
	Position          string    `json:"position" default:"top-left"`
}

func (GeocoderOptions) PluginKind() PluginKind { return PluginGeocoder }

func DefaultGeocoderOptions() GeocoderOptions {
	return GeocoderOptions{
		Marker:            true,
		Placeholder:       "Rechercher...",
		TrackProximity:    true,
		ClearAndBlurOnEsc: true,
		ClearOnBlur:       true,
		Language:          "fr",
		Limit:             5,
		Position:          "top-left",
	}
}

type DirectionsOptions struct {
	Unit            string `json:"unit" default:"metric" enum:"metric,imperial"`
	Profile         string `json:"profile" default:"mapbox/driving"`
	Alternatives    bool   `json:"alternatives" default:"true"`
	Congestion      bool   `json:"congestion" default:"true"`
	Language        string `json:"language" default:"fr"`
	Steps           bool   `json:"steps" default:"true"`
	Inputs          bool   `json:"inputs" default:"true"`
	Instructions    bool   `json:"instructions" default:"true"`
	ProfileSwitcher bool   `json:"profileSwitcher" default:"true"`
	Position        string `json:"position" default:"top-left"`
}

func (DirectionsOptions) PluginKind() PluginKind { return PluginDirections }

func DefaultDirectionsOptions() DirectionsOptions {
	return DirectionsOptions{
		Unit: "metric", Profile: "mapbox/driving", Alternatives: true, Congestion: true,
		Language: "fr", Steps: true, Inputs: true, Instructions: true, ProfileSwitcher: true,
		Position: "top-left",
	}
}

// CompareOptions shows a swipe comparison between this map and OtherMap.
type CompareOptions struct {
	OtherMap    string `json:"otherMap" required:"true" doc:"Id of the map to compare against"`
	Container   string `json:"container" default:"#comparison-container"`
	Orientation string `json:"orientation" default:"vertical" enum:"vertical,horizontal"`
	Mousemove   bool   `json:"mousemove" default:"true"`
}

func (CompareOptions) PluginKind() PluginKind { return PluginCompare }

func DefaultCompareOptions(otherMap string) CompareOptions {
	return CompareOptions{
		OtherMap:    otherMap,
		Container:   "#comparison-container",
		Orientation: "vertical",
		Mousemove:   true,
	}
}

// Control positions.
const (
	TopLeft     = "top-left"
	TopRight    = "top-right"
	BottomLeft  = "bottom-left"
	BottomRight = "bottom-right"
)

// ValidPosition reports whether p is a control corner.
func ValidPosition(p string) bool {
	switch p {
	case TopLeft, TopRight, BottomLeft, BottomRight:
		return true
	}
	return false
}

type ScaleOptions struct {
	MaxWidth int    `json:"maxWidth" default:"100"`
	Unit     string `json:"unit" default:"metric" enum:"metric,imperial,nautical"`
}

type AttributionOptions struct {
	Compact           bool     `json:"compact"`
	CustomAttribution []string `json:"customAttribution,omitempty"`
}

type GeolocateOptions struct {
	EnableHighAccuracy bool `json:"enableHighAccuracy" default:"true"`
	TrackUserLocation  bool `json:"trackUserLocation" default:"true"`
	ShowUserHeading    bool `json:"showUserHeading" default:"true"`
}
