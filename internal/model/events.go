package model

import (
	"encoding/json"
	"time"
)

// EventKind names a native map event forwarded to the host.
type EventKind string

const (
	EventClick           EventKind = "click"
	EventDoubleClick     EventKind = "dblclick"
	EventMove            EventKind = "move"
	EventZoom            EventKind = "zoom"
	EventLoad            EventKind = "load"
	EventStyleLoad       EventKind = "style.load"
	EventError           EventKind = "error"
	EventMouseEnter      EventKind = "mouseenter"
	EventMouseLeave      EventKind = "mouseleave"
	EventMouseMove       EventKind = "mousemove"
	EventTouchStart      EventKind = "touchstart"
	EventTouchEnd        EventKind = "touchend"
	EventRotate          EventKind = "rotate"
	EventPitch           EventKind = "pitch"
	EventDrawCreate      EventKind = "draw.create"
	EventDrawUpdate      EventKind = "draw.update"
	EventDrawDelete      EventKind = "draw.delete"
	EventGeolocate       EventKind = "geolocate"
	EventMarkerDragEnd   EventKind = "marker.dragend"
	EventGeocoderResult  EventKind = "geocoder.result"
	EventDirectionsRoute EventKind = "directions.route"
	EventPopupClose      EventKind = "popup.close"
)

// MapEventKinds are the kinds the relay subscribes to on the map itself.
// Draw, geolocate, geocoder and directions kinds come from plugins and controls.
func MapEventKinds() []EventKind {
	return []EventKind{
		EventClick, EventDoubleClick, EventMove, EventZoom, EventLoad, EventStyleLoad,
		EventError, EventMouseEnter, EventMouseLeave, EventMouseMove, EventTouchStart,
		EventTouchEnd, EventRotate, EventPitch, EventMarkerDragEnd,
	}
}

// DrawAction is the action part of a draw event.
type DrawAction string

const (
	DrawCreate DrawAction = "create"
	DrawUpdate DrawAction = "update"
	DrawDelete DrawAction = "delete"
)

// Kind returns the event kind for a draw action.
func (a DrawAction) Kind() EventKind {
	return EventKind("draw." + string(a))
}

// Event is the envelope delivered to the host sink. Seq increases by one per
// (map, kind) in the order the native library raised the events.
type Event struct {
	MapID string    `json:"mapId"`
	Kind  EventKind `json:"kind"`
	Seq   uint64    `json:"seq"`
	Time  time.Time `json:"time"`
	Data  any       `json:"data,omitempty"`
}

type MapClickEvent struct {
	Longitude float64         `json:"longitude"`
	Latitude  float64         `json:"latitude"`
	Features  json.RawMessage `json:"features,omitempty"`
}

type MapMoveEvent struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Zoom      float64 `json:"zoom"`
	Bearing   float64 `json:"bearing"`
	Pitch     float64 `json:"pitch"`
}

type MapZoomEvent struct {
	Zoom         float64 `json:"zoom"`
	PreviousZoom float64 `json:"previousZoom"`
}

type MapErrorEvent struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type MouseMoveEvent struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

type RotateEvent struct {
	Bearing float64 `json:"bearing"`
}

type PitchEvent struct {
	Pitch float64 `json:"pitch"`
}

type GeolocationEvent struct {
	Longitude        float64  `json:"longitude"`
	Latitude         float64  `json:"latitude"`
	Accuracy         float64  `json:"accuracy"`
	Altitude         *float64 `json:"altitude,omitempty"`
	AltitudeAccuracy *float64 `json:"altitudeAccuracy,omitempty"`
	Heading          *float64 `json:"heading,omitempty"`
	Speed            *float64 `json:"speed,omitempty"`
}

// DrawEvent carries the drawn features as a GeoJSON string.
type DrawEvent struct {
	Action  DrawAction `json:"action"`
	GeoJSON string     `json:"geojson"`
}

type MarkerDragEvent struct {
	MarkerID  string  `json:"markerId"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

type GeocoderEvent struct {
	PlaceName string          `json:"placeName"`
	Longitude float64         `json:"longitude"`
	Latitude  float64         `json:"latitude"`
	Result    json.RawMessage `json:"result,omitempty"`
}

type DirectionsEvent struct {
	Route    json.RawMessage `json:"route,omitempty"`
	Distance float64         `json:"distance"`
	Duration float64         `json:"duration"`
}
