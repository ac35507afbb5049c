package model

import "errors"

// DefaultMarkerColor is the color the map library uses for unstyled markers.
const DefaultMarkerColor = "#3887be"

// MarkerOptions describes a marker. ID may be empty; the bridge generates one.
type MarkerOptions struct {
	ID                string         `json:"id,omitempty" doc:"Marker id, unique within the map" example:"a"`
	Longitude         float64        `json:"longitude" minimum:"-180" maximum:"180" doc:"Longitude" example:"2.35"`
	Latitude          float64        `json:"latitude" minimum:"-90" maximum:"90" doc:"Latitude" example:"48.85"`
	PopupText         string         `json:"popupText,omitempty" doc:"HTML shown in the marker popup"`
	Color             string         `json:"color,omitempty" default:"#3887be" doc:"Marker color (CSS)"`
	Draggable         bool           `json:"draggable,omitempty"`
	Scale             float64        `json:"scale,omitempty" default:"1"`
	Rotation          float64        `json:"rotation,omitempty"`
	IconURL           string         `json:"iconUrl,omitempty" doc:"Image used instead of the default pin"`
	IconSize          []float64      `json:"iconSize,omitempty" minItems:"2" maxItems:"2"`
	IconAnchor        []float64      `json:"iconAnchor,omitempty"`
	Anchor            string         `json:"anchor,omitempty" default:"center" enum:"center,top,bottom,left,right,top-left,top-right,bottom-left,bottom-right"`
	ClassName         string         `json:"className,omitempty"`
	Offset            []float64      `json:"offset,omitempty"`
	PitchAlignment    string         `json:"pitchAlignment,omitempty" default:"auto" enum:"map,viewport,auto"`
	RotationAlignment string         `json:"rotationAlignment,omitempty" default:"auto" enum:"map,viewport,horizon,auto"`
	Properties        map[string]any `json:"properties,omitempty"`
	PopupOffset       []float64      `json:"popupOffset,omitempty"`
	PopupClassName    string         `json:"popupClassName,omitempty"`
}

// WithDefaults fills unset styling fields.
func (m MarkerOptions) WithDefaults() MarkerOptions {
	if m.Color == "" {
		m.Color = DefaultMarkerColor
	}
	if m.Scale == 0 {
		m.Scale = 1
	}
	if m.Anchor == "" {
		m.Anchor = "center"
	}
	if m.PitchAlignment == "" {
		m.PitchAlignment = "auto"
	}
	if m.RotationAlignment == "" {
		m.RotationAlignment = "auto"
	}
	if len(m.PopupOffset) == 0 {
		m.PopupOffset = []float64{0, -25}
	}
	return m
}

// Position returns the marker position.
func (m MarkerOptions) Position() LngLat {
	return LngLat{Lng: m.Longitude, Lat: m.Latitude}
}

// Validate checks the position and icon size.
func (m MarkerOptions) Validate() error {
	if err := ValidateLngLat(m.Longitude, m.Latitude); err != nil {
		return err
	}
	if len(m.IconSize) != 0 && len(m.IconSize) != 2 {
		return errors.New("iconSize must be [width, height]")
	}
	return nil
}

// MarkerUpdate changes a live marker in place. Nil fields are left untouched;
// longitude and latitude must be set together.
type MarkerUpdate struct {
	Longitude *float64 `json:"longitude,omitempty" minimum:"-180" maximum:"180"`
	Latitude  *float64 `json:"latitude,omitempty" minimum:"-90" maximum:"90"`
	Draggable *bool    `json:"draggable,omitempty"`
	Rotation  *float64 `json:"rotation,omitempty"`
	PopupText *string  `json:"popupText,omitempty"`
}

// Validate checks that a position update carries both coordinates in range.
func (u MarkerUpdate) Validate() error {
	if (u.Longitude == nil) != (u.Latitude == nil) {
		return errors.New("longitude and latitude must be updated together")
	}
	if u.Longitude != nil {
		return ValidateLngLat(*u.Longitude, *u.Latitude)
	}
	return nil
}

// PopupOptions configures a standalone popup.
type PopupOptions struct {
	CloseButton    bool      `json:"closeButton"`
	CloseOnClick   bool      `json:"closeOnClick"`
	CloseOnMove    bool      `json:"closeOnMove"`
	Anchor         string    `json:"anchor,omitempty"`
	Offset         []float64 `json:"offset,omitempty"`
	ClassName      string    `json:"className,omitempty"`
	MaxWidth       string    `json:"maxWidth,omitempty"`
	FocusAfterOpen bool      `json:"focusAfterOpen"`
}

// DefaultPopupOptions returns the map library's popup defaults.
func DefaultPopupOptions() PopupOptions {
	return PopupOptions{
		CloseButton:    true,
		CloseOnClick:   true,
		Anchor:         "bottom",
		MaxWidth:       "240px",
		FocusAfterOpen: true,
	}
}
