package bridge

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-mapbridge/internal/errutil"
	"github.com/joeblew999/plat-mapbridge/internal/model"
	"github.com/joeblew999/plat-mapbridge/internal/native"
)

func TestSetStyle_ClearsSourcesAndLayers(t *testing.T) {
	ctx := context.Background()
	b, lib := newTestBridge(t)
	_, err := b.AddSource(ctx, "m1", "parks", geojsonSource(t))
	require.NoError(t, err)
	_, err = b.AddLayer(ctx, "m1", layerDoc(t, model.NewFillLayer("fill", "parks")), "")
	require.NoError(t, err)
	_, err = b.AddMarker(ctx, "m1", model.MarkerOptions{ID: "a", Longitude: 1, Latitude: 1})
	require.NoError(t, err)

	require.NoError(t, b.SetStyle(ctx, "m1", model.StyleSatellite))

	assert.Equal(t, model.StyleSatellite, lib.Map("m1").Style())
	assert.Empty(t, b.Registry().List("m1", KindSource))
	assert.Empty(t, b.Registry().List("m1", KindLayer))
	assert.Equal(t, []string{"a"}, b.Registry().List("m1", KindMarker))

	id, err := b.AddSource(ctx, "m1", "parks", geojsonSource(t))
	require.NoError(t, err)
	assert.Equal(t, "parks", id)
	assert.Equal(t, 2, lib.Count("addSource:parks"))
}

func TestSetStyle_Validation(t *testing.T) {
	ctx := context.Background()
	b, lib := newTestBridge(t)

	for _, style := range []string{"", "streets", "mapbox://", "ftp://x"} {
		errutil.AssertErrorCode(t, b.SetStyle(ctx, "m1", style), CodeValidationFailed)
	}
	require.NoError(t, b.SetStyle(ctx, "m1", "https://tiles.example.com/style.json"))
	assert.Equal(t, 1, lib.Count("setStyle"))
}

func TestSetLightAndFog(t *testing.T) {
	ctx := context.Background()
	b, lib := newTestBridge(t)

	require.NoError(t, b.SetLight(ctx, "m1", model.LightOptions{Anchor: "map", Intensity: ptr(0.4)}))
	errutil.AssertErrorCode(t, b.SetLight(ctx, "m1", model.LightOptions{Anchor: "sun"}), CodeValidationFailed)
	errutil.AssertErrorCode(t, b.SetLight(ctx, "m1", model.LightOptions{Intensity: ptr(2.0)}), CodeValidationFailed)
	errutil.AssertErrorCode(t, b.SetLight(ctx, "m1", model.LightOptions{Position: []float64{1}}), CodeValidationFailed)

	fog := model.SkyFog()
	require.NoError(t, b.SetFog(ctx, "m1", &fog))
	require.NoError(t, b.SetFog(ctx, "m1", nil))
	errutil.AssertErrorCode(t, b.SetFog(ctx, "m1", &model.FogOptions{Range: []float64{1}}), CodeValidationFailed)

	assert.Equal(t, 1, lib.Count("setLight"))
	assert.Equal(t, 1, lib.Count("setFog:none"))
}

func TestTerrain(t *testing.T) {
	ctx := context.Background()
	b, lib := newTestBridge(t)

	require.NoError(t, b.EnableTerrain(ctx, "m1", model.TerrainOptions{Sky: true}))
	require.NoError(t, b.EnableTerrain(ctx, "m1", model.DefaultTerrainOptions()))

	assert.Equal(t, 1, lib.Count("addSource:"+TerrainSourceID))
	assert.Equal(t, 2, lib.Count("setTerrain:"+TerrainSourceID))
	assert.Equal(t, 2, lib.Count("setFog"))
	info, err := b.Info(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, info.Terrain)

	require.NoError(t, b.DisableTerrain(ctx, "m1"))
	assert.Equal(t, 1, lib.Count("setTerrain:none"))
	assert.Equal(t, 1, lib.Count("removeSource:"+TerrainSourceID))
	assert.False(t, b.Registry().Has("m1", KindSource, TerrainSourceID))

	errutil.AssertErrorCode(t, b.EnableTerrain(ctx, "m1", model.TerrainOptions{Exaggeration: -1}), CodeValidationFailed)
}

func TestAdd3DBuildings(t *testing.T) {
	ctx := context.Background()
	b, lib := newTestBridge(t)
	fake := lib.Map("m1")
	fake.SetStyleLayers([]native.StyleLayer{
		{ID: "land", Type: "background"},
		{ID: "road-shield", Type: "symbol"},
		{ID: "road-label", Type: "symbol", TextField: true},
		{ID: "poi-label", Type: "symbol", TextField: true},
	})

	require.NoError(t, b.Add3DBuildings(ctx, "m1"))
	require.NoError(t, b.Add3DBuildings(ctx, "m1"))

	assert.Equal(t, 1, lib.Count("addLayer:"+BuildingsLayerID))
	assert.Equal(t, []string{BuildingsLayerID}, fake.Layers())

	rec, err := resolveAs[*layerRecord](b.Registry(), "m1", KindLayer, BuildingsLayerID)
	require.NoError(t, err)
	assert.Equal(t, "road-label", rec.Before)
	assert.Equal(t, BuildingsSourceID, rec.Def.Source)
	assert.Equal(t, model.LayerFillExtrusion, rec.Def.Type)
}

func TestTraffic(t *testing.T) {
	ctx := context.Background()
	b, lib := newTestBridge(t)

	require.NoError(t, b.EnableTraffic(ctx, "m1"))
	require.NoError(t, b.EnableTraffic(ctx, "m1"))
	assert.Equal(t, 1, lib.Count("addSource:"+TrafficSourceID))
	assert.Equal(t, 1, lib.Count("addLayer:"+TrafficLayerID))

	require.NoError(t, b.DisableTraffic(ctx, "m1"))
	require.NoError(t, b.DisableTraffic(ctx, "m1"))
	assert.Equal(t, 1, lib.Count("removeLayer:"+TrafficLayerID))
	assert.True(t, b.Registry().Has("m1", KindSource, TrafficSourceID))

	require.NoError(t, b.EnableTraffic(ctx, "m1"))
	assert.Equal(t, 1, lib.Count("addSource:"+TrafficSourceID))
	assert.Equal(t, 2, lib.Count("addLayer:"+TrafficLayerID))
}

func TestCamera(t *testing.T) {
	ctx := context.Background()
	b, lib := newTestBridge(t)
	paris := model.LngLat{Lng: 2.35, Lat: 48.85}

	require.NoError(t, b.FlyTo(ctx, "m1", model.CameraOptions{Center: &paris, Zoom: ptr(12.0), Essential: true}))
	require.NoError(t, b.EaseTo(ctx, "m1", model.CameraOptions{Center: &paris, Pitch: ptr(45.0)}))
	require.NoError(t, b.JumpTo(ctx, "m1", model.CameraOptions{Center: &paris, Bearing: ptr(90.0)}))

	assert.Equal(t, 1, lib.Count("flyTo:essential"))
	assert.Equal(t, 1, lib.Count("easeTo"))
	assert.Equal(t, 1, lib.Count("jumpTo"))

	v, err := b.Viewport(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, paris, v.Center)
	assert.Equal(t, 12.0, v.Zoom)
	assert.Equal(t, 90.0, v.Bearing)
	assert.Equal(t, 45.0, v.Pitch)

	t.Run("zoom only keeps center", func(t *testing.T) {
		require.NoError(t, b.EaseTo(ctx, "m1", model.CameraOptions{Zoom: ptr(8.0)}))
		v, err := b.Viewport(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, paris, v.Center)
		assert.Equal(t, 8.0, v.Zoom)
		assert.Equal(t, 90.0, v.Bearing)
	})

	tests := []struct {
		name string
		opts model.CameraOptions
	}{
		{"center out of range", model.CameraOptions{Center: &model.LngLat{Lng: 181}}},
		{"zoom out of range", model.CameraOptions{Zoom: ptr(25.0)}},
		{"pitch out of range", model.CameraOptions{Pitch: ptr(90.0)}},
		{"negative duration", model.CameraOptions{Duration: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errutil.AssertErrorCode(t, b.FlyTo(ctx, "m1", tt.opts), CodeValidationFailed)
		})
	}
}

func TestCameraSetters(t *testing.T) {
	ctx := context.Background()
	b, lib := newTestBridge(t)

	require.NoError(t, b.SetZoom(ctx, "m1", 10))
	require.NoError(t, b.SetBearing(ctx, "m1", -45))
	require.NoError(t, b.SetPitch(ctx, "m1", 60))

	v, err := b.Viewport(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, v.Zoom)
	assert.Equal(t, -45.0, v.Bearing)
	assert.Equal(t, 60.0, v.Pitch)

	errutil.AssertErrorCode(t, b.SetZoom(ctx, "m1", 30), CodeValidationFailed)
	errutil.AssertErrorCode(t, b.SetPitch(ctx, "m1", -1), CodeValidationFailed)
	errutil.AssertErrorCode(t, b.SetBearing(ctx, "m1", 400), CodeValidationFailed)
	assert.Equal(t, 1, lib.Count("setZoom"))
}

func TestFitAndMaxBounds(t *testing.T) {
	ctx := context.Background()
	b, lib := newTestBridge(t)
	france := model.MapBounds{North: 51.1, South: 41.3, East: 9.6, West: -5.1}

	require.NoError(t, b.FitBounds(ctx, "m1", france, model.FitBoundsOptions{}))
	errutil.AssertErrorCode(t, b.FitBounds(ctx, "m1", model.MapBounds{North: 1, South: 2}, model.FitBoundsOptions{}), CodeValidationFailed)
	errutil.AssertErrorCode(t, b.FitBounds(ctx, "m1", france, model.FitBoundsOptions{Padding: -1}), CodeValidationFailed)

	require.NoError(t, b.SetMaxBounds(ctx, "m1", &france))
	require.NoError(t, b.SetMaxBounds(ctx, "m1", nil))
	errutil.AssertErrorCode(t, b.SetMaxBounds(ctx, "m1", &model.MapBounds{North: 95}), CodeValidationFailed)

	assert.Equal(t, 1, lib.Count("fitBounds"))
	assert.Equal(t, 1, lib.Count("setMaxBounds:none"))
	v, err := b.Viewport(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, france, v.Bounds)
}

func TestControls(t *testing.T) {
	ctx := context.Background()
	b, lib := newTestBridge(t)

	nav, err := NewControl(ControlNavigation, json.RawMessage(`{"visualizePitch":true}`))
	require.NoError(t, err)
	navID, err := b.AddControl(ctx, "m1", nav, model.TopLeft)
	require.NoError(t, err)
	scaleID, err := b.AddControl(ctx, "m1", ScaleControl{ScaleOptions: model.ScaleOptions{MaxWidth: 80, Unit: "imperial"}}, "")
	require.NoError(t, err)
	_, err = b.AddControl(ctx, "m1", CustomControl{HTML: "<button>Reset</button>"}, model.BottomLeft)
	require.NoError(t, err)

	controls, err := b.Controls(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, controls, 3)
	assert.Equal(t, ControlInfo{ID: navID, Type: ControlNavigation, Position: model.TopLeft}, controls[0])
	assert.Equal(t, ControlInfo{ID: scaleID, Type: ControlScale, Position: model.TopRight}, controls[1])

	mounted := lib.Map("m1").Controls()
	require.Len(t, mounted, 3)
	assert.Equal(t, NavigationControl{ShowCompass: true, ShowZoom: true, VisualizePitch: true}, mounted[0].Spec.Options)
	assert.Equal(t, "<button>Reset</button>", mounted[2].Spec.HTML)

	require.NoError(t, b.RemoveControl(ctx, "m1", navID))
	assert.Equal(t, 1, lib.Count("control.remove:navigation"))

	_, err = b.AddControl(ctx, "m1", FullscreenControl{}, "middle")
	errutil.AssertErrorCode(t, err, CodeValidationFailed)
	_, err = b.AddControl(ctx, "m1", nil, "")
	errutil.AssertErrorCode(t, err, CodeValidationFailed)
}

func TestNewControl(t *testing.T) {
	for _, kind := range []string{ControlNavigation, ControlGeolocate, ControlFullscreen, ControlScale, ControlAttribution} {
		c, err := NewControl(kind, nil)
		require.NoError(t, err, kind)
		assert.Equal(t, kind, c.controlType())
	}

	_, err := NewControl(ControlCustom, nil)
	assert.Error(t, err)
	_, err = NewControl("minimap", nil)
	assert.Error(t, err)
	_, err = NewControl(ControlScale, json.RawMessage(`{"maxWidth":"wide"}`))
	assert.Error(t, err)
}

func TestTrackUserLocation(t *testing.T) {
	ctx := context.Background()
	b, lib := newTestBridge(t)
	sink := &recordingSink{}
	require.NoError(t, b.Setup(ctx, "m1", sink))

	id, err := b.TrackUserLocation(ctx, "m1")
	require.NoError(t, err)
	again, err := b.TrackUserLocation(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, 1, lib.Count("addControl:geolocate"))
	assert.Equal(t, 2, lib.Count("control.trigger:geolocate"))

	lib.Map("m1").Controls()[0].Emit(native.Event{
		Type:   model.EventGeolocate,
		Coords: &native.Coords{Longitude: 2.35, Latitude: 48.85, Accuracy: 12},
	})
	sink.waitFor(t, 1)
	assert.Equal(t, model.GeolocationEvent{Longitude: 2.35, Latitude: 48.85, Accuracy: 12}, sink.Events()[0].Data)

	require.NoError(t, b.Destroy(ctx, "m1"))
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	b, lib := newTestBridge(t)
	_, err := b.AddSource(ctx, "m1", "parks", geojsonSource(t))
	require.NoError(t, err)
	_, err = b.AddLayer(ctx, "m1", layerDoc(t, model.NewFillLayer("fill", "parks")), "")
	require.NoError(t, err)

	features, err := b.QueryRenderedFeatures(ctx, "m1", &model.ScreenPoint{X: 10, Y: 20}, model.QueryOptions{Layers: []string{"fill"}})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(features))
	_, err = b.QueryRenderedFeatures(ctx, "m1", nil, model.QueryOptions{Layers: []string{"nope"}})
	assert.True(t, IsNotFound(err))
	_, err = b.QueryRenderedFeatures(ctx, "m1", nil, model.QueryOptions{Filter: json.RawMessage(`"x"`)})
	errutil.AssertErrorCode(t, err, CodeValidationFailed)

	_, err = b.QuerySourceFeatures(ctx, "m1", "parks", model.SourceQueryOptions{})
	require.NoError(t, err)
	_, err = b.QuerySourceFeatures(ctx, "m1", "nope", model.SourceQueryOptions{})
	assert.True(t, IsNotFound(err))
	_, err = b.QuerySourceFeatures(ctx, "m1", "", model.SourceQueryOptions{})
	errutil.AssertErrorCode(t, err, CodeValidationFailed)

	img, err := b.MapImage(ctx, "m1")
	require.NoError(t, err)
	assert.Contains(t, img, "data:image/png;base64,")

	assert.Equal(t, 1, lib.Count("queryRenderedFeatures:fill"))
	assert.Equal(t, 1, lib.Count("querySourceFeatures:parks"))
}
