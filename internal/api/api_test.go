package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-mapbridge/internal/bridge"
	"github.com/joeblew999/plat-mapbridge/internal/humastar"
	"github.com/joeblew999/plat-mapbridge/internal/model"
	"github.com/joeblew999/plat-mapbridge/internal/native/nativetest"
	"github.com/joeblew999/plat-mapbridge/internal/stream"
)

// newTestAPI serves the handlers over a fake library with map "m1"
// initialized.
func newTestAPI(t *testing.T) (humatest.TestAPI, *bridge.Bridge, *nativetest.Library) {
	t.Helper()
	cfg := huma.DefaultConfig("test", "1.0.0")
	cfg.Transformers = append(cfg.Transformers, humastar.LinkTransformer(Links))
	_, api := humatest.New(t, cfg)

	lib := nativetest.New()
	bus := stream.NewBus()
	b := bridge.New(lib, bridge.WithSink(bus))
	NewHandler(b, bus, nil).Register(api)

	resp := api.Post("/api/v1/maps", map[string]any{"container": "m1"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	t.Cleanup(func() {
		for _, id := range b.Maps() {
			_ = b.Destroy(context.Background(), id)
		}
	})
	return api, b, lib
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v))
	return v
}

func TestHealth(t *testing.T) {
	api, _, _ := newTestAPI(t)

	resp := api.Get("/health")
	assert.Equal(t, http.StatusOK, resp.Code)
	body := decode[HealthBody](t, resp.Body.Bytes())
	assert.Equal(t, "ok", body.Status)
	assert.Contains(t, resp.Header().Values("Link"), `</api/v1/maps>; rel="maps"`)
}

func TestInfo(t *testing.T) {
	api, _, _ := newTestAPI(t)

	resp := api.Get("/api/v1/info")
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode[InfoBody](t, resp.Body.Bytes())
	assert.Equal(t, 1, body.Maps)
	assert.ElementsMatch(t, model.PluginKinds(), body.Plugins)
	assert.Contains(t, body.Controls, bridge.ControlNavigation)
}

func TestMaps_Lifecycle(t *testing.T) {
	api, _, lib := newTestAPI(t)

	resp := api.Get("/api/v1/maps")
	assert.Equal(t, []string{"m1"}, decode[[]string](t, resp.Body.Bytes()))

	resp = api.Get("/api/v1/maps/m1")
	require.Equal(t, http.StatusOK, resp.Code)
	info := decode[bridge.MapInfo](t, resp.Body.Bytes())
	assert.Equal(t, "m1", info.ID)
	assert.Equal(t, model.StyleStreets, info.Style)
	assert.Equal(t, "uninitialized", info.Relay)

	m := lib.Map("m1")
	resp = api.Delete("/api/v1/maps/m1")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, m.Removed())

	assert.Equal(t, http.StatusNotFound, api.Get("/api/v1/maps/m1").Code)
	assert.Equal(t, http.StatusNotFound, api.Delete("/api/v1/maps/m1").Code)
}

func TestMaps_InitializeValidation(t *testing.T) {
	api, _, _ := newTestAPI(t)

	resp := api.Post("/api/v1/maps", map[string]any{"container": "m2", "pitch": 90})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = api.Post("/api/v1/maps", map[string]any{"zoom": 3})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestMaps_UpstreamFailure(t *testing.T) {
	api, _, lib := newTestAPI(t)
	lib.Fail("newMap:m2", errors.New("webgl unavailable"))

	resp := api.Post("/api/v1/maps", map[string]any{"container": "m2"})
	assert.Equal(t, http.StatusBadGateway, resp.Code)
}

func TestMaps_RelaySetupOnce(t *testing.T) {
	api, _, _ := newTestAPI(t)

	assert.Equal(t, http.StatusOK, api.Post("/api/v1/maps/m1/relay").Code)
	assert.Equal(t, http.StatusConflict, api.Post("/api/v1/maps/m1/relay").Code)

	info := decode[bridge.MapInfo](t, api.Get("/api/v1/maps/m1").Body.Bytes())
	assert.Equal(t, "subscribed", info.Relay)
}

func TestMaps_Links(t *testing.T) {
	api, _, _ := newTestAPI(t)

	links := api.Get("/api/v1/maps/m1").Header().Values("Link")
	assert.Contains(t, links, `</api/v1/maps>; rel="collection"`)
	assert.Contains(t, links, `</api/v1/maps/m1>; rel="self"`)
	assert.Contains(t, links, `</api/v1/maps/m1>; rel="destroy"; method="DELETE"`)
	assert.Contains(t, links, `</api/v1/maps/m1/relay>; rel="setup"; method="POST"`)
	assert.Contains(t, links, `</api/v1/maps/m1/terrain>; rel="enable-terrain"; method="POST"`)

	require.Equal(t, http.StatusOK, api.Post("/api/v1/maps/m1/relay").Code)
	require.Equal(t, http.StatusOK, api.Post("/api/v1/maps/m1/terrain").Code)

	links = api.Get("/api/v1/maps/m1").Header().Values("Link")
	assert.NotContains(t, links, `</api/v1/maps/m1/relay>; rel="setup"; method="POST"`)
	assert.Contains(t, links, `</api/v1/maps/m1/terrain>; rel="disable-terrain"; method="DELETE"`)
}

func TestMaps_ResizeAndViewport(t *testing.T) {
	api, _, lib := newTestAPI(t)
	lib.Map("m1").SetViewport(model.Viewport{Camera: model.Camera{Zoom: 9}, Moving: true})

	assert.Equal(t, http.StatusOK, api.Post("/api/v1/maps/m1/resize").Code)
	assert.Equal(t, 1, lib.Count("resize"))

	resp := api.Get("/api/v1/maps/m1/viewport")
	require.Equal(t, http.StatusOK, resp.Code)
	vp := decode[model.Viewport](t, resp.Body.Bytes())
	assert.InDelta(t, 9, vp.Zoom, 1e-9)
	assert.True(t, vp.Moving)
}

func TestEvents_UnknownMap(t *testing.T) {
	api, _, _ := newTestAPI(t)
	assert.Equal(t, http.StatusNotFound, api.Get("/api/v1/maps/nope/events").Code)
}

func TestMarkers(t *testing.T) {
	api, _, lib := newTestAPI(t)

	resp := api.Post("/api/v1/maps/m1/markers", map[string]any{"id": "a", "longitude": 2.35, "latitude": 48.85, "popupText": "Paris"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, "a", decode[CreatedBody](t, resp.Body.Bytes()).ID)

	resp = api.Get("/api/v1/maps/m1/markers/a")
	require.Equal(t, http.StatusOK, resp.Code)
	m := decode[model.MarkerOptions](t, resp.Body.Bytes())
	assert.Equal(t, model.DefaultMarkerColor, m.Color)

	resp = api.Patch("/api/v1/maps/m1/markers/a", map[string]any{"longitude": 4.83, "latitude": 45.76})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	m = decode[model.MarkerOptions](t, resp.Body.Bytes())
	assert.InDelta(t, 4.83, m.Longitude, 1e-9)

	resp = api.Post("/api/v1/maps/m1/markers/a/animate", map[string]any{
		"path":     []map[string]float64{{"lng": 2.35, "lat": 48.85}, {"lng": 4.83, "lat": 45.76}},
		"duration": 500,
	})
	assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	assert.Len(t, decode[[]model.MarkerOptions](t, api.Get("/api/v1/maps/m1/markers").Body.Bytes()), 1)

	require.Equal(t, http.StatusOK, api.Delete("/api/v1/maps/m1/markers/a").Code)
	assert.Equal(t, 1, lib.Count("marker.remove:a"))
	assert.Equal(t, http.StatusNotFound, api.Get("/api/v1/maps/m1/markers/a").Code)
	assert.Equal(t, http.StatusNotFound, api.Delete("/api/v1/maps/m1/markers/a").Code)
}

func TestMarkers_Validation(t *testing.T) {
	api, _, _ := newTestAPI(t)

	resp := api.Post("/api/v1/maps/m1/markers", map[string]any{"longitude": 200, "latitude": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = api.Patch("/api/v1/maps/m1/markers/missing", map[string]any{"rotation": 10})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestPopups(t *testing.T) {
	api, _, _ := newTestAPI(t)

	resp := api.Post("/api/v1/maps/m1/popups", map[string]any{"at": map[string]float64{"lng": 2, "lat": 48}, "html": "<b>hi</b>"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	id := decode[CreatedBody](t, resp.Body.Bytes()).ID
	require.NotEmpty(t, id)

	assert.Equal(t, http.StatusOK, api.Delete("/api/v1/maps/m1/popups/"+id).Code)
	assert.Equal(t, http.StatusNotFound, api.Delete("/api/v1/maps/m1/popups/"+id).Code)
}

func sourceBody(t *testing.T) map[string]any {
	t.Helper()
	fc := model.FeatureCollection(model.PointFeature(2.35, 48.85, nil))
	data, err := json.Marshal(fc)
	require.NoError(t, err)
	return map[string]any{"id": "parks", "definition": model.NewGeoJSONSource(data)}
}

func TestSourcesAndLayers(t *testing.T) {
	api, _, lib := newTestAPI(t)

	resp := api.Post("/api/v1/maps/m1/sources", sourceBody(t))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	resp = api.Post("/api/v1/maps/m1/sources", sourceBody(t))
	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, 1, lib.Count("addSource:parks"))

	resp = api.Post("/api/v1/maps/m1/layers", map[string]any{"layer": model.NewFillLayer("parks-fill", "parks")})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, "parks-fill", decode[CreatedBody](t, resp.Body.Bytes()).ID)

	layers := decode[[]model.LayerDefinition](t, api.Get("/api/v1/maps/m1/layers").Body.Bytes())
	require.Len(t, layers, 1)
	assert.Equal(t, "parks", layers[0].Source)

	assert.Equal(t, http.StatusOK, api.Put("/api/v1/maps/m1/layers/parks-fill/visibility", map[string]any{"visible": false}).Code)
	assert.Equal(t, http.StatusOK, api.Put("/api/v1/maps/m1/layers/parks-fill/paint/fill-color", map[string]any{"value": "#ff0000"}).Code)
	assert.Equal(t, http.StatusOK, api.Put("/api/v1/maps/m1/layers/parks-fill/layout/visibility", map[string]any{"value": "visible"}).Code)
	assert.Equal(t, http.StatusOK, api.Put("/api/v1/maps/m1/layers/parks-fill/filter", map[string]any{"filter": []any{"==", "name", "Paris"}}).Code)
	assert.Equal(t, 1, lib.Count("setPaintProperty:parks-fill.fill-color"))

	resp = api.Put("/api/v1/maps/m1/sources/parks/data", map[string]any{"data": map[string]any{"type": "FeatureCollection", "features": []any{}}})
	assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	sources := decode[[]bridge.SourceInfo](t, api.Get("/api/v1/maps/m1/sources").Body.Bytes())
	require.Len(t, sources, 1)
	assert.Equal(t, "geojson", sources[0].Type)

	require.Equal(t, http.StatusOK, api.Delete("/api/v1/maps/m1/sources/parks").Code)
	assert.Empty(t, lib.Map("m1").Layers())
	assert.Equal(t, http.StatusNotFound, api.Delete("/api/v1/maps/m1/layers/parks-fill").Code)
}

func TestSources_Errors(t *testing.T) {
	api, _, lib := newTestAPI(t)

	resp := api.Post("/api/v1/maps/m1/sources", map[string]any{"id": "bad", "definition": map[string]any{"type": "geojson"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	lib.Fail("addSource", errors.New("style not loaded"))
	resp = api.Post("/api/v1/maps/m1/sources", sourceBody(t))
	assert.Equal(t, http.StatusBadGateway, resp.Code)

	resp = api.Post("/api/v1/maps/nope/sources", sourceBody(t))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestStyleAndOverlays(t *testing.T) {
	api, _, lib := newTestAPI(t)

	assert.Equal(t, http.StatusOK, api.Put("/api/v1/maps/m1/style", map[string]any{"style": model.StyleDark}).Code)
	assert.Equal(t, model.StyleDark, lib.Map("m1").Style())
	assert.Equal(t, http.StatusUnprocessableEntity, api.Put("/api/v1/maps/m1/style", map[string]any{"style": "dark"}).Code)

	assert.Equal(t, http.StatusOK, api.Put("/api/v1/maps/m1/light", map[string]any{"anchor": "map", "color": "white"}).Code)
	assert.Equal(t, http.StatusOK, api.Put("/api/v1/maps/m1/fog", model.SkyFog()).Code)
	assert.Equal(t, http.StatusOK, api.Put("/api/v1/maps/m1/fog").Code)
	assert.Equal(t, 2, lib.Count("setFog"))

	assert.Equal(t, http.StatusOK, api.Post("/api/v1/maps/m1/terrain").Code)
	assert.Equal(t, http.StatusOK, api.Delete("/api/v1/maps/m1/terrain").Code)
	assert.Equal(t, http.StatusOK, api.Post("/api/v1/maps/m1/buildings").Code)
	assert.Equal(t, http.StatusOK, api.Post("/api/v1/maps/m1/traffic").Code)
	assert.Equal(t, http.StatusOK, api.Delete("/api/v1/maps/m1/traffic").Code)
}

func TestCamera(t *testing.T) {
	api, _, lib := newTestAPI(t)
	camera := map[string]any{"center": map[string]float64{"lng": 2.35, "lat": 48.85}, "zoom": 12, "bearing": 0, "pitch": 45}

	assert.Equal(t, http.StatusOK, api.Post("/api/v1/maps/m1/camera/jump", camera).Code)
	assert.Equal(t, http.StatusOK, api.Post("/api/v1/maps/m1/camera/ease", camera).Code)
	assert.Equal(t, http.StatusOK, api.Post("/api/v1/maps/m1/camera/fly", camera).Code)
	assert.Equal(t, 1, lib.Count("flyTo"))

	resp := api.Post("/api/v1/maps/m1/camera/ease", map[string]any{"zoom": 5})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	v := decode[model.Viewport](t, api.Get("/api/v1/maps/m1/viewport").Body.Bytes())
	assert.Equal(t, model.LngLat{Lng: 2.35, Lat: 48.85}, v.Center)
	assert.Equal(t, 5.0, v.Zoom)

	bounds := map[string]float64{"west": 2.2, "south": 48.8, "east": 2.5, "north": 48.9}
	assert.Equal(t, http.StatusOK, api.Post("/api/v1/maps/m1/camera/fit", map[string]any{"bounds": bounds}).Code)
	assert.Equal(t, http.StatusOK, api.Put("/api/v1/maps/m1/max-bounds", map[string]any{"bounds": bounds}).Code)
	assert.Equal(t, http.StatusOK, api.Put("/api/v1/maps/m1/max-bounds", map[string]any{}).Code)

	assert.Equal(t, http.StatusOK, api.Put("/api/v1/maps/m1/camera/zoom", map[string]any{"value": 10}).Code)
	assert.Equal(t, http.StatusOK, api.Put("/api/v1/maps/m1/camera/bearing", map[string]any{"value": -90}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, api.Put("/api/v1/maps/m1/camera/pitch", map[string]any{"value": 90}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, api.Put("/api/v1/maps/m1/camera/zoom", map[string]any{"value": 30}).Code)
}

func TestControls(t *testing.T) {
	api, _, _ := newTestAPI(t)

	resp := api.Post("/api/v1/maps/m1/controls", map[string]any{"type": "navigation", "position": "top-left"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	id := decode[CreatedBody](t, resp.Body.Bytes()).ID

	resp = api.Post("/api/v1/maps/m1/controls", map[string]any{"type": "custom"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = api.Post("/api/v1/maps/m1/geolocate")
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	controls := decode[[]bridge.ControlInfo](t, api.Get("/api/v1/maps/m1/controls").Body.Bytes())
	require.Len(t, controls, 2)

	assert.Equal(t, http.StatusOK, api.Delete("/api/v1/maps/m1/controls/"+id).Code)
	assert.Equal(t, http.StatusNotFound, api.Delete("/api/v1/maps/m1/controls/"+id).Code)
}

func TestPlugins(t *testing.T) {
	api, _, lib := newTestAPI(t)

	resp := api.Post("/api/v1/maps/m1/plugins/draw")
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, 1, lib.Count("loadPlugin:draw"))

	resp = api.Get("/api/v1/maps/m1/draw/features")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, resp.Body.String())

	assert.Equal(t, http.StatusOK, api.Put("/api/v1/maps/m1/draw/mode", map[string]any{"mode": "draw_polygon"}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, api.Put("/api/v1/maps/m1/draw/mode", map[string]any{"mode": "scribble"}).Code)
	assert.Equal(t, http.StatusOK, api.Delete("/api/v1/maps/m1/draw/features").Code)

	assert.Equal(t, []model.PluginKind{model.PluginDraw}, decode[[]model.PluginKind](t, api.Get("/api/v1/maps/m1/plugins").Body.Bytes()))

	// Commands for plugins that are not loaded are NotFound.
	assert.Equal(t, http.StatusNotFound, api.Put("/api/v1/maps/m1/geocoder/input", map[string]any{"query": "Paris"}).Code)

	require.Equal(t, http.StatusCreated, api.Post("/api/v1/maps/m1/plugins/directions").Code)
	route := map[string]any{
		"origin":      map[string]float64{"lng": 2.35, "lat": 48.85},
		"destination": map[string]float64{"lng": 4.83, "lat": 45.76},
	}
	assert.Equal(t, http.StatusOK, api.Put("/api/v1/maps/m1/directions/route", route).Code)
	assert.Equal(t, http.StatusOK, api.Delete("/api/v1/maps/m1/directions/route").Code)

	assert.Equal(t, http.StatusOK, api.Delete("/api/v1/maps/m1/plugins/draw").Code)
	assert.Equal(t, http.StatusNotFound, api.Get("/api/v1/maps/m1/draw/features").Code)
}

func TestQueries(t *testing.T) {
	api, _, _ := newTestAPI(t)
	require.Equal(t, http.StatusCreated, api.Post("/api/v1/maps/m1/sources", sourceBody(t)).Code)

	resp := api.Post("/api/v1/maps/m1/features/rendered", map[string]any{"point": map[string]float64{"x": 10, "y": 20}})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.JSONEq(t, `[]`, resp.Body.String())

	resp = api.Post("/api/v1/maps/m1/sources/parks/features", map[string]any{})
	assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, http.StatusNotFound, api.Post("/api/v1/maps/m1/sources/nope/features", map[string]any{}).Code)

	resp = api.Get("/api/v1/maps/m1/image")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, decode[map[string]string](t, resp.Body.Bytes())["dataUrl"], "data:image/png;base64,")
}
