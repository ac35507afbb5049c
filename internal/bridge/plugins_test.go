package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-mapbridge/internal/errutil"
	"github.com/joeblew999/plat-mapbridge/internal/model"
)

func TestLoadPlugin_Singleflight(t *testing.T) {
	ctx := context.Background()
	b, lib := newTestBridge(t)
	release := lib.Block("loadPlugin")

	const callers = 10
	var wg sync.WaitGroup
	ids := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = b.LoadPlugin(ctx, "m1", model.DefaultDrawOptions())
		}(i)
	}
	require.Eventually(t, func() bool { return lib.Count("loadPlugin") == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	release()
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "draw", ids[i])
	}
	assert.Equal(t, 1, lib.Count("loadPlugin:draw"))
	assert.Equal(t, 1, lib.Count("addPlugin:draw"))
	assert.Equal(t, []string{"draw"}, b.Registry().List("m1", KindPlugin))
}

func TestLoadPlugin_Idempotent(t *testing.T) {
	ctx := context.Background()
	b, lib := newTestBridge(t)

	for i := 0; i < 3; i++ {
		id, err := b.LoadPlugin(ctx, "m1", model.DefaultGeocoderOptions())
		require.NoError(t, err)
		assert.Equal(t, "geocoder", id)
	}
	assert.Equal(t, 1, lib.Count("addPlugin:geocoder"))
}

func TestLoadPlugin_ModuleSharedAcrossMaps(t *testing.T) {
	ctx := context.Background()
	b, lib := newTestBridge(t)
	require.NoError(t, b.Initialize(ctx, model.MapOptions{Container: "m2"}))

	_, err := b.LoadPlugin(ctx, "m1", model.DefaultDirectionsOptions())
	require.NoError(t, err)
	_, err = b.LoadPlugin(ctx, "m2", model.DefaultDirectionsOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, lib.Count("loadPlugin:directions"))
	assert.Equal(t, 2, lib.Count("addPlugin:directions"))
}

func TestLoadPlugin_FailureIsShared(t *testing.T) {
	ctx := context.Background()
	b, lib := newTestBridge(t)
	release := lib.Block("loadPlugin")
	lib.Fail("loadPlugin", errors.New("cdn unreachable"))

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = b.LoadPlugin(ctx, "m1", model.DefaultDrawOptions())
		}(i)
	}
	require.Eventually(t, func() bool { return lib.Count("loadPlugin") == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	release()
	wg.Wait()

	for _, err := range errs {
		errutil.AssertErrorCode(t, err, CodeUpstreamFailure)
	}
	assert.Zero(t, lib.Count("addPlugin"))
	assert.False(t, b.Registry().Has("m1", KindPlugin, "draw"))
}

func TestLoadPlugin_ReinitializedMapDoesNotJoinOldLoad(t *testing.T) {
	ctx := context.Background()
	b, lib := newTestBridge(t)
	release := lib.Block("loadPlugin")
	defer release()

	oldErr := make(chan error, 1)
	go func() {
		_, err := b.LoadPlugin(ctx, "m1", model.DefaultDrawOptions())
		oldErr <- err
	}()
	require.Eventually(t, func() bool { return lib.Count("loadPlugin") == 1 }, time.Second, time.Millisecond)

	require.NoError(t, b.Destroy(ctx, "m1"))
	require.NoError(t, b.Initialize(ctx, model.MapOptions{Container: "m1"}))

	type result struct {
		id  string
		err error
	}
	fresh := make(chan result, 1)
	go func() {
		id, err := b.LoadPlugin(ctx, "m1", model.DefaultDrawOptions())
		fresh <- result{id, err}
	}()
	time.Sleep(10 * time.Millisecond)
	release()

	errutil.AssertErrorCode(t, <-oldErr, CodeNotFound)
	res := <-fresh
	require.NoError(t, res.err)
	assert.Equal(t, "draw", res.id)
	assert.True(t, b.Registry().Has("m1", KindPlugin, "draw"))
	assert.Equal(t, 1, lib.Count("addPlugin:draw"))
}

func TestLoadPlugin_FailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	b, lib := newTestBridge(t)
	lib.Fail("loadPlugin:draw", errors.New("cdn unreachable"))

	_, err := b.LoadPlugin(ctx, "m1", model.DefaultDrawOptions())
	errutil.AssertErrorCode(t, err, CodeUpstreamFailure)

	lib.Fail("loadPlugin:draw", nil)
	id, err := b.LoadPlugin(ctx, "m1", model.DefaultDrawOptions())
	require.NoError(t, err)
	assert.Equal(t, "draw", id)
	assert.Equal(t, 2, lib.Count("loadPlugin:draw"))
}

func TestLoadPlugin_CallerCancellationDoesNotCancelLoad(t *testing.T) {
	b, lib := newTestBridge(t)
	release := lib.Block("loadPlugin")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := b.LoadPlugin(ctx, "m1", model.DefaultDrawOptions())
		done <- err
	}()
	require.Eventually(t, func() bool { return lib.Count("loadPlugin") == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	release()
	require.Eventually(t, func() bool { return b.Registry().Has("m1", KindPlugin, "draw") }, time.Second, time.Millisecond)
	assert.Equal(t, 1, lib.Count("loadPlugin"))
}

func TestLoadPlugin_Validation(t *testing.T) {
	ctx := context.Background()
	b, lib := newTestBridge(t)

	tests := []struct {
		name string
		opts model.PluginOptions
	}{
		{"nil options", nil},
		{"bad draw mode", model.DrawOptions{DefaultMode: "draw_circle"}},
		{"geocoder limit", model.GeocoderOptions{Limit: 50}},
		{"geocoder proximity", model.GeocoderOptions{Limit: 5, Proximity: []float64{1}}},
		{"directions unit", model.DirectionsOptions{Unit: "furlongs"}},
		{"compare without target", model.CompareOptions{}},
		{"compare with itself", model.DefaultCompareOptions("m1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.LoadPlugin(ctx, "m1", tt.opts)
			errutil.AssertErrorCode(t, err, CodeValidationFailed)
		})
	}
	assert.Zero(t, lib.Count("loadPlugin"))
}

func TestLoadPlugin_Compare(t *testing.T) {
	ctx := context.Background()
	b, lib := newTestBridge(t)

	_, err := b.LoadPlugin(ctx, "m1", model.DefaultCompareOptions("m2"))
	errutil.AssertErrorCode(t, err, CodeNotFound)

	require.NoError(t, b.Initialize(ctx, model.MapOptions{Container: "m2"}))
	id, err := b.LoadPlugin(ctx, "m1", model.DefaultCompareOptions("m2"))
	require.NoError(t, err)
	assert.Equal(t, "compare", id)
	assert.Equal(t, 1, lib.Count("addPlugin:compare"))
}

func TestPluginCommands_JoinInFlightLoad(t *testing.T) {
	ctx := context.Background()
	b, lib := newTestBridge(t)
	release := lib.Block("loadPlugin")

	loadDone := make(chan error, 1)
	go func() {
		_, err := b.LoadPlugin(ctx, "m1", model.DefaultDrawOptions())
		loadDone <- err
	}()
	require.Eventually(t, func() bool { return lib.Count("loadPlugin") == 1 }, time.Second, time.Millisecond)

	cmdDone := make(chan error, 1)
	go func() { cmdDone <- b.SetDrawMode(ctx, "m1", "draw_polygon") }()

	select {
	case err := <-cmdDone:
		t.Fatalf("draw command finished before the plugin loaded: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	release()
	require.NoError(t, <-loadDone)
	require.NoError(t, <-cmdDone)
	assert.Equal(t, 1, lib.Count("draw.changeMode"))
	assert.Equal(t, 1, lib.Count("loadPlugin"))
}

func TestPluginCommands_NotLoaded(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBridge(t)

	_, err := b.DrawnFeatures(ctx, "m1")
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(b.SetGeocoderInput(ctx, "m1", "Paris")))
	assert.True(t, IsNotFound(b.ClearDirectionsRoute(ctx, "m1")))
}

func TestPluginCommands_Draw(t *testing.T) {
	ctx := context.Background()
	b, lib := newTestBridge(t)
	_, err := b.LoadPlugin(ctx, "m1", model.DefaultDrawOptions())
	require.NoError(t, err)

	fc, err := b.DrawnFeatures(ctx, "m1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(fc))

	drawn := json.RawMessage(`{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}}]}`)
	lib.Map("m1").Plugin(model.PluginDraw).SetResult("getAll", drawn)
	fc, err = b.DrawnFeatures(ctx, "m1")
	require.NoError(t, err)
	assert.JSONEq(t, string(drawn), string(fc))

	require.NoError(t, b.ClearDrawnFeatures(ctx, "m1"))
	assert.Equal(t, 1, lib.Count("draw.deleteAll"))

	errutil.AssertErrorCode(t, b.SetDrawMode(ctx, "m1", "draw_circle"), CodeValidationFailed)
}

func TestPluginCommands_DirectionsAndGeocoder(t *testing.T) {
	ctx := context.Background()
	b, lib := newTestBridge(t)
	_, err := b.LoadPlugin(ctx, "m1", model.DefaultDirectionsOptions())
	require.NoError(t, err)
	_, err = b.LoadPlugin(ctx, "m1", model.DefaultGeocoderOptions())
	require.NoError(t, err)

	origin := model.LngLat{Lng: 2.35, Lat: 48.85}
	dest := model.LngLat{Lng: 4.83, Lat: 45.76}
	require.NoError(t, b.SetDirectionsRoute(ctx, "m1", origin, dest, []model.LngLat{{Lng: 3, Lat: 47}}))
	require.NoError(t, b.ClearDirectionsRoute(ctx, "m1"))
	errutil.AssertErrorCode(t, b.SetDirectionsRoute(ctx, "m1", origin, model.LngLat{Lat: 100}, nil), CodeValidationFailed)

	require.NoError(t, b.SetGeocoderInput(ctx, "m1", "Lyon"))
	require.NoError(t, b.ClearGeocoderInput(ctx, "m1"))
	errutil.AssertErrorCode(t, b.SetGeocoderInput(ctx, "m1", ""), CodeValidationFailed)

	assert.Equal(t, 1, lib.Count("directions.setRoute"))
	assert.Equal(t, 1, lib.Count("directions.removeRoutes"))
	assert.Equal(t, 1, lib.Count("geocoder.query"))
	assert.Equal(t, 1, lib.Count("geocoder.clear"))

	kinds, err := b.Plugins(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []model.PluginKind{model.PluginDirections, model.PluginGeocoder}, kinds)
}

func TestUnloadPlugin(t *testing.T) {
	ctx := context.Background()
	b, lib := newTestBridge(t)
	_, err := b.LoadPlugin(ctx, "m1", model.DefaultDrawOptions())
	require.NoError(t, err)

	require.NoError(t, b.UnloadPlugin(ctx, "m1", model.PluginDraw))
	assert.False(t, b.Registry().Has("m1", KindPlugin, "draw"))
	assert.Equal(t, 1, lib.Count("plugin.remove:draw"))

	_, err = b.LoadPlugin(ctx, "m1", model.DefaultDrawOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, lib.Count("loadPlugin:draw"))
	assert.Equal(t, 2, lib.Count("addPlugin:draw"))
}
