package model

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateLngLat(t *testing.T) {
	tests := []struct {
		name     string
		lng, lat float64
		wantErr  bool
	}{
		{"paris", 2.35, 48.85, false},
		{"corners", -180, -90, false},
		{"other corners", 180, 90, false},
		{"lng too small", -180.0001, 0, true},
		{"lng too large", 181, 0, true},
		{"lat too large", 0, 90.5, true},
		{"nan", math.NaN(), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLngLat(tt.lng, tt.lat)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMapBounds_ArrayRoundTrip(t *testing.T) {
	b, err := BoundsFromArray([]float64{-5, 41, 9.6, 51.1})
	require.NoError(t, err)
	assert.Equal(t, MapBounds{West: -5, South: 41, East: 9.6, North: 51.1}, b)
	assert.Equal(t, [4]float64{-5, 41, 9.6, 51.1}, b.ToArray())

	_, err = BoundsFromArray([]float64{1, 2, 3})
	assert.Error(t, err)
}

func TestMapBounds_Orb(t *testing.T) {
	b := MapBounds{West: -5, South: 41, East: 9.6, North: 51.1}
	ob := b.Bound()
	assert.True(t, ob.Contains(orb.Point{2.35, 48.85}))
	assert.Equal(t, b, BoundsFromOrb(ob))
}

func TestMapBounds_Validate(t *testing.T) {
	assert.NoError(t, MapBounds{West: 170, South: -10, East: -170, North: 10}.Validate())
	assert.Error(t, MapBounds{West: 0, South: 10, East: 1, North: -10}.Validate())
	assert.Error(t, MapBounds{West: 0, South: 0, East: 200, North: 1}.Validate())
}

func TestMeasureDistance(t *testing.T) {
	paris := [2]float64{2.3522, 48.8566}
	london := [2]float64{-0.1276, 51.5072}

	assert.InDelta(t, 343.5, MeasureDistance([][2]float64{paris, london}), 2)
	assert.Zero(t, MeasureDistance([][2]float64{paris}))
	assert.Zero(t, MeasureDistance(nil))

	there := MeasureDistance([][2]float64{paris, london})
	andBack := MeasureDistance([][2]float64{paris, london, paris})
	assert.InDelta(t, 2*there, andBack, 1e-9)
}

func TestMeasureArea(t *testing.T) {
	square := [][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	area, err := MeasureArea(square)
	require.NoError(t, err)
	assert.InDelta(t, 12364, area, 150)

	closed := append(append([][2]float64{}, square...), square[0])
	areaClosed, err := MeasureArea(closed)
	require.NoError(t, err)
	assert.InDelta(t, area, areaClosed, 1e-6)

	_, err = MeasureArea(square[:2])
	assert.Error(t, err)
}
