package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 集合点：UTown
var utown = Point{Latitude: 1.2966, Longitude: 103.7764}

// northOf 返回正北方向 meters 米处的坐标（纯纬度位移，半正矢结果精确等于弧长）
func northOf(p Point, meters float64) Point {
	return Point{
		Latitude:  p.Latitude + meters/EarthRadiusMeters*180/math.Pi,
		Longitude: p.Longitude,
	}
}

func TestDistanceMeters_SamePointIsZero(t *testing.T) {
	points := []Point{
		utown,
		{Latitude: 0, Longitude: 0},
		{Latitude: -33.8688, Longitude: 151.2093},
		{Latitude: 89.9999, Longitude: -179.9999},
	}
	for _, p := range points {
		assert.Equal(t, 0.0, DistanceMeters(p, p), "point %+v", p)
	}
}

func TestDistanceMeters_Symmetric(t *testing.T) {
	pairs := [][2]Point{
		{utown, {Latitude: 1.3048, Longitude: 103.7735}},
		{{Latitude: 51.5074, Longitude: -0.1278}, {Latitude: 40.7128, Longitude: -74.0060}},
		{{Latitude: -1, Longitude: 179.5}, {Latitude: 1, Longitude: -179.5}},
	}
	for _, pair := range pairs {
		assert.InDelta(t, DistanceMeters(pair[0], pair[1]), DistanceMeters(pair[1], pair[0]), 1e-6)
	}
}

func TestDistanceMeters_KnownValues(t *testing.T) {
	// 纬度差 1 度 ≈ 111.195 km
	d := DistanceMeters(Point{Latitude: 0, Longitude: 0}, Point{Latitude: 1, Longitude: 0})
	assert.InDelta(t, 111194.93, d, 0.5)

	// 伦敦 → 巴黎约 343.5 km
	london := Point{Latitude: 51.5074, Longitude: -0.1278}
	paris := Point{Latitude: 48.8566, Longitude: 2.3522}
	assert.InDelta(t, 343_556, DistanceMeters(london, paris), 500)

	assert.InDelta(t, 150, DistanceMeters(utown, northOf(utown, 150)), 1e-6)
}

func TestWithinRadius(t *testing.T) {
	fence := Fence{Center: utown, RadiusMeters: 100}

	assert.True(t, WithinRadius(utown, fence))
	assert.True(t, WithinRadius(northOf(utown, 99.9), fence))
	assert.False(t, WithinRadius(northOf(utown, 100.1), fence))
	assert.False(t, WithinRadius(northOf(utown, 150), fence))
}

func TestConfidenceOf_Boundaries(t *testing.T) {
	cases := []struct {
		accuracy float64
		want     Confidence
	}{
		{0, ConfidenceHigh},
		{10, ConfidenceHigh},
		{25, ConfidenceHigh},
		{25.0001, ConfidenceMedium},
		{50, ConfidenceMedium},
		{50.0001, ConfidenceLow},
		{500, ConfidenceLow},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ConfidenceOf(tc.accuracy), "accuracy=%v", tc.accuracy)
	}
}

func TestPointValidate(t *testing.T) {
	require.NoError(t, utown.Validate())
	require.NoError(t, Point{Latitude: -90, Longitude: 180}.Validate())

	for _, p := range []Point{
		{Latitude: 90.0001, Longitude: 0},
		{Latitude: 0, Longitude: -180.5},
		{Latitude: math.NaN(), Longitude: 0},
		{Latitude: 0, Longitude: math.Inf(1)},
	} {
		assert.ErrorIs(t, p.Validate(), ErrInvalidCoordinate, "point %+v", p)
	}
}

func TestFenceValidate(t *testing.T) {
	assert.NoError(t, Fence{Center: utown, RadiusMeters: 100}.Validate())
	assert.ErrorIs(t, Fence{Center: utown, RadiusMeters: 0}.Validate(), ErrInvalidRadius)
	assert.ErrorIs(t, Fence{Center: utown, RadiusMeters: -5}.Validate(), ErrInvalidRadius)
	assert.ErrorIs(t, Fence{Center: Point{Latitude: 91}, RadiusMeters: 5}.Validate(), ErrInvalidCoordinate)
}

func TestValidateAccuracy(t *testing.T) {
	assert.NoError(t, ValidateAccuracy(0))
	assert.NoError(t, ValidateAccuracy(12.5))
	assert.ErrorIs(t, ValidateAccuracy(-1), ErrInvalidAccuracy)
	assert.ErrorIs(t, ValidateAccuracy(math.NaN()), ErrInvalidAccuracy)
}

func TestFormatDistance(t *testing.T) {
	assert.Equal(t, "0m", FormatDistance(0))
	assert.Equal(t, "150m", FormatDistance(150.4))
	assert.Equal(t, "999m", FormatDistance(999.4))
	assert.Equal(t, "1.0km", FormatDistance(1000))
	assert.Equal(t, "1.2km", FormatDistance(1234))
}
