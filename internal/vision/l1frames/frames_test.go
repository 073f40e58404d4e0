package l1frames

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBBoxCenterAndArea(t *testing.T) {
	t.Parallel()

	b := BBox{X: 10, Y: 20, W: 40, H: 60}
	assert.Equal(t, Point{X: 30, Y: 50}, b.Center())
	assert.Equal(t, 2400.0, b.Area())
}

func TestValidateSegment(t *testing.T) {
	t.Parallel()

	t.Run("accepts finite segment", func(t *testing.T) {
		t.Parallel()
		s := LineSegment{P1: Point{0, 0}, P2: Point{100, 200}}
		assert.NoError(t, ValidateSegment(s))
	})

	t.Run("rejects NaN coordinate", func(t *testing.T) {
		t.Parallel()
		s := LineSegment{P1: Point{math.NaN(), 0}, P2: Point{100, 200}}
		err := ValidateSegment(s)
		assert.True(t, errors.Is(err, ErrInvalidInput))
	})

	t.Run("rejects infinite coordinate", func(t *testing.T) {
		t.Parallel()
		s := LineSegment{P1: Point{0, 0}, P2: Point{math.Inf(1), 200}}
		err := ValidateSegment(s)
		assert.True(t, errors.Is(err, ErrInvalidInput))
	})
}

func TestValidateDetection(t *testing.T) {
	t.Parallel()

	t.Run("accepts valid detection", func(t *testing.T) {
		t.Parallel()
		d := Detection{ClassID: ClassCar, Box: BBox{X: 1, Y: 2, W: 30, H: 40}}
		assert.NoError(t, ValidateDetection(d))
	})

	t.Run("rejects zero-width box", func(t *testing.T) {
		t.Parallel()
		d := Detection{ClassID: ClassCar, Box: BBox{X: 1, Y: 2, W: 0, H: 40}}
		err := ValidateDetection(d)
		assert.True(t, errors.Is(err, ErrInvalidInput))
	})

	t.Run("rejects NaN box", func(t *testing.T) {
		t.Parallel()
		d := Detection{ClassID: ClassCar, Box: BBox{X: math.NaN(), Y: 2, W: 10, H: 40}}
		err := ValidateDetection(d)
		assert.True(t, errors.Is(err, ErrInvalidInput))
	})
}

func TestPolygonContains(t *testing.T) {
	t.Parallel()

	// Road-surface style quadrilateral: narrow at the top, wide at the bottom.
	roi := Polygon{
		{X: 400, Y: 300},
		{X: 560, Y: 300},
		{X: 900, Y: 700},
		{X: 60, Y: 700},
	}

	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{"center of quad", Point{X: 480, Y: 500}, true},
		{"near bottom edge inside", Point{X: 480, Y: 690}, true},
		{"above the quad", Point{X: 480, Y: 100}, false},
		{"left of the quad", Point{X: 10, Y: 500}, false},
		{"right of the quad", Point{X: 950, Y: 500}, false},
		{"below the quad", Point{X: 480, Y: 720}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, roi.Contains(tt.p))
		})
	}
}

func TestPolygonDegenerate(t *testing.T) {
	t.Parallel()

	assert.False(t, Polygon{}.Contains(Point{X: 1, Y: 1}))
	assert.False(t, Polygon{{0, 0}, {10, 10}}.Contains(Point{X: 5, Y: 5}))
}
