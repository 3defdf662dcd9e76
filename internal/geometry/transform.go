package geometry

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when a transform has no inverse.
var ErrSingular = errors.New("transform is not invertible")

// Transform is a 2D affine transform stored as a 3x3 homogeneous matrix:
//
//	[a b tx]
//	[c d ty]
//	[0 0 1 ]
//
// The zero value is the identity.
type Transform struct {
	m *mat.Dense
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{m: mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})}
}

// NewAffine builds a transform from its six coefficients.
func NewAffine(a, b, tx, c, d, ty float64) Transform {
	return Transform{m: mat.NewDense(3, 3, []float64{a, b, tx, c, d, ty, 0, 0, 1})}
}

// NewViewport returns the image-to-screen transform for a canvas showing the
// image at the given zoom, with the image origin drawn at pan.
func NewViewport(zoom float64, pan Point) Transform {
	return NewAffine(zoom, 0, pan.X, 0, zoom, pan.Y)
}

func (t Transform) matrix() *mat.Dense {
	if t.m == nil {
		return Identity().m
	}
	return t.m
}

// Apply maps p through the transform.
func (t Transform) Apply(p Point) Point {
	m := t.matrix()
	return Point{
		X: m.At(0, 0)*p.X + m.At(0, 1)*p.Y + m.At(0, 2),
		Y: m.At(1, 0)*p.X + m.At(1, 1)*p.Y + m.At(1, 2),
	}
}

// Then returns the transform that applies t first and o second.
func (t Transform) Then(o Transform) Transform {
	var out mat.Dense
	out.Mul(o.matrix(), t.matrix())
	return Transform{m: &out}
}

// Inverse returns the inverse transform.
func (t Transform) Inverse() (Transform, error) {
	m := t.matrix()
	if math.Abs(mat.Det(m)) < Epsilon {
		return Transform{}, ErrSingular
	}
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return Transform{}, ErrSingular
	}
	return Transform{m: &inv}, nil
}

// Scale returns the average linear scale factor of the transform. For a
// viewport this is the zoom.
func (t Transform) Scale() float64 {
	m := t.matrix()
	det := m.At(0, 0)*m.At(1, 1) - m.At(0, 1)*m.At(1, 0)
	return math.Sqrt(math.Abs(det))
}
