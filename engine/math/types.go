package math

// Rect is an integer pixel rectangle with exclusive x1/y1.
type Rect struct {
	X0, Y0, X1, Y1 int
}

func (r Rect) W() int { return r.X1 - r.X0 }
func (r Rect) H() int { return r.Y1 - r.Y0 }

// RectF is a float rectangle, used for texture coordinate regions.
type RectF struct {
	X0, Y0, X1, Y1 float32
}

// SemanticEq fuzzily compares two float rects.
func (r RectF) SemanticEq(o RectF) bool {
	const eps = 1e-6
	return Abs(r.X0-o.X0) < eps && Abs(r.X1-o.X1) < eps &&
		Abs(r.Y0-o.Y0) < eps && Abs(r.Y1-o.Y1) < eps
}

// Transform is a 2D affine transform with the translation part kept
// separate. Row-major:
//
//	| M[0][0] M[0][1] |
//	| M[1][0] M[1][1] |
type Transform struct {
	M [2][2]float32
	T [2]float32
}

// IdentityTransform returns the identity transform.
func IdentityTransform() Transform {
	return Transform{
		M: [2][2]float32{{1.0, 0.0}, {0.0, 1.0}},
	}
}

// OrthoTransform sets up an orthographic projection mapping the given
// coordinate ranges to clip space.
func OrthoTransform(x0, x1, y0, y1 float32) Transform {
	return Transform{
		M: [2][2]float32{
			{2.0 / (x1 - x0), 0.0},
			{0.0, 2.0 / (y1 - y0)},
		},
		T: [2]float32{
			-(x1 + x0) / (x1 - x0),
			-(y1 + y0) / (y1 - y0),
		},
	}
}

// Vec applies the transform to a point.
func (t Transform) Vec(x, y float32) (float32, float32) {
	return x*t.M[0][0] + y*t.M[0][1] + t.T[0],
		x*t.M[1][0] + y*t.M[1][1] + t.T[1]
}

// Rect applies the transform to all corners of a float rect.
func (t Transform) Rect(r RectF) RectF {
	x0, y0 := t.Vec(r.X0, r.Y0)
	x1, y1 := t.Vec(r.X1, r.Y1)
	return RectF{X0: x0, Y0: y0, X1: x1, Y1: y1}
}

// Mul composes two transforms; the receiver is applied after x.
func (t Transform) Mul(x Transform) Transform {
	var out Transform
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			out.M[i][j] = t.M[i][0]*x.M[0][j] + t.M[i][1]*x.M[1][j]
		}
		out.T[i] = t.M[i][0]*x.T[0] + t.M[i][1]*x.T[1] + t.T[i]
	}
	return out
}
