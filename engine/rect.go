package engine

import "math"

// Point is a position in document space, y increasing downward.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle in document space with X1 < X2 and
// Y1 < Y2 under normal layout.
type Rect struct {
	X1, Y1, X2, Y2 float64
}

// Width returns X2 - X1.
func (r Rect) Width() float64 { return r.X2 - r.X1 }

// Height returns Y2 - Y1.
func (r Rect) Height() float64 { return r.Y2 - r.Y1 }

// TopLeft returns the rectangle's top-left corner.
func (r Rect) TopLeft() Point { return Point{X: r.X1, Y: r.Y1} }

// Contains returns true if the point lies within the rectangle.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X1 && p.X <= r.X2 && p.Y >= r.Y1 && p.Y <= r.Y2
}

// Intersects returns true if the two rectangles overlap.
func (r Rect) Intersects(o Rect) bool {
	return r.X1 < o.X2 && o.X1 < r.X2 && r.Y1 < o.Y2 && o.Y1 < r.Y2
}

// Near returns true if every corresponding coordinate of the two rectangles
// differs by at most tol.
func (r Rect) Near(o Rect, tol float64) bool {
	return math.Abs(r.X1-o.X1) <= tol &&
		math.Abs(r.Y1-o.Y1) <= tol &&
		math.Abs(r.X2-o.X2) <= tol &&
		math.Abs(r.Y2-o.Y2) <= tol
}
