package geometry

import "math"

// cross returns the z component of (a-o) × (b-o).
func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// OnSegment reports whether p lies within tol of the segment a-b.
func OnSegment(p, a, b Point, tol float64) bool {
	_, d := NearestOnSegment(p, a, b)
	return d <= tol
}

// NearestOnSegment returns the point on segment a-b closest to p and its
// distance. A zero-length segment behaves as the single point a.
func NearestOnSegment(p, a, b Point) (Point, float64) {
	ab := b.Sub(a)
	lenSq := ab.X*ab.X + ab.Y*ab.Y
	if lenSq < Epsilon {
		return a, p.Distance(a)
	}
	t := ((p.X-a.X)*ab.X + (p.Y-a.Y)*ab.Y) / lenSq
	t = math.Max(0, math.Min(1, t))
	q := a.Add(ab.Scale(t))
	return q, p.Distance(q)
}

// PointInPolygon tests whether p is inside the polygon using ray casting.
// Points on an edge or vertex count as inside. Fewer than 3 vertices never
// contain anything.
func PointInPolygon(p Point, polygon []Point) bool {
	n := len(polygon)
	if n < 3 {
		return false
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := polygon[i], polygon[j]

		if OnSegment(p, pj, pi, Epsilon) {
			return true
		}

		// Half-open rule on Y avoids double counting shared vertices.
		if (pi.Y > p.Y) != (pj.Y > p.Y) {
			x := (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y) + pi.X
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// SegmentsIntersect reports whether segments a1-a2 and b1-b2 share a point,
// including touching endpoints and collinear overlap.
func SegmentsIntersect(a1, a2, b1, b2 Point) bool {
	d1 := cross(b1, b2, a1)
	d2 := cross(b1, b2, a2)
	d3 := cross(a1, a2, b1)
	d4 := cross(a1, a2, b2)

	if ((d1 > Epsilon && d2 < -Epsilon) || (d1 < -Epsilon && d2 > Epsilon)) &&
		((d3 > Epsilon && d4 < -Epsilon) || (d3 < -Epsilon && d4 > Epsilon)) {
		return true
	}

	switch {
	case math.Abs(d1) <= Epsilon && OnSegment(a1, b1, b2, Epsilon):
		return true
	case math.Abs(d2) <= Epsilon && OnSegment(a2, b1, b2, Epsilon):
		return true
	case math.Abs(d3) <= Epsilon && OnSegment(b1, a1, a2, Epsilon):
		return true
	case math.Abs(d4) <= Epsilon && OnSegment(b2, a1, a2, Epsilon):
		return true
	}
	return false
}

// SegmentIntersection returns the intersection point of two segments. ok is
// false when they do not intersect or are parallel.
func SegmentIntersection(a1, a2, b1, b2 Point) (Point, bool) {
	r := a2.Sub(a1)
	s := b2.Sub(b1)
	denom := r.X*s.Y - r.Y*s.X
	if math.Abs(denom) < Epsilon {
		return Point{}, false
	}
	qp := b1.Sub(a1)
	t := (qp.X*s.Y - qp.Y*s.X) / denom
	u := (qp.X*r.Y - qp.Y*r.X) / denom
	if t < -Epsilon || t > 1+Epsilon || u < -Epsilon || u > 1+Epsilon {
		return Point{}, false
	}
	return a1.Add(r.Scale(t)), true
}

// NearestVertex returns the index of the vertex closest to p when it lies
// within tol. Ties go to the earliest vertex.
func NearestVertex(p Point, points []Point, tol float64) (int, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, v := range points {
		if d := p.Distance(v); d <= tol && d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, best >= 0
}

// NearestEdge finds the edge of a polyline closest to p within tol. When
// closed is true the edge from the last vertex back to the first is included.
// The returned index i identifies the edge from points[i] to points[i+1].
func NearestEdge(p Point, points []Point, closed bool, tol float64) (int, Point, bool) {
	n := len(points)
	if n == 0 {
		return -1, Point{}, false
	}
	if n == 1 {
		if p.Distance(points[0]) <= tol {
			return 0, points[0], true
		}
		return -1, Point{}, false
	}

	edges := n - 1
	if closed && n > 2 {
		edges = n
	}

	best := -1
	bestDist := math.Inf(1)
	var bestPt Point
	for i := 0; i < edges; i++ {
		q, d := NearestOnSegment(p, points[i], points[(i+1)%n])
		if d <= tol && d < bestDist {
			best, bestDist, bestPt = i, d, q
		}
	}
	return best, bestPt, best >= 0
}

// Area returns the absolute polygon area using the shoelace formula.
func Area(polygon []Point) float64 {
	n := len(polygon)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += polygon[i].X*polygon[j].Y - polygon[j].X*polygon[i].Y
	}
	return math.Abs(sum) / 2
}

// Perimeter returns the total edge length. When closed is true the closing
// edge is counted.
func Perimeter(points []Point, closed bool) float64 {
	n := len(points)
	if n < 2 {
		return 0
	}
	var total float64
	for i := 0; i < n-1; i++ {
		total += points[i].Distance(points[i+1])
	}
	if closed && n > 2 {
		total += points[n-1].Distance(points[0])
	}
	return total
}

// PolylineIntersectsRect reports whether any part of the polyline lies inside
// or crosses r.
func PolylineIntersectsRect(points []Point, closed bool, r Rect) bool {
	for _, p := range points {
		if r.Contains(p) {
			return true
		}
	}
	corners := r.Corners()
	n := len(points)
	edges := n - 1
	if closed && n > 2 {
		edges = n
	}
	for i := 0; i < edges; i++ {
		a, b := points[i], points[(i+1)%n]
		for k := 0; k < 4; k++ {
			if SegmentsIntersect(a, b, corners[k], corners[(k+1)%4]) {
				return true
			}
		}
	}
	return false
}
