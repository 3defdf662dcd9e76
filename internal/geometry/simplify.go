package geometry

// Simplify reduces a closed polygon with the Douglas-Peucker algorithm.
// Vertices closer than epsilon to the simplified outline are dropped. The
// result never has fewer than 3 vertices when the input had at least 3; inputs
// with fewer vertices, or a non-positive epsilon, are returned as a copy.
func Simplify(polygon []Point, epsilon float64) []Point {
	n := len(polygon)
	out := make([]Point, n)
	copy(out, polygon)
	if n <= 3 || epsilon <= 0 {
		return out
	}

	// Split the ring at the vertex farthest from the first one so both halves
	// are open polylines with distinct endpoints.
	far := 0
	farDist := 0.0
	for i := 1; i < n; i++ {
		if d := polygon[0].DistanceSq(polygon[i]); d > farDist {
			far, farDist = i, d
		}
	}
	if far == 0 {
		return out
	}

	first := douglasPeucker(polygon[:far+1], epsilon)
	second := make([]Point, 0, n-far+1)
	second = append(second, polygon[far:]...)
	second = append(second, polygon[0])
	second = douglasPeucker(second, epsilon)

	result := make([]Point, 0, len(first)+len(second))
	result = append(result, first...)
	// Drop the shared endpoints: polygon[far] and polygon[0].
	result = append(result, second[1:len(second)-1]...)

	if len(result) < 3 {
		return out
	}
	return result
}

// SimplifyPolyline applies Douglas-Peucker to an open polyline, keeping both
// endpoints.
func SimplifyPolyline(points []Point, epsilon float64) []Point {
	if len(points) <= 2 || epsilon <= 0 {
		out := make([]Point, len(points))
		copy(out, points)
		return out
	}
	return douglasPeucker(points, epsilon)
}

func douglasPeucker(points []Point, epsilon float64) []Point {
	n := len(points)
	if n <= 2 {
		out := make([]Point, n)
		copy(out, points)
		return out
	}

	idx := 0
	maxDist := 0.0
	for i := 1; i < n-1; i++ {
		if _, d := NearestOnSegment(points[i], points[0], points[n-1]); d > maxDist {
			idx, maxDist = i, d
		}
	}

	if maxDist <= epsilon {
		return []Point{points[0], points[n-1]}
	}

	left := douglasPeucker(points[:idx+1], epsilon)
	right := douglasPeucker(points[idx:], epsilon)
	return append(left[:len(left)-1], right...)
}

// RemoveCollinear drops vertices lying within epsilon of the segment joining
// their neighbours. Closed rings never shrink below 3 vertices and open
// polylines never below 2. Consecutive duplicate vertices are removed as well.
func RemoveCollinear(points []Point, epsilon float64, closed bool) []Point {
	minLen := 2
	if closed {
		minLen = 3
	}

	out := make([]Point, 0, len(points))
	for i, p := range points {
		if i > 0 && p.DistanceSq(out[len(out)-1]) < Epsilon {
			continue
		}
		out = append(out, p)
	}
	if closed && len(out) > 1 && out[0].DistanceSq(out[len(out)-1]) < Epsilon {
		out = out[:len(out)-1]
	}

	for changed := true; changed && len(out) > minLen; {
		changed = false
		for i := 0; i < len(out) && len(out) > minLen; i++ {
			if !closed && (i == 0 || i == len(out)-1) {
				continue
			}
			prev := out[(i-1+len(out))%len(out)]
			next := out[(i+1)%len(out)]
			if _, d := NearestOnSegment(out[i], prev, next); d <= epsilon {
				out = append(out[:i], out[i+1:]...)
				changed = true
				i--
			}
		}
	}
	return out
}
