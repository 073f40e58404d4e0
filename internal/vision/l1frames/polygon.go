package l1frames

// Polygon is a closed polygon in frame coordinates. The closing edge from
// the last vertex back to the first is implicit.
type Polygon []Point

// Contains reports whether p lies inside the polygon, using the even-odd
// ray-casting rule. Points exactly on an edge may land on either side;
// the ROI quadrilateral is large enough that this never matters in practice.
func (poly Polygon) Contains(p Point) bool {
	n := len(poly)
	if n < 3 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		pi, pj := poly[i], poly[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) {
			xCross := (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y) + pi.X
			if p.X < xCross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}
