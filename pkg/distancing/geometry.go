package distancing

import (
	"errors"
	"fmt"
	"math"
)

//ErrInvalidBox is returned for boxes with x1 > x2 or y1 > y2
var ErrInvalidBox = errors.New("invalid bounding box")

//Point is a reference point on a box together with that box's pixel height
type Point struct {
	X, Y, H float64
}

//Enrich derives centroid and real (pixel) coordinates for a detection, given display resolution
func Enrich(d Detection, width, height int) (EnrichedDetection, error) {
	x0, y0, x1, y1 := d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3]
	if x0 > x1 || y0 > y1 || anyNaN(d.BBox[:]...) {
		return EnrichedDetection{}, fmt.Errorf("Enrich: detection '%s' %v: %w", d.ID, d.BBox, ErrInvalidBox)
	}

	w, h := float64(width), float64(height)
	return EnrichedDetection{
		Detection:    d,
		Centroid:     [4]float64{(x0 + x1) / 2, (y0 + y1) / 2, x1 - x0, y1 - y0},
		CentroidReal: [4]float64{(x0 + x1) * w / 2, (y0 + y1) * h / 2, (x1 - x0) * w, (y1 - y0) * h},
		BBoxReal:     [4]float64{x0 * w, y0 * h, x1 * w, y1 * h},
	}, nil
}

//NormalizedArea returns w*h of the normalized box
func (e EnrichedDetection) NormalizedArea() float64 {
	return e.Centroid[2] * e.Centroid[3]
}

//Bottom returns the bottom edge (cy + h/2) in pixels
func (e EnrichedDetection) Bottom() float64 {
	return e.CentroidReal[1] + e.CentroidReal[3]/2
}

//Center returns the box center as a reference point
func (e EnrichedDetection) Center() Point {
	return Point{X: e.CentroidReal[0], Y: e.CentroidReal[1], H: e.CentroidReal[3]}
}

//Corners returns the four box corners, always in the same order: (x1,y1), (x2,y1), (x1,y2), (x2,y2)
func (e EnrichedDetection) Corners() [4]Point {
	b, h := e.BBoxReal, e.CentroidReal[3]
	return [4]Point{
		{X: b[0], Y: b[1], H: h},
		{X: b[2], Y: b[1], H: h},
		{X: b[0], Y: b[3], H: h},
		{X: b[2], Y: b[3], H: h},
	}
}

//pixelArea uses the inclusive convention: a box spanning x1..x2 covers x2-x1+1 pixels
func pixelArea(b [4]float64) float64 {
	return (b[2] - b[0] + 1) * (b[3] - b[1] + 1)
}

//overlapRatio returns intersection(a, b) / area(b), both boxes in pixels
func overlapRatio(a, b [4]float64) float64 {
	xx1 := math.Max(a[0], b[0])
	yy1 := math.Max(a[1], b[1])
	xx2 := math.Min(a[2], b[2])
	yy2 := math.Min(a[3], b[3])

	w := math.Max(0, xx2-xx1+1)
	h := math.Max(0, yy2-yy1+1)

	return (w * h) / pixelArea(b)
}

//ProjectedDistance estimates the physical distance (cm) between two corresponding points,
//scaling pixel displacement by assumedHeightCm over the mean of both box heights
func ProjectedDistance(p1, p2 Point, assumedHeightCm float64) float64 {
	if p1.H <= 0 || p2.H <= 0 {
		return math.Inf(1)
	}

	dx := p2.X - p1.X
	dy := p2.Y - p1.Y
	scale := assumedHeightCm * (1/p1.H + 1/p2.H) / 2

	return math.Hypot(dx*scale, dy*scale)
}

//centroidDistance is the euclidean distance between normalized centers
func centroidDistance(a, b EnrichedDetection) float64 {
	return math.Hypot(a.Centroid[0]-b.Centroid[0], a.Centroid[1]-b.Centroid[1])
}

func anyNaN(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
