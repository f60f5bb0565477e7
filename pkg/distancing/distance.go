package distancing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

//DistanceMethod selects which reference points of two boxes are compared
type DistanceMethod int

const (
	//CenterPoint compares box centers
	CenterPoint DistanceMethod = iota
	//FourCorner compares each corresponding corner and keeps the smallest distance
	FourCorner
)

func (m DistanceMethod) String() string {
	switch m {
	case CenterPoint:
		return "CenterPointsDistance"
	case FourCorner:
		return "FourCornerPointsDistance"
	default:
		return fmt.Sprintf("DistanceMethod(%d)", int(m))
	}
}

//ParseDistanceMethod maps configuration names to a DistanceMethod
func ParseDistanceMethod(name string) (DistanceMethod, error) {
	switch name {
	case "CenterPointsDistance":
		return CenterPoint, nil
	case "FourCornerPointsDistance":
		return FourCorner, nil
	default:
		return 0, fmt.Errorf("ParseDistanceMethod: unknown distance method '%s'", name)
	}
}

//NoNeighbour marks a ScoredObject with nobody at a measurable distance
const NoNeighbour = -1.0

//DistanceMatrix is a symmetric NxN matrix of distances in cm. The zero value is the empty matrix.
type DistanceMatrix struct {
	sym *mat.SymDense
}

//Len returns N
func (d DistanceMatrix) Len() int {
	if d.sym == nil {
		return 0
	}
	return d.sym.SymmetricDim()
}

//At returns the distance between object i and j
func (d DistanceMatrix) At(i, j int) float64 {
	return d.sym.At(i, j)
}

//Rows returns the matrix as a plain slice of rows
func (d DistanceMatrix) Rows() [][]float64 {
	n := d.Len()
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		rows[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			rows[i][j] = d.At(i, j)
		}
	}
	return rows
}

//EstimateDistances computes the pairwise physical distance between all given objects
func EstimateDistances(objs []EnrichedDetection, method DistanceMethod, assumedHeightCm float64) DistanceMatrix {
	n := len(objs)
	if n == 0 {
		return DistanceMatrix{}
	}

	sym := mat.NewSymDense(n, nil) //diagonal stays 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sym.SetSym(i, j, pairDistance(objs[i], objs[j], method, assumedHeightCm))
		}
	}

	return DistanceMatrix{sym: sym}
}

func pairDistance(a, b EnrichedDetection, method DistanceMethod, assumedHeightCm float64) float64 {
	if method == FourCorner {
		ca, cb := a.Corners(), b.Corners()
		l := math.Inf(1)
		for k := range ca {
			l = math.Min(l, ProjectedDistance(ca[k], cb[k], assumedHeightCm))
		}
		return l
	}

	return ProjectedDistance(a.Center(), b.Center(), assumedHeightCm)
}

//Score attaches each object's closest neighbour distance, and flags it when closer than thresholdCm.
//MinDistanceCm is NoNeighbour when no finite distance exists.
func Score(objs []EnrichedDetection, distances DistanceMatrix, thresholdCm float64) []ScoredObject {
	res := make([]ScoredObject, len(objs))
	for i, o := range objs {
		closest := math.Inf(1)
		for j := range objs {
			if i != j {
				closest = math.Min(closest, distances.At(i, j))
			}
		}

		res[i] = ScoredObject{EnrichedDetection: o, MinDistanceCm: NoNeighbour}
		if !math.IsInf(closest, 1) {
			res[i].MinDistanceCm = closest
			res[i].Violating = closest < thresholdCm
		}
	}

	return res
}
