package distancing

import (
	"errors"
	"fmt"
	"sort"
)

//ErrInvalidThreshold is returned when an overlap threshold is outside [0, 1]
var ErrInvalidThreshold = errors.New("overlap threshold must be within [0, 1]")

//Suppress removes duplicated boxes with a greedy non-maximum suppression.
//Candidates are visited from the bottommost box (cy + h/2) upwards; every remaining box whose
//overlap with the picked one, relative to its own area, exceeds overlapThresh is dropped.
//Boxes are compared in pixel space (BBoxReal) with the inclusive +1 area convention.
//Returned objects keep their input order.
func Suppress(objs []EnrichedDetection, overlapThresh float64) ([]EnrichedDetection, error) {
	if overlapThresh < 0 || overlapThresh > 1 || anyNaN(overlapThresh) {
		return nil, fmt.Errorf("Suppress: got %v: %w", overlapThresh, ErrInvalidThreshold)
	}

	if len(objs) == 0 {
		return []EnrichedDetection{}, nil
	}

	idxs := make([]int, len(objs))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool {
		return objs[idxs[a]].Bottom() < objs[idxs[b]].Bottom()
	})

	picked := make([]bool, len(objs))
	for len(idxs) > 0 {
		last := len(idxs) - 1
		i := idxs[last]
		picked[i] = true

		remaining := idxs[:0:0]
		for _, k := range idxs[:last] {
			if overlapRatio(objs[i].BBoxReal, objs[k].BBoxReal) > overlapThresh {
				continue
			}
			remaining = append(remaining, k)
		}
		idxs = remaining
	}

	res := make([]EnrichedDetection, 0, len(objs))
	for i, o := range objs {
		if picked[i] {
			res = append(res, o)
		}
	}

	return res, nil
}
