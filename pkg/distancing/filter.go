package distancing

import "github.com/chenBenjamin97/smart-distancing/pkg/utils"

//FilterLarge drops boxes covering more than a quarter of the frame, those are treated as false detections
func FilterLarge(objs []EnrichedDetection) []EnrichedDetection {
	res := make([]EnrichedDetection, 0, len(objs))
	for _, o := range objs {
		if o.NormalizedArea() > utils.MaxBoxArea {
			continue
		}
		res = append(res, o)
	}

	return res
}
