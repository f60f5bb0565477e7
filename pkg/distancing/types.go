package distancing

//Detection is a single raw detector output. BBox is [x1, y1, x2, y2] normalized to 0..1
type Detection struct {
	ID    string     `json:"id"`
	BBox  [4]float64 `json:"bbox"`
	Score float64    `json:"score"`
}

//EnrichedDetection is a Detection plus its derived geometry, both normalized and scaled to display resolution (pixels)
type EnrichedDetection struct {
	Detection
	Centroid     [4]float64 `json:"centroid"`      //cx, cy, w, h (normalized)
	CentroidReal [4]float64 `json:"centroid_real"` //cx, cy, w, h (pixels)
	BBoxReal     [4]float64 `json:"bbox_real"`     //x1, y1, x2, y2 (pixels)
	TrackID      string     `json:"track_id,omitempty"`
}

//Track is a persistent identity, owned by the Tracker
type Track struct {
	TrackID     string
	LastKnown   EnrichedDetection
	Disappeared int
	seq         uint64 //creation order, keeps output stable
}

//ScoredObject is a tracked object with its closest neighbour distance
type ScoredObject struct {
	EnrichedDetection
	MinDistanceCm float64 `json:"min_distance_cm"`
	Violating     bool    `json:"violating"`
}

//Result is everything the post processor produces for one frame
type Result struct {
	Objects   []ScoredObject
	Distances DistanceMatrix
}

//Violations returns how many objects are closer than the threshold to someone else
func (r Result) Violations() int {
	n := 0
	for _, o := range r.Objects {
		if o.Violating {
			n++
		}
	}
	return n
}
