package distancing

import (
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

//Tracker keeps persistent identities across frames by centroid proximity.
//It is not safe for concurrent use, the pipeline calls it from a single goroutine.
type Tracker struct {
	maxDisappeared int
	tracks         map[string]*Track
	nextSeq        uint64
	newID          func() string
}

//NewTracker returns a tracker that evicts a track once it was missed more than maxDisappeared consecutive frames
func NewTracker(maxDisappeared int) *Tracker {
	if maxDisappeared < 0 {
		maxDisappeared = 0
	}

	return &Tracker{
		maxDisappeared: maxDisappeared,
		tracks:         make(map[string]*Track),
		newID:          func() string { return "trk_" + uuid.NewString() },
	}
}

type candidatePair struct {
	track *Track
	det   int
	dist  float64
}

//Update matches given detections to live tracks and returns the live tracks' last known detections,
//ordered by track creation
func (t *Tracker) Update(objs []EnrichedDetection) []EnrichedDetection {
	live := t.sortedTracks()

	pairs := make([]candidatePair, 0, len(live)*len(objs))
	for _, tr := range live {
		for j := range objs {
			pairs = append(pairs, candidatePair{track: tr, det: j, dist: centroidDistance(tr.LastKnown, objs[j])})
		}
	}
	//globally smallest distance first; ties are broken by track age then detection index
	sort.SliceStable(pairs, func(a, b int) bool {
		return pairs[a].dist < pairs[b].dist
	})

	matchedTracks := make(map[string]bool, len(live))
	matchedDets := make([]bool, len(objs))
	for _, p := range pairs {
		if len(matchedTracks) == len(live) || len(matchedTracks) == len(objs) {
			break
		}
		if matchedTracks[p.track.TrackID] || matchedDets[p.det] {
			continue
		}

		matchedTracks[p.track.TrackID] = true
		matchedDets[p.det] = true
		p.track.LastKnown = objs[p.det]
		p.track.LastKnown.TrackID = p.track.TrackID
		p.track.Disappeared = 0
	}

	for _, tr := range live {
		if matchedTracks[tr.TrackID] {
			continue
		}
		tr.Disappeared++
		if tr.Disappeared > t.maxDisappeared {
			delete(t.tracks, tr.TrackID)
		}
	}

	for j, o := range objs {
		if !matchedDets[j] {
			t.register(o)
		}
	}

	res := make([]EnrichedDetection, 0, len(t.tracks))
	for _, tr := range t.sortedTracks() {
		res = append(res, tr.LastKnown)
	}

	return res
}

//Len returns the number of live tracks
func (t *Tracker) Len() int {
	return len(t.tracks)
}

//Tracks returns a copy of the live tracks, ordered by creation
func (t *Tracker) Tracks() []Track {
	res := make([]Track, 0, len(t.tracks))
	for _, tr := range t.sortedTracks() {
		res = append(res, *tr)
	}
	return res
}

func (t *Tracker) register(o EnrichedDetection) {
	tr := &Track{TrackID: t.newID(), LastKnown: o, seq: t.nextSeq}
	tr.LastKnown.TrackID = tr.TrackID
	t.nextSeq++
	t.tracks[tr.TrackID] = tr
}

func (t *Tracker) sortedTracks() []*Track {
	res := make([]*Track, 0, len(t.tracks))
	for _, tr := range t.tracks {
		res = append(res, tr)
	}
	sort.Slice(res, func(a, b int) bool { return res[a].seq < res[b].seq })
	return res
}

//Reindex renumbers detection ids positionally, keeping the origin prefix ("<origin>-<ordinal>").
//Only ID changes, TrackID is left untouched.
func Reindex(objs []EnrichedDetection) {
	for i := range objs {
		origin := strings.SplitN(objs[i].ID, "-", 2)[0]
		objs[i].ID = origin + "-" + strconv.Itoa(i)
	}
}
