package detector

import (
	"fmt"
	"image"
	"math/rand"
	"sync"
	"time"

	"github.com/chenBenjamin97/smart-distancing/pkg/distancing"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

//dummy detects random boxes, asynchronously, after a fixed latency.
//Useful for running the whole pipeline without a model.
type dummy struct {
	mu      sync.Mutex
	rnd     *rand.Rand
	size    image.Point
	classID int
	latency time.Duration
	wg      sync.WaitGroup
	log     *logrus.Entry
}

func newDummy(cfg Config, log *logrus.Entry) (Detector, error) {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &dummy{
		rnd:     rand.New(rand.NewSource(seed)),
		size:    cfg.ImageSize,
		classID: cfg.ClassID,
		latency: cfg.Latency,
		log:     log,
	}, nil
}

func (d *dummy) Name() string { return BackendDummy.String() }

func (d *dummy) InputSize() image.Point { return d.size }

//Infer never reads img, so it gives the caller no reason to hold it
func (d *dummy) Infer(_ gocv.Mat, done Callback) {
	dets := d.randomDetections()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		time.Sleep(d.latency)
		done(dets, nil)
	}()
}

//randomDetections returns 0 to 4 boxes built as [r0, r1, r0+r2, r1+r3]/2 from uniform samples
func (d *dummy) randomDetections() []distancing.Detection {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := d.rnd.Intn(5)
	dets := make([]distancing.Detection, n)
	for i := range dets {
		r := [4]float64{d.rnd.Float64(), d.rnd.Float64(), d.rnd.Float64(), d.rnd.Float64()}
		dets[i] = distancing.Detection{
			ID:    fmt.Sprintf("%d-%d", d.classID, i),
			BBox:  [4]float64{r[0] * 0.5, r[1] * 0.5, (r[0] + r[2]) * 0.5, (r[1] + r[3]) * 0.5},
			Score: d.rnd.Float64(),
		}
	}

	return dets
}

//Close waits for pending callbacks
func (d *dummy) Close() error {
	d.wg.Wait()
	return nil
}
