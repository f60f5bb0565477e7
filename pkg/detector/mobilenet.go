package detector

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/chenBenjamin97/smart-distancing/pkg/distancing"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

//mobileNetSSD runs an SSD MobileNet network through OpenCV's dnn module
type mobileNetSSD struct {
	mu       sync.Mutex //gocv.Net is not safe for concurrent Forward calls
	net      gocv.Net
	size     image.Point
	classID  int
	minScore float64
	log      *logrus.Entry
}

func newMobileNetSSD(cfg Config, log *logrus.Entry) (Detector, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("newMobileNetSSD: missing Detector.ModelPath")
	}

	net := gocv.ReadNet(cfg.ModelPath, cfg.ConfigPath)
	if net.Empty() {
		return nil, fmt.Errorf("newMobileNetSSD: could not load model '%s'", cfg.ModelPath)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		log.Warnf("could not set dnn backend, got '%v'", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		log.Warnf("could not set dnn target, got '%v'", err)
	}

	return &mobileNetSSD{
		net:      net,
		size:     cfg.ImageSize,
		classID:  cfg.ClassID,
		minScore: cfg.MinScore,
		log:      log,
	}, nil
}

func (d *mobileNetSSD) Name() string { return BackendMobileNetSSD.String() }

func (d *mobileNetSSD) InputSize() image.Point { return d.size }

//Detect expects an RGB image already resized to InputSize
func (d *mobileNetSSD) Detect(img gocv.Mat) ([]distancing.Detection, error) {
	if img.Empty() {
		return nil, errors.New("Detect: empty image")
	}

	//mean 127.5 and scale 1/127.5 maps pixels to [-1, 1]; the image is already RGB, no swap
	blob := gocv.BlobFromImage(img, 1.0/127.5, d.size, gocv.NewScalar(127.5, 127.5, 127.5, 0), false, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	prob := d.net.Forward("")
	d.mu.Unlock()
	defer prob.Close()

	return parseSSDOutput(prob.Total(), func(i int) float64 { return float64(prob.GetFloatAt(0, i)) }, d.classID, d.minScore), nil
}

//parseSSDOutput reads SSD rows of 7 values: [image, class, score, x1, y1, x2, y2]
func parseSSDOutput(total int, at func(i int) float64, classID int, minScore float64) []distancing.Detection {
	dets := make([]distancing.Detection, 0)
	for i := 0; i+6 < total; i += 7 {
		class := int(at(i + 1))
		score := at(i + 2)
		if class != classID || score <= minScore {
			continue
		}

		dets = append(dets, distancing.Detection{
			ID:    fmt.Sprintf("%d-%d", classID, i/7),
			BBox:  [4]float64{clamp01(at(i + 3)), clamp01(at(i + 4)), clamp01(at(i + 5)), clamp01(at(i + 6))},
			Score: score,
		})
	}

	return dets
}

func (d *mobileNetSSD) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
