package detector

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"time"

	"github.com/chenBenjamin97/smart-distancing/pkg/distancing"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

//ErrUnsupportedDetector is returned at construction time for unknown backend names
var ErrUnsupportedDetector = errors.New("unsupported detector")

//Detector is the capability shared by every backend
type Detector interface {
	Name() string
	//InputSize is the image size the backend expects, frames are resized to it before dispatch
	InputSize() image.Point
	Close() error
}

//SyncDetector returns detections for an RGB image directly
type SyncDetector interface {
	Detector
	Detect(img gocv.Mat) ([]distancing.Detection, error)
}

//Callback receives the detections of one dispatched image. It may be called from another goroutine
type Callback func(dets []distancing.Detection, err error)

//AsyncDetector delivers detections through a callback, at an arbitrary later point.
//It must call done exactly once per Infer call, and must not touch img after calling it.
type AsyncDetector interface {
	Detector
	Infer(img gocv.Mat, done Callback)
}

//Backend enumerates the supported detector implementations
type Backend int

const (
	BackendMobileNetSSD Backend = iota + 1
	BackendReplay
	BackendDummy
)

var backendNames = map[string]Backend{
	"mobilenet_ssd_v2": BackendMobileNetSSD,
	"replay":           BackendReplay,
	"dummy":            BackendDummy,
}

func (b Backend) String() string {
	for name, v := range backendNames {
		if v == b {
			return name
		}
	}
	return fmt.Sprintf("Backend(%d)", int(b))
}

//Config carries everything a backend may need
type Config struct {
	Name       string
	Device     string
	ImageSize  image.Point
	ModelPath  string
	ConfigPath string
	ClassID    int
	MinScore   float64
	ReplayPath string
	Latency    time.Duration
	Seed       int64
}

//Factory builds a backend from configuration
type Factory func(cfg Config, log *logrus.Entry) (Detector, error)

var registry = map[Backend]Factory{
	BackendMobileNetSSD: newMobileNetSSD,
	BackendReplay:       newReplay,
	BackendDummy:        newDummy,
}

//ParseBackend maps a configured detector name to its Backend tag
func ParseBackend(name, device string) (Backend, error) {
	if b, ok := backendNames[name]; ok {
		return b, nil
	}
	return 0, fmt.Errorf("failed to initiate detector, as '%s' on device '%s' is not supported (known: %v): %w", name, device, Names(), ErrUnsupportedDetector)
}

//Names returns all registered backend names, sorted
func Names() []string {
	res := make([]string, 0, len(backendNames))
	for name := range backendNames {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

//New builds the configured backend. Unknown names fail with ErrUnsupportedDetector
func New(cfg Config, log *logrus.Entry) (Detector, error) {
	b, err := ParseBackend(cfg.Name, cfg.Device)
	if err != nil {
		return nil, err
	}

	if cfg.ImageSize == (image.Point{}) {
		cfg.ImageSize = image.Pt(300, 300)
	}

	d, err := registry[b](cfg, log.WithField("detector", b.String()))
	if err != nil {
		return nil, fmt.Errorf("New: could not build '%s' detector, got '%w'", b, err)
	}

	_, isSync := d.(SyncDetector)
	_, isAsync := d.(AsyncDetector)
	if !isSync && !isAsync {
		d.Close()
		return nil, fmt.Errorf("New: '%s' implements neither Detect nor Infer: %w", b, ErrUnsupportedDetector)
	}

	log.WithFields(logrus.Fields{"detector": b.String(), "device": cfg.Device, "input": cfg.ImageSize}).Info("detector ready")
	return d, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
