package detector

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/chenBenjamin97/smart-distancing/pkg/distancing"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"gocv.io/x/gocv"
)

//replay plays back recorded detections, one JSON line per frame:
//{"detections":[{"id":"1-0","bbox":[x1,y1,x2,y2],"score":0.9}, ...]}
type replay struct {
	mu      sync.Mutex
	file    *os.File
	scanner *bufio.Scanner
	size    image.Point
	line    int
	done    bool
	log     *logrus.Entry
}

func newReplay(cfg Config, log *logrus.Entry) (Detector, error) {
	if cfg.ReplayPath == "" {
		return nil, errors.New("newReplay: missing Detector.ReplayPath")
	}

	f, err := os.Open(cfg.ReplayPath)
	if err != nil {
		return nil, fmt.Errorf("newReplay: %w", err)
	}

	s := bufio.NewScanner(f)
	bufsize := 10 << 20
	s.Buffer(make([]byte, 64*1024), bufsize)

	return &replay{file: f, scanner: s, size: cfg.ImageSize, log: log}, nil
}

func (d *replay) Name() string { return BackendReplay.String() }

func (d *replay) InputSize() image.Point { return d.size }

//Detect returns the next recorded frame, the image itself is ignored
func (d *replay) Detect(_ gocv.Mat) ([]distancing.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.done {
		return []distancing.Detection{}, nil
	}

	for d.scanner.Scan() {
		d.line++
		line := d.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		return ParseDetections(line)
	}

	d.done = true
	if err := d.scanner.Err(); err != nil {
		return nil, fmt.Errorf("Detect: reading line %d, got '%w'", d.line+1, err)
	}
	d.log.Info("replay exhausted, no more detections")
	return []distancing.Detection{}, nil
}

//ParseDetections parses one recorded frame
func ParseDetections(line []byte) ([]distancing.Detection, error) {
	if !gjson.ValidBytes(line) {
		return nil, fmt.Errorf("ParseDetections: invalid json '%s'", string(line))
	}

	var parseErr error
	dets := make([]distancing.Detection, 0)
	gjson.GetBytes(line, "detections").ForEach(func(_, item gjson.Result) bool {
		bbox := item.Get("bbox").Array()
		if len(bbox) != 4 {
			parseErr = fmt.Errorf("ParseDetections: bbox of '%s' must have 4 values, got %d", item.Get("id").String(), len(bbox))
			return false
		}

		det := distancing.Detection{ID: item.Get("id").String(), Score: item.Get("score").Float()}
		for i, v := range bbox {
			det.BBox[i] = v.Float()
		}
		dets = append(dets, det)
		return true
	})

	if parseErr != nil {
		return nil, parseErr
	}
	return dets, nil
}

func (d *replay) Close() error {
	return d.file.Close()
}
