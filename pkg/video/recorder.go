package video

import (
	"fmt"
	"image"

	"github.com/chenBenjamin97/smart-distancing/pkg/distancing"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

//Recorder is a Consumer writing annotated frames to a video file (MJPG codec, '.avi')
type Recorder struct {
	writer      *gocv.VideoWriter
	size        image.Point
	thresholdCm float64
	written     int
	log         *logrus.Entry
}

//NewRecorder creates the output file. size must match the pipeline's display resolution
func NewRecorder(path string, fps float64, size image.Point, thresholdCm float64, log *logrus.Entry) (*Recorder, error) {
	if fps <= 0 {
		fps = 25
	}

	writer, err := gocv.VideoWriterFile(path, "MJPG", fps, size.X, size.Y, true)
	if err != nil {
		return nil, fmt.Errorf("NewRecorder: could not open '%s', got '%v'", path, err)
	}

	return &Recorder{
		writer:      writer,
		size:        size,
		thresholdCm: thresholdCm,
		log:         log.WithFields(logrus.Fields{"component": "recorder", "path": path}),
	}, nil
}

//Update implements Consumer
func (r *Recorder) Update(frame gocv.Mat, res distancing.Result) {
	annotated := frame.Clone()
	defer annotated.Close()
	if annotated.Cols() != r.size.X || annotated.Rows() != r.size.Y {
		//the writer silently drops frames of any other size
		gocv.Resize(frame, &annotated, r.size, 0, 0, gocv.InterpolationLinear)
	}

	PlotResult(&annotated, res, r.thresholdCm)
	if err := r.writer.Write(annotated); err != nil {
		r.log.Errorf("Update: Could not write frame %d, got '%v'", r.written, err)
		return
	}
	r.written++
}

//Close finalizes the output file
func (r *Recorder) Close() error {
	r.log.WithField("frames", r.written).Info("recording closed")
	return r.writer.Close()
}
