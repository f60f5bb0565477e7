package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/chenBenjamin97/smart-distancing/pkg/detector"
	"github.com/chenBenjamin97/smart-distancing/pkg/distancing"
	"github.com/chenBenjamin97/smart-distancing/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"
	"gocv.io/x/gocv"
)

//ErrFrameRead marks a frame without usable image data, such frames are skipped
var ErrFrameRead = errors.New("frame could not be read")

//Config holds the pipeline parameters
type Config struct {
	//Resolution is the display resolution, detection coordinates are scaled into it
	Resolution image.Point
	//InferenceTimeout bounds the wait for one frame's detections, after it the frame has zero detections
	InferenceTimeout time.Duration
}

//Pipeline drives frames through the detector and the post processor, one frame at a time.
//At most one frame is in flight to the detector; detections of frame N reach the consumer
//before frame N+1 is dispatched.
type Pipeline struct {
	cfg      Config
	detector detector.Detector
	post     *distancing.PostProcessor
	consumer Consumer
	log      *logrus.Entry

	frames    uint64 //successfully processed frames
	skipped   uint64
	abandoned uint64

	//pending is an inference that outlived its timeout, no new frame is dispatched until it resolves
	pending *pendingInference
}

//NewPipeline wires given components together
func NewPipeline(cfg Config, det detector.Detector, post *distancing.PostProcessor, consumer Consumer, log *logrus.Entry) (*Pipeline, error) {
	if cfg.Resolution.X <= 0 || cfg.Resolution.Y <= 0 {
		return nil, fmt.Errorf("NewPipeline: invalid resolution %v", cfg.Resolution)
	}
	if cfg.InferenceTimeout <= 0 {
		cfg.InferenceTimeout = utils.DefaultInferenceTimeout
	}
	if det == nil || post == nil || consumer == nil {
		return nil, errors.New("NewPipeline: detector, post processor and consumer are required")
	}

	_, isSync := det.(detector.SyncDetector)
	_, isAsync := det.(detector.AsyncDetector)
	if !isSync && !isAsync {
		return nil, fmt.Errorf("NewPipeline: '%s' can not be dispatched to: %w", det.Name(), detector.ErrUnsupportedDetector)
	}

	return &Pipeline{
		cfg:      cfg,
		detector: det,
		post:     post,
		consumer: consumer,
		log:      log.WithField("component", "pipeline"),
	}, nil
}

//Run reads frames from src until the stream ends or ctx is cancelled.
//A cancelled ctx lets the frame in flight finish first.
func (p *Pipeline) Run(ctx context.Context, src Source) error {
	if src == nil || !src.IsOpened() {
		return fmt.Errorf("Run: %w", ErrStreamUnavailable)
	}

	frame := gocv.NewMat()
	defer frame.Close()

	p.log.Info("video loop started")
	defer func() {
		p.log.WithFields(logrus.Fields{"processed": p.frames, "skipped": p.skipped, "abandoned": p.abandoned}).Info("video loop stopped")
	}()
	defer p.settle()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !src.Read(&frame) {
			p.log.Info("end of stream")
			return nil
		}

		if _, err := p.ProcessFrame(frame); err != nil {
			return fmt.Errorf("Run: frame %d: %w", p.frames, err)
		}
	}
}

//ProcessFrame runs one loop iteration on a BGR frame. It returns false when the frame was skipped
func (p *Pipeline) ProcessFrame(img gocv.Mat) (bool, error) {
	if img.Empty() {
		p.skipped++
		p.log.WithError(ErrFrameRead).WithField("skipped", p.skipped).Warn("skipping frame")
		return false, nil
	}

	fc := newFrameContext(p.frames)
	defer fc.Close()

	gocv.Resize(img, &fc.display, p.cfg.Resolution, 0, 0, gocv.InterpolationLinear)

	resized := gocv.NewMat()
	gocv.Resize(fc.display, &resized, p.detector.InputSize(), 0, 0, gocv.InterpolationLinear)
	input := gocv.NewMat()
	gocv.CvtColor(resized, &input, gocv.ColorBGRToRGB)
	resized.Close()

	dets := p.dispatch(input)
	objs := p.enrich(dets)

	res, err := p.post.Process(objs)
	if err != nil {
		return false, err
	}

	p.logRecord(fc.number, len(dets), res)
	p.consumer.Update(fc.display, res)
	p.frames++

	return true, nil
}

//ProcessImage runs a single still image through the pipeline, the consumer sees it like a video frame
func (p *Pipeline) ProcessImage(path string) error {
	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return fmt.Errorf("ProcessImage: '%s': %w", path, ErrFrameRead)
	}
	defer p.settle()

	if _, err := p.ProcessFrame(img); err != nil {
		return fmt.Errorf("ProcessImage: '%s': %w", path, err)
	}
	return nil
}

//Processed returns the number of frames handed to the consumer so far
func (p *Pipeline) Processed() uint64 {
	return p.frames
}

//dispatch sends input to the detector and blocks until its detections arrive or the timeout fires.
//dispatch takes ownership of input: it is released as soon as the detector is done with it.
//A failed or timed out inference yields zero detections.
func (p *Pipeline) dispatch(input gocv.Mat) []distancing.Detection {
	if !p.awaitPending(p.cfg.InferenceTimeout) {
		input.Close()
		p.abandoned++
		p.log.Warn("previous inference still in flight, frame has no detections")
		return nil
	}

	var once sync.Once
	release := func() { once.Do(func() { input.Close() }) }

	slot := make(chan inference, 1)
	deliver := func(dets []distancing.Detection, err error) {
		release()
		select {
		case slot <- inference{dets: dets, err: err}:
		default:
			p.log.Warn("detector called back twice for one frame, ignoring")
		}
	}

	switch d := p.detector.(type) {
	case detector.AsyncDetector:
		d.Infer(input, deliver)
	case detector.SyncDetector:
		deliver(d.Detect(input))
	}

	timer := time.NewTimer(p.cfg.InferenceTimeout)
	defer timer.Stop()

	select {
	case r := <-slot:
		if r.err != nil {
			p.log.WithError(r.err).Warn("inference failed, frame has no detections")
			return nil
		}
		return r.dets
	case <-timer.C:
		//the late callback lands in this frame's own slot, awaited before the next dispatch
		p.pending = &pendingInference{slot: slot, release: release}
		p.abandoned++
		p.log.WithField("timeout", p.cfg.InferenceTimeout).Warn("inference timed out, frame has no detections")
		return nil
	}
}

//awaitPending waits up to wait for a timed out inference to resolve, its detections are dropped.
//It returns false while that inference is still in flight.
func (p *Pipeline) awaitPending(wait time.Duration) bool {
	if p.pending == nil {
		return true
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-p.pending.slot:
		p.log.Debug("late detections dropped")
		p.pending = nil
		return true
	case <-timer.C:
		return false
	}
}

//settle is called when the pipeline stops: a still pending inference gets one more timeout, then it is abandoned
func (p *Pipeline) settle() {
	if p.awaitPending(p.cfg.InferenceTimeout) {
		return
	}

	p.pending.release()
	p.pending = nil
	p.log.Warn("abandoned in-flight inference")
}

func (p *Pipeline) enrich(dets []distancing.Detection) []distancing.EnrichedDetection {
	objs := make([]distancing.EnrichedDetection, 0, len(dets))
	for _, d := range dets {
		e, err := distancing.Enrich(d, p.cfg.Resolution.X, p.cfg.Resolution.Y)
		if err != nil {
			p.log.WithError(err).Warn("dropping detection")
			continue
		}
		objs = append(objs, e)
	}
	return objs
}

func (p *Pipeline) logRecord(fnum uint64, raw int, res distancing.Result) {
	if !p.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}

	record, _ := sjson.Set("", "fnum", fnum)
	record, _ = sjson.Set(record, "detections", raw)
	record, _ = sjson.Set(record, "objects", len(res.Objects))
	record, _ = sjson.Set(record, "violations", res.Violations())
	record, _ = sjson.Set(record, "tracks", p.post.Tracker().Len())
	p.log.Debug(record)
}
