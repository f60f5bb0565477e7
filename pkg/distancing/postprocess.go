package distancing

import (
	"fmt"

	"github.com/chenBenjamin97/smart-distancing/pkg/utils"
)

//Config holds the post processing parameters
type Config struct {
	MaxDisappearedFrames  int
	NMSOverlapThreshold   float64
	DistanceMethod        DistanceMethod
	AssumedPersonHeightCm float64
	DistThresholdCm       float64
}

//DefaultConfig mirrors the defaults of the configuration file
func DefaultConfig() Config {
	return Config{
		MaxDisappearedFrames:  utils.DefaultMaxTrackFrame,
		NMSOverlapThreshold:   utils.DefaultNMSThreshold,
		DistanceMethod:        CenterPoint,
		AssumedPersonHeightCm: utils.DefaultAssumedHeightCm,
		DistThresholdCm:       utils.DefaultDistThresholdCm,
	}
}

//Validate checks ranges of all parameters
func (c Config) Validate() error {
	if c.MaxDisappearedFrames < 0 {
		return fmt.Errorf("max disappeared frames must be >= 0, got %d", c.MaxDisappearedFrames)
	}
	if c.NMSOverlapThreshold < 0 || c.NMSOverlapThreshold > 1 {
		return fmt.Errorf("nms threshold %v: %w", c.NMSOverlapThreshold, ErrInvalidThreshold)
	}
	if c.DistanceMethod != CenterPoint && c.DistanceMethod != FourCorner {
		return fmt.Errorf("unsupported distance method %v", c.DistanceMethod)
	}
	if c.AssumedPersonHeightCm <= 0 {
		return fmt.Errorf("assumed person height must be > 0, got %v", c.AssumedPersonHeightCm)
	}
	if c.DistThresholdCm < 0 {
		return fmt.Errorf("distance threshold must be >= 0, got %v", c.DistThresholdCm)
	}
	return nil
}

//PostProcessor turns enriched raw detections into tracked, scored objects.
//It owns the Tracker, so one PostProcessor serves exactly one video stream.
type PostProcessor struct {
	cfg     Config
	tracker *Tracker
}

//NewPostProcessor validates given config and builds a PostProcessor
func NewPostProcessor(cfg Config) (*PostProcessor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("NewPostProcessor: %w", err)
	}

	return &PostProcessor{cfg: cfg, tracker: NewTracker(cfg.MaxDisappearedFrames)}, nil
}

//Process runs box filter, suppression, tracking, re-indexing, distance estimation and scoring, in this order
func (p *PostProcessor) Process(objs []EnrichedDetection) (Result, error) {
	filtered := FilterLarge(objs)

	suppressed, err := Suppress(filtered, p.cfg.NMSOverlapThreshold)
	if err != nil {
		return Result{}, fmt.Errorf("Process: %w", err)
	}

	tracked := p.tracker.Update(suppressed)
	Reindex(tracked)

	distances := EstimateDistances(tracked, p.cfg.DistanceMethod, p.cfg.AssumedPersonHeightCm)

	return Result{
		Objects:   Score(tracked, distances, p.cfg.DistThresholdCm),
		Distances: distances,
	}, nil
}

//Tracker exposes the underlying tracker, callers must only read from it
func (p *PostProcessor) Tracker() *Tracker {
	return p.tracker
}
