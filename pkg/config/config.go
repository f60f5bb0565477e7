package config

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/chenBenjamin97/smart-distancing/pkg/detector"
	"github.com/chenBenjamin97/smart-distancing/pkg/distancing"
	"github.com/chenBenjamin97/smart-distancing/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

//ErrInvalidConfig is returned for values that fail validation
var ErrInvalidConfig = errors.New("invalid configuration")

//Config is the whole application configuration, read once at start up
type Config struct {
	Resolution       image.Point
	VideoPath        string
	ImagePath        string
	VideoDir         string
	OutputPath       string
	LogLevel         logrus.Level
	InferenceTimeout time.Duration

	Detector      detector.Config
	PostProcessor distancing.Config

	HTTPAddr string
}

//SetDefaults registers every default value on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("App.Resolution", utils.DefaultResolution)
	v.SetDefault("App.VideoDir", ".")
	v.SetDefault("App.LogLevel", "info")
	v.SetDefault("App.InferenceTimeout", utils.DefaultInferenceTimeout)

	v.SetDefault("Detector.Name", "mobilenet_ssd_v2")
	v.SetDefault("Detector.Device", "x86")
	v.SetDefault("Detector.ImageSize", utils.DefaultImageSize)
	v.SetDefault("Detector.ClassID", utils.PersonClassID)
	v.SetDefault("Detector.MinScore", 0.25)
	v.SetDefault("Detector.Latency", 50*time.Millisecond)

	v.SetDefault("PostProcessor.MaxTrackFrame", utils.DefaultMaxTrackFrame)
	v.SetDefault("PostProcessor.NMSThreshold", utils.DefaultNMSThreshold)
	v.SetDefault("PostProcessor.DistMethod", distancing.CenterPoint.String())
	v.SetDefault("PostProcessor.DistThreshold", utils.DefaultDistThresholdCm)
	v.SetDefault("PostProcessor.AssumedHeight", utils.DefaultAssumedHeightCm)

	v.SetDefault("HTTP.Host", "0.0.0.0")
	v.SetDefault("HTTP.Port", "8000")
}

//Load reads given YAML file; an empty path means 'config.yaml' in the working directory
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if path == "" {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("Load: Could not read config file, got '%v'", err)
	}

	return FromViper(v)
}

//FromViper builds and validates a Config from an already populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		VideoPath:        v.GetString("App.VideoPath"),
		ImagePath:        v.GetString("App.ImagePath"),
		VideoDir:         v.GetString("App.VideoDir"),
		OutputPath:       v.GetString("App.OutputPath"),
		InferenceTimeout: v.GetDuration("App.InferenceTimeout"),
		HTTPAddr:         v.GetString("HTTP.Host") + ":" + v.GetString("HTTP.Port"),
	}

	var err error
	if cfg.Resolution, err = utils.ParseSize(v.GetString("App.Resolution")); err != nil {
		return nil, invalid("App.Resolution", err)
	}
	if cfg.LogLevel, err = logrus.ParseLevel(v.GetString("App.LogLevel")); err != nil {
		return nil, invalid("App.LogLevel", err)
	}
	if cfg.InferenceTimeout <= 0 {
		return nil, invalid("App.InferenceTimeout", fmt.Errorf("must be positive, got %v", cfg.InferenceTimeout))
	}

	imageSize, err := utils.ParseSize(v.GetString("Detector.ImageSize"))
	if err != nil {
		return nil, invalid("Detector.ImageSize", err)
	}
	cfg.Detector = detector.Config{
		Name:       v.GetString("Detector.Name"),
		Device:     v.GetString("Detector.Device"),
		ImageSize:  imageSize,
		ModelPath:  v.GetString("Detector.ModelPath"),
		ConfigPath: v.GetString("Detector.ConfigPath"),
		ClassID:    v.GetInt("Detector.ClassID"),
		MinScore:   v.GetFloat64("Detector.MinScore"),
		ReplayPath: v.GetString("Detector.ReplayPath"),
		Latency:    v.GetDuration("Detector.Latency"),
		Seed:       v.GetInt64("Detector.Seed"),
	}
	if cfg.Detector.MinScore < 0 || cfg.Detector.MinScore > 1 {
		return nil, invalid("Detector.MinScore", fmt.Errorf("must be within [0, 1], got %v", cfg.Detector.MinScore))
	}

	method, err := distancing.ParseDistanceMethod(v.GetString("PostProcessor.DistMethod"))
	if err != nil {
		return nil, invalid("PostProcessor.DistMethod", err)
	}
	cfg.PostProcessor = distancing.Config{
		MaxDisappearedFrames:  v.GetInt("PostProcessor.MaxTrackFrame"),
		NMSOverlapThreshold:   v.GetFloat64("PostProcessor.NMSThreshold"),
		DistanceMethod:        method,
		AssumedPersonHeightCm: v.GetFloat64("PostProcessor.AssumedHeight"),
		DistThresholdCm:       v.GetFloat64("PostProcessor.DistThreshold"),
	}
	if err := cfg.PostProcessor.Validate(); err != nil {
		return nil, invalid("PostProcessor", err)
	}

	return cfg, nil
}

func invalid(key string, err error) error {
	return fmt.Errorf("%s: %v: %w", key, err, ErrInvalidConfig)
}
