package config

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chenBenjamin97/smart-distancing/pkg/distancing"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
App:
  Resolution: "1280,720"
  VideoPath: /data/softbio.mp4
  ImagePath: /data/hall.jpg
  LogLevel: debug
Detector:
  Name: replay
  Device: Dummy
  ImageSize: "300,300,3"
  ReplayPath: /data/softbio.jsonl
PostProcessor:
  MaxTrackFrame: 3
  NMSThreshold: 0.3
  DistMethod: FourCornerPointsDistance
  DistThreshold: 200
HTTP:
  Port: 9000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, image.Pt(1280, 720), cfg.Resolution)
	assert.Equal(t, "/data/softbio.mp4", cfg.VideoPath)
	assert.Equal(t, "/data/hall.jpg", cfg.ImagePath)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.InferenceTimeout)

	assert.Equal(t, "replay", cfg.Detector.Name)
	assert.Equal(t, image.Pt(300, 300), cfg.Detector.ImageSize)
	assert.Equal(t, "/data/softbio.jsonl", cfg.Detector.ReplayPath)
	assert.Equal(t, 1, cfg.Detector.ClassID)

	assert.Equal(t, 3, cfg.PostProcessor.MaxDisappearedFrames)
	assert.InDelta(t, 0.3, cfg.PostProcessor.NMSOverlapThreshold, 1e-9)
	assert.Equal(t, distancing.FourCorner, cfg.PostProcessor.DistanceMethod)
	assert.InDelta(t, 200, cfg.PostProcessor.DistThresholdCm, 1e-9)
	assert.InDelta(t, 170, cfg.PostProcessor.AssumedPersonHeightCm, 1e-9)

	assert.Equal(t, "0.0.0.0:9000", cfg.HTTPAddr)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"nms threshold":   "PostProcessor:\n  NMSThreshold: 1.5\n",
		"dist method":     "PostProcessor:\n  DistMethod: Euclid\n",
		"negative frames": "PostProcessor:\n  MaxTrackFrame: -1\n",
		"resolution":      "App:\n  Resolution: \"wide\"\n",
		"log level":       "App:\n  LogLevel: chatty\n",
		"min score":       "Detector:\n  MinScore: 3\n",
	}

	for name, content := range cases {
		content := content
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, content))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
