package api

import (
	"math"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/chenBenjamin97/smart-distancing/pkg/distancing"
	"github.com/chenBenjamin97/smart-distancing/pkg/utils"
	"github.com/chenBenjamin97/smart-distancing/pkg/video"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

//Snapshot is the latest processed frame, as served to clients
type Snapshot struct {
	Frame      uint64                    `json:"frame"`
	Time       time.Time                 `json:"time"`
	Objects    []distancing.ScoredObject `json:"objects"`
	Distances  [][]float64               `json:"distances"`
	Violations int                       `json:"violations"`
}

//Monitor is the UI consumer: it keeps the latest snapshot and annotated JPEG frame
type Monitor struct {
	mu          sync.RWMutex
	snapshot    Snapshot
	jpeg        []byte
	frames      uint64
	thresholdCm float64
	videoDir    string
	log         *logrus.Entry
}

//NewMonitor returns an empty monitor; videoDir is listed by /api/videos
func NewMonitor(thresholdCm float64, videoDir string, log *logrus.Entry) *Monitor {
	return &Monitor{
		thresholdCm: thresholdCm,
		videoDir:    videoDir,
		snapshot:    Snapshot{Objects: []distancing.ScoredObject{}, Distances: [][]float64{}},
		log:         log.WithField("component", "monitor"),
	}
}

//Update implements video.Consumer
func (m *Monitor) Update(frame gocv.Mat, res distancing.Result) {
	annotated := frame.Clone()
	defer annotated.Close()
	video.PlotResult(&annotated, res, m.thresholdCm)

	var jpeg []byte
	if buf, err := gocv.IMEncode(gocv.JPEGFileExt, annotated); err != nil {
		m.log.Warnf("Update: Could not encode frame, got '%v'", err)
	} else {
		jpeg = append([]byte(nil), buf.GetBytes()...)
		buf.Close()
	}

	m.store(res, jpeg)
}

func (m *Monitor) store(res distancing.Result, jpeg []byte) {
	rows := res.Distances.Rows()
	for _, row := range rows {
		for j, d := range row {
			if math.IsInf(d, 0) || math.IsNaN(d) { //json can not encode it
				row[j] = distancing.NoNeighbour
			}
		}
	}

	objects := res.Objects
	if objects == nil {
		objects = []distancing.ScoredObject{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames++
	m.snapshot = Snapshot{
		Frame:      m.frames,
		Time:       time.Now(),
		Objects:    objects,
		Distances:  rows,
		Violations: res.Violations(),
	}
	if jpeg != nil {
		m.jpeg = jpeg
	}
}

//Latest returns the latest snapshot
func (m *Monitor) Latest() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

func (m *Monitor) latestJPEG() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jpeg
}

//SetRouter builds the http routes serving the monitor
func SetRouter(m *Monitor) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(m.log))

	apiRoutes := r.Group("/api")

	apiRoutes.GET("/status", func(ctx *gin.Context) {
		s := m.Latest()
		ctx.JSON(http.StatusOK, gin.H{"frames": s.Frame, "last_update": s.Time, "objects": len(s.Objects), "violations": s.Violations})
	})

	apiRoutes.GET("/objects", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, m.Latest())
	})

	apiRoutes.GET("/frame.jpg", func(ctx *gin.Context) {
		jpeg := m.latestJPEG()
		if jpeg == nil {
			ctx.Status(http.StatusNoContent) //nothing processed yet
			return
		}
		ctx.Data(http.StatusOK, "image/jpeg", jpeg)
	})

	apiRoutes.GET("/videos", func(ctx *gin.Context) {
		names, err := utils.ListDir(m.videoDir)
		if err != nil {
			m.log.Warnf("api/videos: got '%v'", err)
			ctx.Status(http.StatusInternalServerError)
			return
		}

		videos := make([]string, 0, len(names))
		for _, name := range names {
			if utils.InSlice(filepath.Ext(name), utils.VideoExtensions) {
				videos = append(videos, name)
			}
		}
		ctx.JSON(http.StatusOK, videos)
	})

	return r
}

func requestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		log.WithFields(logrus.Fields{
			"method":  ctx.Request.Method,
			"path":    ctx.Request.URL.Path,
			"status":  ctx.Writer.Status(),
			"latency": time.Since(start),
		}).Debug("request")
	}
}
