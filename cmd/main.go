package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chenBenjamin97/smart-distancing/pkg/api"
	"github.com/chenBenjamin97/smart-distancing/pkg/config"
	"github.com/chenBenjamin97/smart-distancing/pkg/detector"
	"github.com/chenBenjamin97/smart-distancing/pkg/distancing"
	"github.com/chenBenjamin97/smart-distancing/pkg/video"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

var configPath = flag.String("config", "", "path to the YAML config file (default ./config.yaml)")

func main() {
	flag.Parse()
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := run(log); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

//run returns configuration errors before anything is started; an unknown detector never reaches the video loop
func run(log *logrus.Logger) error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	log.SetLevel(cfg.LogLevel)
	entry := logrus.NewEntry(log)

	if cfg.VideoPath == "" && cfg.ImagePath == "" {
		return errors.New("missing critical configuration 'App.VideoPath' or 'App.ImagePath'")
	}

	det, err := detector.New(cfg.Detector, entry.WithField("component", "detector"))
	if err != nil {
		return err
	}
	defer det.Close()

	post, err := distancing.NewPostProcessor(cfg.PostProcessor)
	if err != nil {
		return err
	}

	monitor := api.NewMonitor(cfg.PostProcessor.DistThresholdCm, cfg.VideoDir, entry)
	consumers := video.Consumers{monitor}

	var src video.Source
	if cfg.ImagePath == "" {
		if src, err = video.OpenSource(cfg.VideoPath); err != nil {
			return err
		}
		defer src.Close()
	}

	if cfg.OutputPath != "" {
		fps := 0.0
		if capture, ok := src.(*gocv.VideoCapture); ok {
			fps = capture.Get(gocv.VideoCaptureFPS)
		}
		recorder, err := video.NewRecorder(cfg.OutputPath, fps, cfg.Resolution, cfg.PostProcessor.DistThresholdCm, entry)
		if err != nil {
			return err
		}
		defer recorder.Close()
		consumers = append(consumers, recorder)
	}

	pipeline, err := video.NewPipeline(video.Config{Resolution: cfg.Resolution, InferenceTimeout: cfg.InferenceTimeout}, det, post, consumers, entry)
	if err != nil {
		return err
	}

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: api.SetRouter(monitor)}
	go func() {
		log.Infof("monitor listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("monitor stopped, got '%v'", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	if cfg.ImagePath != "" {
		if runErr = pipeline.ProcessImage(cfg.ImagePath); runErr == nil {
			log.Infof("processed '%s', serving the result until interrupted", cfg.ImagePath)
			<-ctx.Done()
		}
	} else {
		runErr = pipeline.Run(ctx, src)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("monitor shutdown, got '%v'", err)
	}

	return runErr
}
