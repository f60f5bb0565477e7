package video

import (
	"errors"
	"fmt"
	"os"

	"gocv.io/x/gocv"
)

//ErrStreamUnavailable means the video source could not be opened, this ends the run
var ErrStreamUnavailable = errors.New("video stream unavailable")

//Source delivers decoded BGR frames. Read returns false once the stream ended.
//*gocv.VideoCapture satisfies it.
type Source interface {
	Read(m *gocv.Mat) bool
	IsOpened() bool
	Close() error
}

//OpenSource opens a local video file, or a device id / network URI (rtsp://, http://, "0")
func OpenSource(uri string) (Source, error) {
	var (
		capture *gocv.VideoCapture
		err     error
	)

	if _, statErr := os.Stat(uri); statErr == nil {
		capture, err = gocv.VideoCaptureFile(uri)
	} else {
		capture, err = gocv.OpenVideoCapture(uri)
	}
	if err != nil {
		return nil, fmt.Errorf("OpenSource: '%s', got '%v': %w", uri, err, ErrStreamUnavailable)
	}

	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("OpenSource: '%s' is not opened: %w", uri, ErrStreamUnavailable)
	}

	return capture, nil
}
