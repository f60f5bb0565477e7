package video

import (
	"github.com/chenBenjamin97/smart-distancing/pkg/distancing"
	"gocv.io/x/gocv"
)

//frameContext is the scratch state of a single loop iteration, it must not outlive it
type frameContext struct {
	number  uint64
	display gocv.Mat //frame resized to display resolution, BGR
}

func newFrameContext(number uint64) *frameContext {
	x := frameContext{}
	x.number = number
	x.display = gocv.NewMat()
	return &x
}

func (fc *frameContext) Close() {
	fc.display.Close()
}

//inference is what a detector hands back for one dispatched frame
type inference struct {
	dets []distancing.Detection
	err  error
}

//pendingInference is a dispatched inference the pipeline stopped waiting for
type pendingInference struct {
	slot    chan inference
	release func()
}
