package video

import (
	"github.com/chenBenjamin97/smart-distancing/pkg/distancing"
	"gocv.io/x/gocv"
)

//Consumer receives every successfully processed frame, exactly once.
//frame is only valid during the call, copy it to keep it.
type Consumer interface {
	Update(frame gocv.Mat, res distancing.Result)
}

//ConsumerFunc adapts a plain function to Consumer
type ConsumerFunc func(frame gocv.Mat, res distancing.Result)

func (f ConsumerFunc) Update(frame gocv.Mat, res distancing.Result) {
	f(frame, res)
}

//Consumers fans an update out, in order
type Consumers []Consumer

func (c Consumers) Update(frame gocv.Mat, res distancing.Result) {
	for _, consumer := range c {
		consumer.Update(frame, res)
	}
}
