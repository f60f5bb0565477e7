package video

import (
	"fmt"
	"image"
	"image/color"

	"github.com/chenBenjamin97/smart-distancing/pkg/distancing"
	"gocv.io/x/gocv"
)

var safeColor = color.RGBA{0, 255, 0, 0}
var violatingColor = color.RGBA{0, 0, 255, 0} //frames are BGR
var whiteRGB = color.RGBA{255, 255, 255, 0}

//PlotResult draws every tracked object on frame, plus a line between each pair closer than thresholdCm
func PlotResult(frame *gocv.Mat, res distancing.Result, thresholdCm float64) {
	for i, obj := range res.Objects {
		for j := i + 1; j < len(res.Objects); j++ {
			if res.Distances.At(i, j) < thresholdCm {
				c1, c2 := obj.Center(), res.Objects[j].Center()
				gocv.Line(frame, image.Pt(int(c1.X), int(c1.Y)), image.Pt(int(c2.X), int(c2.Y)), violatingColor, 2)
			}
		}
	}

	for _, obj := range res.Objects {
		plotObjectOnFrame(frame, obj)
	}

	summary := fmt.Sprintf("Persons: %d  Violations: %d", len(res.Objects), res.Violations())
	gocv.PutText(frame, summary, image.Pt(10, 20), gocv.FontHersheyPlain, 1.2, whiteRGB, 2)
}

//plotObjectOnFrame plots given bounding box and writes its id and closest distance above it
func plotObjectOnFrame(frame *gocv.Mat, obj distancing.ScoredObject) {
	plotColor := safeColor
	if obj.Violating {
		plotColor = violatingColor
	}

	b := obj.BBoxReal
	boundingBoxRect := image.Rect(int(b[0]), int(b[1]), int(b[2]), int(b[3]))
	gocv.Rectangle(frame, boundingBoxRect, plotColor, 2)

	text := obj.ID
	if obj.MinDistanceCm != distancing.NoNeighbour {
		text = fmt.Sprintf("%s %.0fcm", obj.ID, obj.MinDistanceCm)
	}

	startPoint := image.Pt(boundingBoxRect.Min.X, boundingBoxRect.Min.Y-5)
	textSize := gocv.GetTextSize(text, gocv.FontHersheyPlain, 1, 1)
	textBackgroundRect := image.Rect(startPoint.X, startPoint.Y-textSize.Y-4, startPoint.X+textSize.X+4, startPoint.Y+4)

	gocv.Rectangle(frame, textBackgroundRect, plotColor, -1) //thickness -1 == filled rectangle
	gocv.PutText(frame, text, startPoint, gocv.FontHersheyPlain, 1, whiteRGB, 1)
}
