package utils

import "time"

//MaxBoxArea is the biggest normalized area (w*h) a person box may cover, anything bigger is a false detection
const MaxBoxArea = 0.25

//DefaultAssumedHeightCm is the assumed real height of a person, used to map pixels to centimeters
const DefaultAssumedHeightCm = 170.0

//DefaultDistThresholdCm is the distance under which two persons are considered too close
const DefaultDistThresholdCm = 150.0

//DefaultMaxTrackFrame is how many consecutive frames a track may be missed before it is evicted
const DefaultMaxTrackFrame = 5

//DefaultNMSThreshold is the default overlap ratio above which two boxes are considered duplicates
const DefaultNMSThreshold = 0.98

//DefaultInferenceTimeout is how long the pipeline waits for a single frame's detections
const DefaultInferenceTimeout = 5 * time.Second

//DefaultResolution is the display resolution frames are resized to
const DefaultResolution = "640,480"

//DefaultImageSize is the detector input size
const DefaultImageSize = "300,300"

//PersonClassID is the COCO class id of a person
const PersonClassID = 1

//VideoExtensions is a list of file extensions the monitor lists as playable videos
var VideoExtensions = []string{".mp4", ".avi", ".mkv", ".mov"}
