// Package pose holds the per-frame keypoint types produced by an external
// single-person pose estimator and the confidence filter that turns a raw
// keypoint frame into a set of named landmarks.
package pose

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// Keypoint is one detected landmark in source-frame pixel coordinates.
// Confidence is treated as an opaque ordering value; some models exceed 1.
type Keypoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"score"`
}

// Point returns the keypoint position as a planar point.
func (k Keypoint) Point() r2.Point {
	return r2.Point{X: k.X, Y: k.Y}
}

func (k Keypoint) finite() bool {
	return !math.IsNaN(k.X) && !math.IsInf(k.X, 0) &&
		!math.IsNaN(k.Y) && !math.IsInf(k.Y, 0)
}

// Frame is the raw ordered keypoint sequence for one video frame. Entries may
// be nil and the slice may be shorter than the model's keypoint count.
type Frame []*Keypoint

// Landmark names an anatomical keypoint used by the measurement pipeline.
type Landmark int

const (
	Nose Landmark = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle

	NumLandmarks
)

// landmarkIndex maps each Landmark to its position in the COCO-17 keypoint
// layout. Elbows and wrists (7-10) are not used.
var landmarkIndex = [NumLandmarks]int{
	Nose:          0,
	LeftEye:       1,
	RightEye:      2,
	LeftEar:       3,
	RightEar:      4,
	LeftShoulder:  5,
	RightShoulder: 6,
	LeftHip:       11,
	RightHip:      12,
	LeftKnee:      13,
	RightKnee:     14,
	LeftAnkle:     15,
	RightAnkle:    16,
}

var landmarkNames = [NumLandmarks]string{
	Nose:          "nose",
	LeftEye:       "left_eye",
	RightEye:      "right_eye",
	LeftEar:       "left_ear",
	RightEar:      "right_ear",
	LeftShoulder:  "left_shoulder",
	RightShoulder: "right_shoulder",
	LeftHip:       "left_hip",
	RightHip:      "right_hip",
	LeftKnee:      "left_knee",
	RightKnee:     "right_knee",
	LeftAnkle:     "left_ankle",
	RightAnkle:    "right_ankle",
}

// Landmarks lists every named landmark in index-table order.
func Landmarks() []Landmark {
	out := make([]Landmark, NumLandmarks)
	for i := range out {
		out[i] = Landmark(i)
	}
	return out
}

// Valid reports whether l is one of the named landmarks.
func (l Landmark) Valid() bool {
	return l >= 0 && l < NumLandmarks
}

// Index returns the landmark's position in a raw Frame, or -1 if l is not a
// named landmark.
func (l Landmark) Index() int {
	if !l.Valid() {
		return -1
	}
	return landmarkIndex[l]
}

func (l Landmark) String() string {
	if !l.Valid() {
		return fmt.Sprintf("landmark(%d)", int(l))
	}
	return landmarkNames[l]
}
