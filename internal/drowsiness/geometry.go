package drowsiness

import (
	"errors"
	"math"
)

// LandmarkCount is the size of the standard 68-point face layout.
const LandmarkCount = 68

// Point is a 2D landmark coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EyeLandmarks holds six eye points in 68-point order: p0 outer corner,
// p1 and p2 upper lid, p3 inner corner, p4 and p5 lower lid. p1 sits above p5
// and p2 above p4.
type EyeLandmarks [6]Point

// FaceLandmarks is one face returned by the landmark model.
type FaceLandmarks [LandmarkCount]Point

var ErrDegenerateEye = errors.New("eye landmarks have zero horizontal width")

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// EyeAspectRatio computes (|p1-p5| + |p2-p4|) / (2 * |p0-p3|).
func EyeAspectRatio(eye EyeLandmarks) (float64, error) {
	width := Distance(eye[0], eye[3])
	if width == 0 {
		return 0, ErrDegenerateEye
	}
	up := Distance(eye[1], eye[5]) + Distance(eye[2], eye[4])
	return up / (2.0 * width), nil
}

const (
	leftEyeStart  = 36
	rightEyeStart = 42
)

func (f *FaceLandmarks) LeftEye() EyeLandmarks {
	return f.eye(leftEyeStart)
}

func (f *FaceLandmarks) RightEye() EyeLandmarks {
	return f.eye(rightEyeStart)
}

func (f *FaceLandmarks) eye(start int) EyeLandmarks {
	var e EyeLandmarks
	copy(e[:], f[start:start+6])
	return e
}
