package drowsiness

// Ratio thresholds separating open, drowsy and closed eyes.
const (
	OpenThreshold   = 0.25
	ClosedThreshold = 0.21
)

type EyeState int

const (
	Closed EyeState = iota
	Drowsy
	Open
)

func (s EyeState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Drowsy:
		return "drowsy"
	case Open:
		return "open"
	default:
		return "unknown"
	}
}

// ClassifyEye maps an eye aspect ratio to an EyeState.
func ClassifyEye(ratio float64) EyeState {
	if ratio > OpenThreshold {
		return Open
	} else if ratio > ClosedThreshold {
		return Drowsy
	}
	return Closed
}

// ClassifyFace classifies both eyes of a face.
func ClassifyFace(face *FaceLandmarks) (left, right EyeState, err error) {
	lr, err := EyeAspectRatio(face.LeftEye())
	if err != nil {
		return Closed, Closed, err
	}
	rr, err := EyeAspectRatio(face.RightEye())
	if err != nil {
		return Closed, Closed, err
	}
	return ClassifyEye(lr), ClassifyEye(rr), nil
}
