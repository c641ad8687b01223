package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"DROWSY_DETECTOR/go-backend/internal/drowsiness"
)

// Overlay placement of the status label.
var (
	LabelOrigin    = image.Pt(100, 100)
	LabelFont      = gocv.FontHersheySimplex
	LabelScale     = 1.2
	LabelThickness = 3
)

// Frame is a BGR image captured from the camera.
type Frame struct {
	img     gocv.Mat
	quality int
}

// NewFrame wraps img; the frame takes ownership of the Mat.
func NewFrame(img gocv.Mat, jpegQuality int) *Frame {
	return &Frame{img: img, quality: jpegQuality}
}

// GrayJPEG returns the grayscale image the landmark model expects.
func (f *Frame) GrayJPEG() ([]byte, error) {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(f.img, &gray, gocv.ColorBGRToGray)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, gray)
	if err != nil {
		return nil, fmt.Errorf("encode grayscale frame: %w", err)
	}
	defer buf.Close()
	return copyBytes(buf.GetBytes()), nil
}

// Annotate draws the status label onto the frame.
func (f *Frame) Annotate(status string, c drowsiness.Color) {
	gocv.PutText(&f.img, status, LabelOrigin, LabelFont, LabelScale, RGBA(c), LabelThickness)
}

// JPEG encodes the (possibly annotated) frame for streaming.
func (f *Frame) JPEG() ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, f.img, []int{gocv.IMWriteJpegQuality, f.quality})
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()
	return copyBytes(buf.GetBytes()), nil
}

func (f *Frame) Close() error {
	return f.img.Close()
}

// RGBA converts a label colour for gocv drawing calls.
func RGBA(c drowsiness.Color) color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

// GetBytes aliases native memory freed by Close.
func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
