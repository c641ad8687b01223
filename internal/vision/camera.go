// Package vision wraps gocv capture and drawing for the frame loop.
package vision

import (
	"fmt"
	"strconv"
	"sync"

	"gocv.io/x/gocv"

	"DROWSY_DETECTOR/go-backend/internal/services"
)

// Camera reads frames from a webcam index, file or stream URL.
type Camera struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	quality int
}

// OpenCamera opens device. A numeric device selects a webcam index, anything
// else is handed to OpenCV as a path or URL.
func OpenCamera(device string, jpegQuality int) (*Camera, error) {
	var source interface{} = device
	if id, err := strconv.Atoi(device); err == nil {
		source = id
	}

	capture, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return nil, fmt.Errorf("open camera %q: %w", device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("camera %q is not available", device)
	}
	return &Camera{capture: capture, quality: jpegQuality}, nil
}

// Read grabs the next frame. ok is false once the device stops producing
// images or the camera was closed.
func (c *Camera) Read() (services.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, false
	}

	img := gocv.NewMat()
	if ok := c.capture.Read(&img); !ok || img.Empty() {
		img.Close()
		return nil, false
	}
	return NewFrame(img, c.quality), true
}

// Close releases the device. Further reads report exhaustion.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	return err
}
