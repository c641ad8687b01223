package stream

import (
	"context"
	"errors"
	"io"
)

const (
	Boundary    = "frame"
	ContentType = "multipart/x-mixed-replace; boundary=" + Boundary
)

var partHeader = []byte("--" + Boundary + "\r\nContent-Type: image/jpeg\r\n\r\n")

// Chunk wraps one JPEG image as a multipart part.
func Chunk(jpeg []byte) []byte {
	out := make([]byte, 0, len(partHeader)+len(jpeg)+2)
	out = append(out, partHeader...)
	out = append(out, jpeg...)
	return append(out, '\r', '\n')
}

// Serve copies frames from sub to w until the source is exhausted, the
// consumer goes away or a write fails. flush may be nil.
func Serve(ctx context.Context, w io.Writer, flush func(), sub *Subscription) error {
	defer sub.Cancel()

	for {
		frame, err := sub.Next(ctx)
		if errors.Is(err, ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := w.Write(Chunk(frame)); err != nil {
			return err
		}
		if flush != nil {
			flush()
		}
	}
}
