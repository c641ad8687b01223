package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"DROWSY_DETECTOR/go-backend/internal/drowsiness"
)

// DetectMethod is the landmark model RPC. The request carries a JPEG encoded
// grayscale frame; the response lists faces, each a list of 68 [x, y] pairs.
const DetectMethod = "/landmarks.v1.LandmarkService/Detect"

type LandmarkClient struct {
	conn *grpc.ClientConn
	url  string
}

func NewLandmarkClient(url string, log *logrus.Logger, opts ...grpc.DialOption) (*LandmarkClient, error) {
	log.WithField("url", url).Info("Connecting to landmark gRPC")

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(50*1024*1024),
			grpc.MaxCallSendMsgSize(50*1024*1024),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),
	}, opts...)

	conn, err := grpc.Dial(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not connect to landmark gRPC server at %s: %s", url, err)
	}

	log.WithField("url", url).Info("Landmark gRPC client ready")

	return &LandmarkClient{
		conn: conn,
		url:  url,
	}, nil
}

// Detect sends one grayscale frame and returns the landmarks of every face.
func (lc *LandmarkClient) Detect(ctx context.Context, grayJPEG []byte) ([]drowsiness.FaceLandmarks, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp := &structpb.ListValue{}
	if err := lc.conn.Invoke(ctx, DetectMethod, wrapperspb.Bytes(grayJPEG), resp); err != nil {
		return nil, fmt.Errorf("could not detect landmarks: %w", err)
	}
	return DecodeFaces(resp)
}

func (lc *LandmarkClient) HealthCheck() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(lc.conn).Check(ctx, &healthpb.HealthCheckRequest{})
	return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
}

func (lc *LandmarkClient) Close() error {
	if lc.conn != nil {
		return lc.conn.Close()
	}
	return nil
}

// DecodeFaces converts the wire list into landmark sets.
func DecodeFaces(list *structpb.ListValue) ([]drowsiness.FaceLandmarks, error) {
	faces := make([]drowsiness.FaceLandmarks, 0, len(list.GetValues()))
	for i, fv := range list.GetValues() {
		points := fv.GetListValue().GetValues()
		if len(points) != drowsiness.LandmarkCount {
			return nil, fmt.Errorf("face %d: expected %d landmarks, got %d", i, drowsiness.LandmarkCount, len(points))
		}

		var face drowsiness.FaceLandmarks
		for j, pv := range points {
			xy := pv.GetListValue().GetValues()
			if len(xy) != 2 {
				return nil, fmt.Errorf("face %d point %d: expected [x, y]", i, j)
			}
			face[j] = drowsiness.Point{X: xy[0].GetNumberValue(), Y: xy[1].GetNumberValue()}
		}
		faces = append(faces, face)
	}
	return faces, nil
}

// EncodeFaces is the inverse of DecodeFaces, used by landmark service fakes.
func EncodeFaces(faces []drowsiness.FaceLandmarks) *structpb.ListValue {
	list := &structpb.ListValue{}
	for _, face := range faces {
		points := &structpb.ListValue{}
		for _, p := range face {
			points.Values = append(points.Values, structpb.NewListValue(&structpb.ListValue{
				Values: []*structpb.Value{structpb.NewNumberValue(p.X), structpb.NewNumberValue(p.Y)},
			}))
		}
		list.Values = append(list.Values, structpb.NewListValue(points))
	}
	return list
}
