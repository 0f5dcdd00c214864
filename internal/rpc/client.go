package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/mirrorfit/internal/pose"
)

// Client calls the measurement service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// EvaluateFrame sends one keypoint frame.
func (c *Client) EvaluateFrame(ctx context.Context, frame pose.Frame, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if frame == nil {
		frame = pose.Frame{}
	}
	b, err := json.Marshal(map[string]pose.Frame{"keypoints": frame})
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	in := new(structpb.Struct)
	if err := in.UnmarshalJSON(b); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return c.invoke(ctx, "EvaluateFrame", in, opts...)
}

func (c *Client) GetMeasurement(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetMeasurement", nil, opts...)
}

func (c *Client) GetCalibration(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetCalibration", nil, opts...)
}

// SetCalibration sends a calibration request such as
// {"units_per_pixel": 0.5} or {"text": "0.5"}.
func (c *Client) SetCalibration(ctx context.Context, req map[string]interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode calibration: %w", err)
	}
	return c.invoke(ctx, "SetCalibration", in, opts...)
}

// AutoCalibrate calibrates from the current shoulder width. A zero
// referenceWidth uses the server's configured reference.
func (c *Client) AutoCalibrate(ctx context.Context, referenceWidth float64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	if referenceWidth != 0 {
		in.Fields["reference_width"] = structpb.NewNumberValue(referenceWidth)
	}
	return c.invoke(ctx, "AutoCalibrate", in, opts...)
}

func (c *Client) ResetCalibration(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ResetCalibration", nil, opts...)
}

func (c *Client) Reset(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Reset", nil, opts...)
}
