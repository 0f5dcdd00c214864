// Package rpc exposes the measurement session as a gRPC service.
//
// Messages are google.protobuf.Struct values carrying the same JSON shapes
// as the HTTP API, so no generated stubs are required on either side.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/mirrorfit/internal/measure"
	"github.com/banshee-data/mirrorfit/internal/pose"
	"github.com/banshee-data/mirrorfit/internal/session"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "mirrorfit.v1.Measurement"

// MeasurementServer is the server API for the measurement service.
type MeasurementServer interface {
	EvaluateFrame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetMeasurement(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCalibration(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetCalibration(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AutoCalibrate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResetCalibration(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reset(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(method string, call func(MeasurementServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(MeasurementServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(MeasurementServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the measurement service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MeasurementServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("EvaluateFrame", MeasurementServer.EvaluateFrame),
		unaryHandler("GetMeasurement", MeasurementServer.GetMeasurement),
		unaryHandler("GetCalibration", MeasurementServer.GetCalibration),
		unaryHandler("SetCalibration", MeasurementServer.SetCalibration),
		unaryHandler("AutoCalibrate", MeasurementServer.AutoCalibrate),
		unaryHandler("ResetCalibration", MeasurementServer.ResetCalibration),
		unaryHandler("Reset", MeasurementServer.Reset),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterService registers the measurement service with the server.
func RegisterService(grpcServer *grpc.Server, svc MeasurementServer) {
	grpcServer.RegisterService(&ServiceDesc, svc)
}

// Service implements MeasurementServer over a Session.
type Service struct {
	sess *session.Session
}

var _ MeasurementServer = (*Service)(nil)

func NewService(sess *session.Session) *Service {
	return &Service{sess: sess}
}

type measurementReply struct {
	SessionID string `json:"session_id"`
	Seq       uint64 `json:"seq"`
	measure.Output
}

type calibrationReply struct {
	Calibrated    bool     `json:"calibrated"`
	UnitsPerPixel *float64 `json:"units_per_pixel"`
}

// EvaluateFrame evaluates {"keypoints": [...]} and returns the measurement.
func (s *Service) EvaluateFrame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, ok := req.GetFields()["keypoints"].GetKind().(*structpb.Value_ListValue); !ok {
		return nil, status.Error(codes.InvalidArgument, "keypoints must be a list")
	}
	raw, err := req.MarshalJSON()
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "failed to read frame: %v", err)
	}
	frame, err := pose.DecodeFrame(raw)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return measurementStruct(s.sess.Evaluate(frame))
}

func (s *Service) GetMeasurement(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return measurementStruct(s.sess.Latest())
}

func measurementStruct(snap session.Snapshot) (*structpb.Struct, error) {
	return toStruct(measurementReply{
		SessionID: snap.SessionID,
		Seq:       snap.Seq,
		Output:    snap.Output,
	})
}

func (s *Service) GetCalibration(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return calibrationStruct(s.sess.Calibration(), nil)
}

// SetCalibration accepts one of units_per_pixel, text, or known_width with
// measured_px.
func (s *Service) SetCalibration(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	switch {
	case fields["units_per_pixel"] != nil:
		k, err := numberField(req, "units_per_pixel")
		if err != nil {
			return nil, err
		}
		return calibrationStruct(s.sess.SetCalibration(k))

	case fields["text"] != nil:
		text, ok := fields["text"].GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, status.Error(codes.InvalidArgument, "text must be a string")
		}
		return calibrationStruct(s.sess.SetCalibrationText(text.StringValue))

	case fields["known_width"] != nil && fields["measured_px"] != nil:
		known, err := numberField(req, "known_width")
		if err != nil {
			return nil, err
		}
		px, err := numberField(req, "measured_px")
		if err != nil {
			return nil, err
		}
		return calibrationStruct(s.sess.SetCalibrationFromReference(known, px))
	}
	return nil, status.Error(codes.InvalidArgument, "one of units_per_pixel, text, or known_width with measured_px is required")
}

// AutoCalibrate calibrates from the latest shoulder width, optionally
// against {"reference_width": n}.
func (s *Service) AutoCalibrate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var ref float64
	if req.GetFields()["reference_width"] != nil {
		v, err := numberField(req, "reference_width")
		if err != nil {
			return nil, err
		}
		if v == 0 {
			return nil, status.Error(codes.InvalidArgument, "reference_width must be positive")
		}
		ref = v
	}
	return calibrationStruct(s.sess.AutoCalibrate(ref))
}

func (s *Service) ResetCalibration(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return calibrationStruct(s.sess.ResetCalibration(), nil)
}

func (s *Service) Reset(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.sess.Reset()
	return measurementStruct(s.sess.Latest())
}

func numberField(req *structpb.Struct, name string) (float64, error) {
	v, ok := req.GetFields()[name].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a number", name)
	}
	return v.NumberValue, nil
}

func calibrationStruct(state session.CalibrationState, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(calibrationReply{Calibrated: state.Calibrated, UnitsPerPixel: state.UnitsPerPixel})
}

// toStatus maps engine errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, measure.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, measure.ErrNoMeasurement):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// toStruct converts a JSON-tagged value into a Struct.
func toStruct(v interface{}) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode reply: %v", err)
	}
	out := new(structpb.Struct)
	if err := out.UnmarshalJSON(b); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode reply: %v", err)
	}
	return out, nil
}

// FromStruct decodes a reply into v using its JSON tags.
func FromStruct(s *structpb.Struct, v interface{}) error {
	b, err := s.MarshalJSON()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("failed to decode reply: %w", err)
	}
	return nil
}
