package rpc

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/mirrorfit/internal/measure"
	"github.com/banshee-data/mirrorfit/internal/pose"
	"github.com/banshee-data/mirrorfit/internal/session"
	"github.com/banshee-data/mirrorfit/internal/testutil"
)

type reply struct {
	SessionID       string   `json:"session_id"`
	Seq             uint64   `json:"seq"`
	Calibrated      bool     `json:"calibrated"`
	UnitsPerPixel   *float64 `json:"units_per_pixel"`
	ShoulderWidthPx *float64 `json:"shoulder_width_px"`
	ShoulderWidth   *float64 `json:"shoulder_width_unit"`
	HeightPx        *float64 `json:"height_px"`
	PostureScore    *int     `json:"posture_score"`
	PostureGrade    string   `json:"posture_grade"`
}

func decodeReply(t *testing.T, s *structpb.Struct) reply {
	t.Helper()
	var r reply
	require.NoError(t, FromStruct(s, &r))
	return r
}

func newTestClient(t *testing.T, cfg measure.Config) (*Client, *session.Session) {
	t.Helper()
	sess := session.New(measure.NewEngine(cfg), session.WithID("rpc-session"))

	lis := bufconn.Listen(1 << 20)
	srv := NewServer("bufconn", NewService(sess))
	require.NoError(t, srv.serve(lis))
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewClient(conn), sess
}

func TestEvaluateFrame(t *testing.T) {
	client, sess := newTestClient(t, measure.DefaultConfig())
	ctx := context.Background()

	out, err := client.EvaluateFrame(ctx, testutil.Standing().Frame())
	require.NoError(t, err)

	r := decodeReply(t, out)
	assert.Equal(t, "rpc-session", r.SessionID)
	assert.Equal(t, uint64(1), r.Seq)
	testutil.AssertFloatPtr(t, "shoulder_width_px", r.ShoulderWidthPx, 40, 0)
	testutil.AssertFloatPtr(t, "height_px", r.HeightPx, 287.5, 0)
	require.NotNil(t, r.PostureScore)
	assert.Equal(t, 100, *r.PostureScore)
	assert.Equal(t, measure.GradeGood, r.PostureGrade)
	assert.Nil(t, r.ShoulderWidth)

	assert.Equal(t, uint64(1), sess.Latest().Seq)
}

func TestEvaluateFrame_LowConfidenceShoulder(t *testing.T) {
	client, _ := newTestClient(t, measure.DefaultConfig())

	frame := testutil.Standing().Set(pose.RightShoulder, 120, 100, 0.2).Frame()
	out, err := client.EvaluateFrame(context.Background(), frame)
	require.NoError(t, err)

	r := decodeReply(t, out)
	assert.Nil(t, r.ShoulderWidthPx)
	assert.Nil(t, r.PostureScore)
	testutil.AssertFloatPtr(t, "height_px", r.HeightPx, 287.5, 0)
}

func TestEvaluateFrame_EmptyFrame(t *testing.T) {
	client, _ := newTestClient(t, measure.DefaultConfig())

	out, err := client.EvaluateFrame(context.Background(), nil)
	require.NoError(t, err)
	r := decodeReply(t, out)
	assert.Nil(t, r.ShoulderWidthPx)
	assert.Nil(t, r.HeightPx)
}

func TestEvaluateFrame_InvalidRequest(t *testing.T) {
	client, _ := newTestClient(t, measure.DefaultConfig())
	ctx := context.Background()

	tests := []struct {
		name string
		req  map[string]interface{}
	}{
		{"missing keypoints", map[string]interface{}{}},
		{"keypoints not a list", map[string]interface{}{"keypoints": "nose"}},
		{"bad keypoint", map[string]interface{}{"keypoints": []interface{}{"nose"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := structpb.NewStruct(tt.req)
			require.NoError(t, err)
			_, err = client.invoke(ctx, "EvaluateFrame", in)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}

func TestCalibration(t *testing.T) {
	client, _ := newTestClient(t, measure.DefaultConfig())
	ctx := context.Background()

	// Nothing measured yet.
	_, err := client.AutoCalibrate(ctx, 0)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = client.EvaluateFrame(ctx, testutil.Standing().Frame())
	require.NoError(t, err)

	out, err := client.AutoCalibrate(ctx, 0)
	require.NoError(t, err)
	r := decodeReply(t, out)
	assert.True(t, r.Calibrated)
	testutil.AssertFloatPtr(t, "units_per_pixel", r.UnitsPerPixel, 1.0, 0)

	out, err = client.AutoCalibrate(ctx, 50)
	require.NoError(t, err)
	testutil.AssertFloatPtr(t, "units_per_pixel", decodeReply(t, out).UnitsPerPixel, 1.25, 1e-12)

	out, err = client.EvaluateFrame(ctx, testutil.Standing().Frame())
	require.NoError(t, err)
	testutil.AssertFloatPtr(t, "shoulder_width_unit", decodeReply(t, out).ShoulderWidth, 50, 1e-9)

	out, err = client.ResetCalibration(ctx)
	require.NoError(t, err)
	assert.False(t, decodeReply(t, out).Calibrated)

	out, err = client.GetCalibration(ctx)
	require.NoError(t, err)
	r = decodeReply(t, out)
	assert.False(t, r.Calibrated)
	assert.Nil(t, r.UnitsPerPixel)
}

func TestSetCalibration(t *testing.T) {
	client, _ := newTestClient(t, measure.DefaultConfig())
	ctx := context.Background()

	tests := []struct {
		name string
		req  map[string]interface{}
		code codes.Code
		want float64
	}{
		{"factor", map[string]interface{}{"units_per_pixel": 0.25}, codes.OK, 0.25},
		{"text", map[string]interface{}{"text": "0.2345"}, codes.OK, 0.2345},
		{"reference", map[string]interface{}{"known_width": 30.0, "measured_px": 60.0}, codes.OK, 0.5},
		{"negative factor", map[string]interface{}{"units_per_pixel": -2.0}, codes.InvalidArgument, 0},
		{"factor as string", map[string]interface{}{"units_per_pixel": "0.5"}, codes.InvalidArgument, 0},
		{"garbage text", map[string]interface{}{"text": "abc"}, codes.InvalidArgument, 0},
		{"text as number", map[string]interface{}{"text": 0.5}, codes.InvalidArgument, 0},
		{"zero measured", map[string]interface{}{"known_width": 30.0, "measured_px": 0.0}, codes.InvalidArgument, 0},
		{"empty", map[string]interface{}{}, codes.InvalidArgument, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.ResetCalibration(ctx)
			require.NoError(t, err)

			out, err := client.SetCalibration(ctx, tt.req)
			require.Equal(t, tt.code, status.Code(err), "err = %v", err)
			if tt.code != codes.OK {
				cal, err := client.GetCalibration(ctx)
				require.NoError(t, err)
				assert.False(t, decodeReply(t, cal).Calibrated)
				return
			}
			testutil.AssertFloatPtr(t, "units_per_pixel", decodeReply(t, out).UnitsPerPixel, tt.want, 1e-12)
		})
	}
}

func TestAutoCalibrate_ZeroReference(t *testing.T) {
	svc := NewService(session.New(measure.NewEngine(measure.DefaultConfig())))
	in, err := structpb.NewStruct(map[string]interface{}{"reference_width": 0.0})
	require.NoError(t, err)

	_, err = svc.AutoCalibrate(context.Background(), in)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestReset(t *testing.T) {
	client, _ := newTestClient(t, measure.DefaultConfig())
	ctx := context.Background()

	_, err := client.EvaluateFrame(ctx, testutil.Standing().Frame())
	require.NoError(t, err)

	out, err := client.Reset(ctx)
	require.NoError(t, err)
	assert.Nil(t, decodeReply(t, out).HeightPx)

	out, err = client.GetMeasurement(ctx)
	require.NoError(t, err)
	r := decodeReply(t, out)
	assert.Equal(t, uint64(1), r.Seq)
	assert.Nil(t, r.ShoulderWidthPx)
}

func TestToStatus(t *testing.T) {
	assert.Equal(t, codes.InvalidArgument, status.Code(toStatus(measure.ErrInvalidInput)))
	assert.Equal(t, codes.FailedPrecondition, status.Code(toStatus(measure.ErrNoMeasurement)))
	assert.Equal(t, codes.Internal, status.Code(toStatus(assert.AnError)))
}

func TestServer_StartStop(t *testing.T) {
	sess := session.New(measure.NewEngine(measure.DefaultConfig()))
	srv := NewServer("127.0.0.1:0", NewService(sess))
	assert.Nil(t, srv.Addr())

	require.NoError(t, srv.Start())
	assert.NotNil(t, srv.Addr())
	assert.Error(t, srv.Start(), "second start is rejected")

	srv.Stop()
	srv.Stop()
}
