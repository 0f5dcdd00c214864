// Package testutil provides shared test helpers and keypoint fixtures.
package testutil

import (
	"math"
	"testing"
	"time"

	"github.com/banshee-data/mirrorfit/internal/pose"
)

// Epoch is a fixed timestamp for deterministic tests.
var Epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertFloatPtr fails the test unless got is non-nil and within tol of want.
func AssertFloatPtr(t *testing.T, name string, got *float64, want, tol float64) {
	t.Helper()
	if got == nil {
		t.Errorf("%s = nil, want %f", name, want)
		return
	}
	if math.Abs(*got-want) > tol {
		t.Errorf("%s = %f, want %f", name, *got, want)
	}
}

// FrameBuilder assembles a 17-entry raw keypoint frame.
type FrameBuilder struct {
	frame pose.Frame
}

// NewFrame returns a builder for an empty 17-keypoint frame.
func NewFrame() *FrameBuilder {
	return &FrameBuilder{frame: make(pose.Frame, 17)}
}

// Set places a keypoint for the landmark.
func (b *FrameBuilder) Set(l pose.Landmark, x, y, confidence float64) *FrameBuilder {
	b.frame[l.Index()] = &pose.Keypoint{X: x, Y: y, Confidence: confidence}
	return b
}

// Drop clears the landmark's entry.
func (b *FrameBuilder) Drop(l pose.Landmark) *FrameBuilder {
	b.frame[l.Index()] = nil
	return b
}

// Frame returns a copy of the assembled frame.
func (b *FrameBuilder) Frame() pose.Frame {
	out := make(pose.Frame, len(b.frame))
	for i, kp := range b.frame {
		if kp != nil {
			c := *kp
			out[i] = &c
		}
	}
	return out
}

// Standing returns an upright subject: shoulders 40px apart, nose at
// (100,50), hips at y=200 and ankles at y=300, all at confidence 0.9.
func Standing() *FrameBuilder {
	return NewFrame().
		Set(pose.Nose, 100, 50, 0.9).
		Set(pose.LeftShoulder, 80, 100, 0.9).
		Set(pose.RightShoulder, 120, 100, 0.9).
		Set(pose.LeftHip, 85, 200, 0.9).
		Set(pose.RightHip, 115, 200, 0.9).
		Set(pose.LeftAnkle, 85, 300, 0.9).
		Set(pose.RightAnkle, 115, 300, 0.9)
}
