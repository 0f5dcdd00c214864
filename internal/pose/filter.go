package pose

import "strings"

// DefaultConfidenceThreshold is the score a keypoint must strictly exceed to
// count as present.
const DefaultConfidenceThreshold = 0.3

// LandmarkSet is the per-frame subset of named landmarks judged present.
// Absent landmarks carry no coordinate; callers must check presence.
type LandmarkSet struct {
	points  [NumLandmarks]Keypoint
	present [NumLandmarks]bool
}

// Filter resolves each named landmark in frame to present or absent. A
// landmark is present iff its raw entry exists, is non-nil, has finite
// coordinates and a confidence strictly greater than threshold. Missing or
// malformed entries resolve to absent; Filter never fails.
func Filter(frame Frame, threshold float64) LandmarkSet {
	var set LandmarkSet
	for l := Landmark(0); l < NumLandmarks; l++ {
		idx := landmarkIndex[l]
		if idx >= len(frame) {
			continue
		}
		kp := frame[idx]
		if kp == nil || !kp.finite() {
			continue
		}
		// NaN confidence compares false and stays absent.
		if !(kp.Confidence > threshold) {
			continue
		}
		set.points[l] = *kp
		set.present[l] = true
	}
	return set
}

// Get returns the keypoint for l and whether it is present.
func (s LandmarkSet) Get(l Landmark) (Keypoint, bool) {
	if !l.Valid() || !s.present[l] {
		return Keypoint{}, false
	}
	return s.points[l], true
}

// Has reports whether every listed landmark is present.
func (s LandmarkSet) Has(ls ...Landmark) bool {
	for _, l := range ls {
		if !l.Valid() || !s.present[l] {
			return false
		}
	}
	return true
}

// Count returns the number of present landmarks.
func (s LandmarkSet) Count() int {
	n := 0
	for _, p := range s.present {
		if p {
			n++
		}
	}
	return n
}

// With returns a copy of s with l set to kp, bypassing the confidence check.
func (s LandmarkSet) With(l Landmark, kp Keypoint) LandmarkSet {
	if l.Valid() {
		s.points[l] = kp
		s.present[l] = true
	}
	return s
}

func (s LandmarkSet) String() string {
	var names []string
	for l := Landmark(0); l < NumLandmarks; l++ {
		if s.present[l] {
			names = append(names, l.String())
		}
	}
	return "{" + strings.Join(names, ",") + "}"
}
