package pose

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// poseObject is the single-pose shape emitted by browser and python pose
// estimators: {"keypoints": [...], "score": 0.8}.
type poseObject struct {
	Keypoints Frame    `json:"keypoints"`
	Score     *float64 `json:"score,omitempty"`
}

// DecodeFrame parses a raw keypoint frame from JSON. It accepts either a bare
// array of keypoints (null entries allowed) or a pose object with a
// "keypoints" array. An empty pose list "[]" decodes to an empty frame.
func DecodeFrame(data []byte) (Frame, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty frame payload")
	}

	switch trimmed[0] {
	case '[':
		var frame Frame
		if err := json.Unmarshal(trimmed, &frame); err != nil {
			return nil, fmt.Errorf("failed to decode keypoint array: %w", err)
		}
		return frame, nil
	case '{':
		var obj poseObject
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("failed to decode pose object: %w", err)
		}
		return obj.Keypoints, nil
	default:
		return nil, fmt.Errorf("unexpected frame payload starting with %q", trimmed[0])
	}
}
