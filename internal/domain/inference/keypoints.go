package inference

// KeypointNames is the COCO 17-point layout.
var KeypointNames = [...]string{
	"nose", "left_eye", "right_eye", "left_ear", "right_ear",
	"left_shoulder", "right_shoulder", "left_elbow", "right_elbow",
	"left_wrist", "right_wrist", "left_hip", "right_hip",
	"left_knee", "right_knee", "left_ankle", "right_ankle",
}

func toKeypoints(raw [][3]float32) []Keypoint {
	n := min(len(raw), len(KeypointNames))
	out := make([]Keypoint, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Keypoint{
			Name:       KeypointNames[i],
			X:          float64(raw[i][0]),
			Y:          float64(raw[i][1]),
			Confidence: float64(raw[i][2]),
		})
	}
	return out
}

// Transform maps raw engine rows to detections, numbered in model order.
// Rows with fewer than 5 box values are skipped.
func Transform(raw []RawDetection) []Detection {
	out := make([]Detection, 0, len(raw))
	for _, r := range raw {
		if len(r.Box) < 5 {
			continue
		}
		det := Detection{
			ID: len(out),
			BBox: BBox{
				X1:         float64(r.Box[0]),
				Y1:         float64(r.Box[1]),
				X2:         float64(r.Box[2]),
				Y2:         float64(r.Box[3]),
				Confidence: float64(r.Box[4]),
			},
			Keypoints:      toKeypoints(r.Keypoints),
			PoseConfidence: float64(r.Box[4]),
		}
		// index 5 is the class column on pose models; kept for wire compatibility
		if len(r.Box) > 5 {
			det.PoseConfidence = float64(r.Box[5])
		}
		out = append(out, det)
	}
	return out
}
