package onnx

import (
	"image"
	"image/color"
	"sort"

	"github.com/disintegration/imaging"

	"pose-stream-server-go/internal/domain/inference"
)

const (
	// box(4) + score(1) + 17 keypoints * 3
	poseChannels = 56
	numKeypoints = 17
)

var padColor = color.NRGBA{R: 114, G: 114, B: 114, A: 255}

// letterbox records how a source image was fitted into the square input.
type letterbox struct {
	scale      float32
	padX, padY float32
	srcW, srcH float32
}

// anchorCount is the number of prediction columns for a square input of size s.
func anchorCount(s int) int {
	return (s/8)*(s/8) + (s/16)*(s/16) + (s/32)*(s/32)
}

// fitLetterbox resizes img preserving aspect ratio and centres it on a
// size x size grey canvas.
func fitLetterbox(img image.Image, size int) (*image.NRGBA, letterbox) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	scale := min(float32(size)/float32(w), float32(size)/float32(h))
	nw := max(1, int(float32(w)*scale+0.5))
	nh := max(1, int(float32(h)*scale+0.5))

	resized := imaging.Resize(img, nw, nh, imaging.Linear)
	canvas := imaging.New(size, size, padColor)
	padX := (size - nw) / 2
	padY := (size - nh) / 2
	canvas = imaging.Paste(canvas, resized, image.Pt(padX, padY))

	return canvas, letterbox{
		scale: scale,
		padX:  float32(padX),
		padY:  float32(padY),
		srcW:  float32(w),
		srcH:  float32(h),
	}
}

// fillCHW writes img as planar RGB scaled to [0,1].
func fillCHW(img *image.NRGBA, size int, dst []float32) {
	plane := size * size
	for y := 0; y < size; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < size; x++ {
			i := y*size + x
			p := row[x*4:]
			dst[i] = float32(p[0]) / 255.0
			dst[plane+i] = float32(p[1]) / 255.0
			dst[2*plane+i] = float32(p[2]) / 255.0
		}
	}
}

func (l letterbox) x(v float32) float32 {
	return clamp((v-l.padX)/l.scale, 0, l.srcW)
}

func (l letterbox) y(v float32) float32 {
	return clamp((v-l.padY)/l.scale, 0, l.srcH)
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type candidate struct {
	x1, y1, x2, y2 float32
	score          float32
	kpts           [numKeypoints][3]float32
}

// decodePose turns the channel-major (1, 56, anchors) output into detections
// in source image coordinates, applying confidence filtering, NMS and the
// max detection cap.
func decodePose(out []float32, anchors int, params inference.Params, lb letterbox) []inference.RawDetection {
	if len(out) < poseChannels*anchors {
		return nil
	}
	at := func(c, i int) float32 { return out[c*anchors+i] }

	conf := float32(params.Confidence)
	cands := make([]candidate, 0, 64)
	for i := 0; i < anchors; i++ {
		score := at(4, i)
		if score < conf {
			continue
		}
		cx, cy, w, h := at(0, i), at(1, i), at(2, i), at(3, i)
		c := candidate{
			x1:    cx - w/2,
			y1:    cy - h/2,
			x2:    cx + w/2,
			y2:    cy + h/2,
			score: score,
		}
		for k := 0; k < numKeypoints; k++ {
			c.kpts[k] = [3]float32{at(5+k*3, i), at(6+k*3, i), at(7+k*3, i)}
		}
		cands = append(cands, c)
	}

	kept := nms(cands, float32(params.IOU))
	if params.MaxDetections > 0 && len(kept) > params.MaxDetections {
		kept = kept[:params.MaxDetections]
	}

	dets := make([]inference.RawDetection, 0, len(kept))
	for _, c := range kept {
		kpts := make([][3]float32, numKeypoints)
		for k := range c.kpts {
			kpts[k] = [3]float32{lb.x(c.kpts[k][0]), lb.y(c.kpts[k][1]), c.kpts[k][2]}
		}
		dets = append(dets, inference.RawDetection{
			// trailing 0 is the class column; pose models have a single class
			Box:       []float32{lb.x(c.x1), lb.y(c.y1), lb.x(c.x2), lb.y(c.y2), c.score, 0},
			Keypoints: kpts,
		})
	}
	return dets
}

// nms keeps the highest scoring boxes, dropping any whose IoU with an already
// kept box exceeds threshold. The result is ordered by descending score.
func nms(cands []candidate, threshold float32) []candidate {
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })

	kept := make([]candidate, 0, len(cands))
	for _, c := range cands {
		suppressed := false
		for _, k := range kept {
			if iou(c, k) > threshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, c)
		}
	}
	return kept
}

func iou(a, b candidate) float32 {
	ix1, iy1 := max(a.x1, b.x1), max(a.y1, b.y1)
	ix2, iy2 := min(a.x2, b.x2), min(a.y2, b.y2)
	iw, ih := ix2-ix1, iy2-iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := (a.x2-a.x1)*(a.y2-a.y1) + (b.x2-b.x1)*(b.y2-b.y1) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
