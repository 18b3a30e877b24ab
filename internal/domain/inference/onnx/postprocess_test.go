package onnx

import (
	"context"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pose-stream-server-go/internal/domain/inference"
)

func TestAnchorCount(t *testing.T) {
	assert.Equal(t, 8400, anchorCount(640))
	assert.Equal(t, 2100, anchorCount(320))
}

// fakeOutput builds a channel-major pose tensor with the given boxes
// (cx, cy, w, h, score) at consecutive anchors.
func fakeOutput(anchors int, boxes ...[5]float32) []float32 {
	out := make([]float32, poseChannels*anchors)
	for i, b := range boxes {
		for c := 0; c < 5; c++ {
			out[c*anchors+i] = b[c]
		}
		for k := 0; k < numKeypoints; k++ {
			out[(5+k*3)*anchors+i] = b[0]
			out[(6+k*3)*anchors+i] = b[1]
			out[(7+k*3)*anchors+i] = 0.5
		}
	}
	return out
}

var identity = letterbox{scale: 1, srcW: 640, srcH: 640}

func TestDecodePose_FiltersAndSuppresses(t *testing.T) {
	out := fakeOutput(16,
		[5]float32{100, 100, 50, 50, 0.9},
		[5]float32{102, 101, 50, 50, 0.8}, // overlaps the first
		[5]float32{400, 400, 40, 40, 0.7},
		[5]float32{300, 300, 40, 40, 0.1}, // below confidence
	)
	dets := decodePose(out, 16, inference.Params{Confidence: 0.25, IOU: 0.45, MaxDetections: 10}, identity)

	require.Len(t, dets, 2)
	assert.Equal(t, []float32{75, 75, 125, 125, 0.9, 0}, dets[0].Box)
	assert.InDelta(t, 0.7, dets[1].Box[4], 1e-6)
	require.Len(t, dets[0].Keypoints, numKeypoints)
	assert.Equal(t, [3]float32{100, 100, 0.5}, dets[0].Keypoints[0])
}

func TestDecodePose_MaxDetections(t *testing.T) {
	out := fakeOutput(8,
		[5]float32{50, 50, 20, 20, 0.9},
		[5]float32{150, 150, 20, 20, 0.8},
		[5]float32{250, 250, 20, 20, 0.7},
	)
	dets := decodePose(out, 8, inference.Params{Confidence: 0.25, IOU: 0.45, MaxDetections: 2}, identity)
	require.Len(t, dets, 2)
	assert.InDelta(t, 0.9, dets[0].Box[4], 1e-6)
	assert.InDelta(t, 0.8, dets[1].Box[4], 1e-6)
}

func TestDecodePose_ShortOutput(t *testing.T) {
	assert.Nil(t, decodePose(make([]float32, 10), 8, inference.DefaultParams(), identity))
}

func TestLetterbox_MapsBackToSource(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	canvas, lb := fitLetterbox(src, 64)

	assert.Equal(t, 64, canvas.Bounds().Dx())
	assert.Equal(t, 64, canvas.Bounds().Dy())
	assert.InDelta(t, 0.32, lb.scale, 1e-6)
	assert.Equal(t, float32(0), lb.padX)
	assert.Equal(t, float32(16), lb.padY)

	// canvas centre maps to source centre
	assert.InDelta(t, 100, lb.x(32), 1e-3)
	assert.InDelta(t, 50, lb.y(32), 1e-3)
	// padding clamps to the source edge
	assert.Equal(t, float32(0), lb.y(0))
	assert.Equal(t, float32(100), lb.y(64))

	buf := make([]float32, 3*64*64)
	fillCHW(canvas, 64, buf)
	assert.InDelta(t, 114.0/255.0, buf[0], 1e-6)
}

func TestEnsureModel_Downloads(t *testing.T) {
	var requested string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Path
		if r.URL.Path != "/models/yolo11n-pose.onnx" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("onnx-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := NewFactory(Config{DownloadURL: srv.URL + "/models/%s"}, nil)

	path := filepath.Join(dir, "nested", "yolo11n-pose.onnx")
	require.NoError(t, f.ensureModel(context.Background(), path))
	assert.Equal(t, "/models/yolo11n-pose.onnx", requested)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "onnx-bytes", string(data))

	// already present: no request
	requested = ""
	require.NoError(t, f.ensureModel(context.Background(), path))
	assert.Empty(t, requested)
}

func TestEnsureModel_Failures(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "yolo11x-pose.onnx")

	err := NewFactory(Config{}, nil).ensureModel(context.Background(), path)
	assert.Error(t, err)

	err = NewFactory(Config{DownloadURL: srv.URL}, nil).ensureModel(context.Background(), path)
	assert.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(path + ".part")
	assert.True(t, os.IsNotExist(statErr))
}

type fakeThreads struct {
	intra, inter       int
	intraErr, interErr error
}

func (f *fakeThreads) SetIntraOpNumThreads(n int) error { f.intra = n; return f.intraErr }
func (f *fakeThreads) SetInterOpNumThreads(n int) error { f.inter = n; return f.interErr }

func TestSetThreads(t *testing.T) {
	ok := &fakeThreads{}
	require.NoError(t, setThreads(ok, 8, 1))
	assert.Equal(t, 8, ok.intra)
	assert.Equal(t, 1, ok.inter)

	refused := errors.New("invalid value")
	bad := &fakeThreads{inter: -1, intraErr: refused, interErr: refused}
	err := setThreads(bad, 0, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, refused)
	assert.Contains(t, err.Error(), "intra-op threads=0")
	assert.Contains(t, err.Error(), "inter-op threads=0")
	assert.Equal(t, 0, bad.inter)
}
