package image

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{G: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

func TestPipeline_DecodePNG(t *testing.T) {
	p := NewPipeline(Options{Limits: DefaultLimits()})

	out, err := p.Decode(context.Background(), encodePNG(t, 32, 16))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 16), out.Image.Bounds())
	assert.Equal(t, "png", out.Validation.Format)
	assert.Equal(t, 32, out.Validation.Width)
}

func TestPipeline_DecodeJPEG(t *testing.T) {
	p := NewPipeline(Options{Limits: DefaultLimits()})

	out, err := p.Decode(context.Background(), encodeJPEG(t, 8, 8))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", out.Validation.Format)
}

func TestPipeline_RejectsGarbage(t *testing.T) {
	p := NewPipeline(Options{Limits: DefaultLimits()})

	_, err := p.Decode(context.Background(), []byte("definitely not an image"))
	assert.Error(t, err)

	_, err = p.Decode(context.Background(), nil)
	assert.Error(t, err)
}

func TestPipeline_RejectsOversized(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxWidth = 16
	p := NewPipeline(Options{Limits: limits})

	_, err := p.Decode(context.Background(), encodePNG(t, 32, 8))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimensions exceed limit")

	limits = DefaultLimits()
	limits.MaxFileSize = 10
	p = NewPipeline(Options{Limits: limits})
	_, err = p.Decode(context.Background(), encodePNG(t, 4, 4))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file size exceeds limit")
}

func TestPipeline_FormatAllowlist(t *testing.T) {
	limits := DefaultLimits()
	limits.AllowedFormats = []string{"jpg"}
	p := NewPipeline(Options{Limits: limits})

	_, err := p.Decode(context.Background(), encodeJPEG(t, 4, 4))
	assert.NoError(t, err)

	_, err = p.Decode(context.Background(), encodePNG(t, 4, 4))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestPipeline_CancelledContext(t *testing.T) {
	p := NewPipeline(Options{Limits: DefaultLimits()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Decode(ctx, encodePNG(t, 4, 4))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_ReadLimited(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxFileSize = 8
	p := NewPipeline(Options{Limits: limits})

	data, err := p.ReadLimited(strings.NewReader("12345678"), "")
	require.NoError(t, err)
	assert.Len(t, data, 8)

	_, err = p.ReadLimited(strings.NewReader("123456789"), "")
	assert.Error(t, err)

	_, err = p.ReadLimited(nil, "")
	assert.Error(t, err)
}

func TestSecurityValidator_Prefixes(t *testing.T) {
	_, hit := suspiciousPrefix([]byte{'M', 'Z', 0x00})
	assert.True(t, hit)
	_, hit = suspiciousPrefix(encodePNG(t, 2, 2))
	assert.False(t, hit)

	assert.True(t, signatureMatches(encodePNG(t, 2, 2), "png"))
	assert.True(t, signatureMatches(encodeJPEG(t, 2, 2), "JPG"))
	assert.False(t, signatureMatches([]byte{0x00}, "jpeg"))
	assert.True(t, signatureMatches([]byte{0x00}, "tiff"))
}

func TestSecurityValidator_HintAndPixels(t *testing.T) {
	v := NewSecurityValidator(Limits{AllowedFormats: []string{"png"}, MaxPixels: 100}, nil)

	res := v.ValidateBytes(encodePNG(t, 4, 4), "gif")
	assert.False(t, res.IsValid)
	assert.Equal(t, "unapproved format", res.SecurityRisk)

	res = v.ValidateBytes(encodePNG(t, 20, 20), "")
	assert.False(t, res.IsValid)
	assert.Equal(t, "pixel count too high", res.SecurityRisk)
	assert.Equal(t, 20, res.Width)

	res = v.ValidateBytes(encodePNG(t, 5, 5), "png")
	assert.True(t, res.IsValid)
	assert.Equal(t, int64(len(encodePNG(t, 5, 5))), res.FileSize)
}

func TestFormatFromContentType(t *testing.T) {
	assert.Equal(t, "png", FormatFromContentType("image/png"))
	assert.Equal(t, "jpeg", FormatFromContentType("image/jpg"))
	assert.Equal(t, "jpeg", FormatFromContentType("image/pjpeg"))
	assert.Equal(t, "bmp", FormatFromContentType("image/x-ms-bmp"))
	assert.Equal(t, "webp", FormatFromContentType("Image/WebP; charset=binary"))
	assert.Empty(t, FormatFromContentType("application/octet-stream"))
	assert.Empty(t, FormatFromContentType(""))
}

func TestPipeline_ReadLimitedChecksDeclaredFormat(t *testing.T) {
	p := NewPipeline(Options{Limits: DefaultLimits()})
	png := encodePNG(t, 4, 4)

	data, err := p.ReadLimited(bytes.NewReader(png), "png")
	require.NoError(t, err)
	assert.Equal(t, png, data)

	_, err = p.ReadLimited(bytes.NewReader(png), "jpeg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content does not match declared format jpeg")

	_, err = p.ReadLimited(bytes.NewReader(png), "tiff")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format: tiff")

	limits := DefaultLimits()
	limits.EnableDeepScan = false
	lenient := NewPipeline(Options{Limits: limits})
	_, err = lenient.ReadLimited(bytes.NewReader(png), "jpeg")
	assert.NoError(t, err)
}

func TestPipeline_DeepScanRejectsExecutables(t *testing.T) {
	payload := append([]byte("MZ"), make([]byte, 64)...)

	_, err := NewPipeline(Options{Limits: DefaultLimits()}).Decode(context.Background(), payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "potential malicious content detected")

	limits := DefaultLimits()
	limits.EnableDeepScan = false
	_, err = NewPipeline(Options{Limits: limits}).Decode(context.Background(), payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode image config")
}
