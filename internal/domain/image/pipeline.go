// Package image validates and decodes client frames.
package image

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"

	"pose-stream-server-go/internal/utils"
)

// Pipeline validates then decodes raw image bytes.
type Pipeline struct {
	validator *SecurityValidator
	logger    *utils.Logger
	limits    Limits
}

// Options configures the pipeline behaviour.
type Options struct {
	Limits Limits
	Logger *utils.Logger
}

// Output is a decoded frame plus what validation learned about it.
type Output struct {
	Image      image.Image
	Validation ValidationResult
}

// NewPipeline constructs an image pipeline.
func NewPipeline(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = utils.DefaultLogger
	}
	return &Pipeline{
		validator: NewSecurityValidator(opts.Limits, opts.Logger),
		logger:    opts.Logger,
		limits:    opts.Limits,
	}
}

// Decode validates raw and decodes it, honouring EXIF orientation.
func (p *Pipeline) Decode(ctx context.Context, raw []byte) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	validation := p.validator.ValidateBytes(raw, "")
	if !validation.IsValid {
		if validation.Error != nil {
			return nil, validation.Error
		}
		return nil, fmt.Errorf("image validation failed")
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	return &Output{Image: img, Validation: validation}, nil
}

// ReadLimited reads r up to the configured file size limit. A non-empty hint
// is the format the sender declared; it is checked against the allowlist and,
// with deep scan, against the bytes read.
func (p *Pipeline) ReadLimited(r io.Reader, hint string) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("image reader is required")
	}

	maxSize := p.limits.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultLimits().MaxFileSize
	}
	limited := &io.LimitedReader{R: r, N: maxSize + 1}

	buf := bytes.NewBuffer(make([]byte, 0, 32*1024))
	if _, err := io.Copy(buf, limited); err != nil {
		return nil, fmt.Errorf("stream image bytes: %w", err)
	}
	if limited.N <= 0 {
		return nil, fmt.Errorf("image exceeds maximum size of %d bytes", maxSize)
	}
	if hint != "" {
		if _, err := p.validator.Precheck(buf.Bytes(), hint); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
