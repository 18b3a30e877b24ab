package image

import (
	"bytes"
	"fmt"
	"image"
	"mime"
	"slices"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"pose-stream-server-go/internal/utils"
)

// magic numbers of the formats the decoder registers
var magic = map[string][]byte{
	"jpeg": {0xFF, 0xD8},
	"png":  {0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A},
	"gif":  []byte("GIF8"),
	"webp": []byte("RIFF"),
	"bmp":  []byte("BM"),
}

// executables, archives and documents smuggled as frames
var suspiciousPrefixes = [][]byte{
	[]byte("MZ"),
	[]byte("%PDF"),
	{'P', 'K', 0x03, 0x04},
	{0x1F, 0x8B, 0x08},
}

func canonicalFormat(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "x-")
	switch name {
	case "jpg", "pjpeg":
		return "jpeg"
	case "ms-bmp":
		return "bmp"
	}
	return name
}

// FormatFromContentType returns the image format a Content-Type declares,
// or "" when it is not an image/* type.
func FormatFromContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	sub, ok := strings.CutPrefix(mediaType, "image/")
	if !ok {
		return ""
	}
	return canonicalFormat(sub)
}

// SecurityValidator inspects the header of a payload before anything decodes
// the pixels: size, format allowlist, dimensions and optionally a prefix scan.
type SecurityValidator struct {
	limits  Limits
	allowed []string
	logger  *utils.Logger
}

func NewSecurityValidator(limits Limits, logger *utils.Logger) *SecurityValidator {
	allowed := make([]string, 0, len(limits.AllowedFormats))
	for _, f := range limits.AllowedFormats {
		allowed = append(allowed, canonicalFormat(f))
	}
	return &SecurityValidator{limits: limits, allowed: allowed, logger: logger}
}

func (v *SecurityValidator) allows(format string) bool {
	if len(v.allowed) == 0 || format == "" {
		return true
	}
	return slices.Contains(v.allowed, canonicalFormat(format))
}

// ValidateBytes checks raw against the limits. hint is the format the caller
// claims and may be empty; the format sniffed from the header wins.
func (v *SecurityValidator) ValidateBytes(raw []byte, hint string) ValidationResult {
	if risk, err := v.Precheck(raw, hint); err != nil {
		return ValidationResult{Format: hint, FileSize: int64(len(raw)), SecurityRisk: risk, Error: err}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return ValidationResult{Format: hint, FileSize: int64(len(raw)), SecurityRisk: "corrupted image data",
			Error: fmt.Errorf("decode image config: %w", err)}
	}
	if format == "" {
		format = hint
	}

	res := ValidationResult{Format: format, Width: cfg.Width, Height: cfg.Height, FileSize: int64(len(raw))}
	if risk, err := v.checkHeader(format, cfg); err != nil {
		res.Error, res.SecurityRisk = err, risk
		return res
	}
	res.IsValid = true
	return res
}

// Precheck runs the checks that need no decoding: size, the declared format
// against the allowlist and, with deep scan, the byte prefix.
func (v *SecurityValidator) Precheck(raw []byte, hint string) (string, error) {
	size := int64(len(raw))
	switch {
	case size == 0:
		return "", fmt.Errorf("empty image payload")
	case v.limits.MaxFileSize > 0 && size > v.limits.MaxFileSize:
		v.logger.WarnTag("Inference", "oversized image: size=%d max_size=%d", size, v.limits.MaxFileSize)
		return "file too large", fmt.Errorf("file size exceeds limit: %d bytes (max %d bytes)", size, v.limits.MaxFileSize)
	case !v.allows(hint):
		return "unapproved format", fmt.Errorf("unsupported format: %s", hint)
	}
	if !v.limits.EnableDeepScan {
		return "", nil
	}
	if prefix, hit := suspiciousPrefix(raw); hit {
		v.logger.WarnTag("Inference", "suspicious payload prefix: %x", prefix)
		return "suspicious content", fmt.Errorf("potential malicious content detected")
	}
	if hint != "" && !signatureMatches(raw, hint) {
		v.logger.DebugTag("Inference", "header does not match %s: %x", hint, raw[:min(len(raw), 16)])
		return "format mismatch", fmt.Errorf("content does not match declared format %s", canonicalFormat(hint))
	}
	return "", nil
}

func (v *SecurityValidator) checkHeader(format string, cfg image.Config) (string, error) {
	l := v.limits
	if !v.allows(format) {
		return "unapproved format", fmt.Errorf("unsupported format: %s", format)
	}
	if (l.MaxWidth > 0 && cfg.Width > l.MaxWidth) || (l.MaxHeight > 0 && cfg.Height > l.MaxHeight) {
		return "dimensions too large", fmt.Errorf("dimensions exceed limit: %dx%d (max %dx%d)",
			cfg.Width, cfg.Height, l.MaxWidth, l.MaxHeight)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); l.MaxPixels > 0 && pixels > l.MaxPixels {
		return "pixel count too high", fmt.Errorf("pixel count exceeds limit: %d (max %d)", pixels, l.MaxPixels)
	}
	return "", nil
}

// signatureMatches reports whether raw starts with the magic number of
// format. Unknown formats always match.
func signatureMatches(raw []byte, format string) bool {
	sig, ok := magic[canonicalFormat(format)]
	if !ok {
		return true
	}
	return bytes.HasPrefix(raw, sig)
}

func suspiciousPrefix(raw []byte) ([]byte, bool) {
	for _, p := range suspiciousPrefixes {
		if bytes.HasPrefix(raw, p) {
			return p, true
		}
	}
	return nil, false
}
