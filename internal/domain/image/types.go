package image

// Limits bounds what the decoder accepts.
type Limits struct {
	MaxFileSize    int64
	MaxPixels      int64
	MaxWidth       int
	MaxHeight      int
	AllowedFormats []string
	EnableDeepScan bool
}

// DefaultLimits accepts frames up to 4096x4096 and 8 MiB.
func DefaultLimits() Limits {
	return Limits{
		MaxFileSize:    8 << 20,
		MaxPixels:      4096 * 4096,
		MaxWidth:       4096,
		MaxHeight:      4096,
		AllowedFormats: []string{"jpeg", "png", "webp", "gif", "bmp"},
		EnableDeepScan: true,
	}
}

// ValidationResult captures the outcome of security validation.
type ValidationResult struct {
	IsValid      bool
	Format       string
	Width        int
	Height       int
	FileSize     int64
	Error        error
	SecurityRisk string
}
