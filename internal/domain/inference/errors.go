package inference

import "errors"

var (
	// ErrDecode means the frame payload was not a decodable image.
	ErrDecode = errors.New("invalid image data")
	// ErrEngineUnavailable is returned by Run while no engine is loaded.
	ErrEngineUnavailable = errors.New("inference engine unavailable")
	// ErrEngineRebuild wraps factory failures during Rebuild.
	ErrEngineRebuild = errors.New("inference engine rebuild failed")
)

const decodeMessage = "Invalid image data"
