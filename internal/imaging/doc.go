// Package imaging is the image source of the OCR pipeline.
//
// It decodes captures from files or streams, keeps a retry cache of decoded
// captures, and provides the measurements the pipeline needs before
// preprocessing: focus (variance of the Laplacian), contrast (spread of
// perceptual lightness) and the margin crop used for the region of interest.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based with (0,0) at the
// top-left corner, X increasing rightward and Y increasing downward.
//
// # Thread Safety
//
// The CaptureCache type is safe for concurrent use. Individual image
// operations are stateless and never modify their input; a CapturedImage is
// treated as read-only once created.
//
// # Error Handling
//
// Decoding failures, empty input and zero-sized images are reported as
// errs.ImageError so callers can tell them apart from engine or export
// failures.
package imaging
