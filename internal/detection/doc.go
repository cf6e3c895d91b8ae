// Package detection finds layout features that steer preprocessing.
//
// Two detectors are provided, both working on luminance only:
//
//   - EstimateSkew: a Hough-style vote of ink pixels over a narrow band of
//     near-horizontal angles, used to straighten tilted pages.
//   - DetectTextBlocks / TextBounds: edge-density sliding windows merged into
//     blocks, used to crop a capture to the region that holds text.
//
// # Coordinate System
//
// All coordinates use the standard image convention: origin at the top-left
// corner, X increasing rightward and Y increasing downward. Bounds use an
// inclusive top-left and exclusive bottom-right corner.
//
// # Limitations
//
// Both detectors expect printed text on a roughly uniform background. Pages
// dominated by photographs or ruled grids may produce poor results, in which
// case preprocessing falls back to the full frame and no rotation.
package detection
