// Package audio implements the per-frame processing stages of the capture
// pipeline: gain normalization, high-pass filtering, and fixed-duration
// chunk segmentation with sample-accurate timestamps and underrun detection.
package audio
