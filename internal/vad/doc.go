// Package vad provides energy-based voice activity detection. It computes
// per-frame RMS energy, smooths it over a small history window, and
// classifies frames as speech or silence against a sensitivity-derived
// threshold.
package vad
