// Package device defines the hardware capture device contract consumed by
// the session state machine, and provides the miniaudio-backed
// implementation used in production. The core has no platform conditionals;
// everything hardware-specific lives behind the Device interface.
package device
