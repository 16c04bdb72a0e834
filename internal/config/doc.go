// Package config defines the YAML configuration surface of the capture
// service and validates every section at load time.
package config
