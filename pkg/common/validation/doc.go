// Package validation provides common configuration validation helpers for
// the gopace library.
package validation
