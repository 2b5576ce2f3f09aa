// Package sl provides small slog attribute helpers.
package sl

import "log/slog"

// Err wraps an error as a slog attribute.
func Err(er error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(er.Error()),
	}
}
