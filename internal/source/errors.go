// Package source loads raw open-data text from http(s), file and s3
// locations, decodes it to UTF-8 and caches it with a time-to-live.
package source

import "errors"

// Sentinel errors. Their messages are matched by core.MapError, so keep the
// wording stable.
var (
	ErrFetch               = errors.New("fetch failed")
	ErrSourceNotFound      = errors.New("source not found")
	ErrUnsupportedScheme   = errors.New("unsupported scheme")
	ErrDecode              = errors.New("decode failed")
	ErrUnsupportedEncoding = errors.New("unsupported encoding")
	ErrSourceTooLarge      = errors.New("fetch failed: source too large")
)
