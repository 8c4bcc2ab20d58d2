// Package provider holds the clients for third-party crypto data: prices,
// news, memes and generated commentary. Price fetches report errors; every
// other source absorbs its failures into a marker or a local fallback.
package provider

import "cryptodaily/internal/domain"

// ErrUnavailable is wrapped by every provider error.
var ErrUnavailable = domain.ErrProviderUnavailable
