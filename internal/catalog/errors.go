package catalog

import "errors"

var (
	// ErrProviderUnavailable indicates a provider could not serve the request.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProviderTimeout indicates a provider did not answer in time.
	ErrProviderTimeout = errors.New("provider timeout")

	// ErrNotFound indicates the requested item does not exist.
	ErrNotFound = errors.New("item not found")

	// ErrUnsupportedKind indicates a provider was asked for a kind it does not serve.
	ErrUnsupportedKind = errors.New("unsupported item type")
)
