// Package http provides the transport used to replay scenario steps.
//
// It wraps the standard library's http package with additional features:
//   - Configurable timeouts, proxy and TLS verification
//   - Redirect handling
//   - Request-per-second limiting
//   - Path, query and form parameter encoding
//   - Ordered response headers and typed body decoders
package http
