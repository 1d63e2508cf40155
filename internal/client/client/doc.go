// Package client talks to the CryptoDesk admin HTTP API.
//
// HTTPClient implements Client over JSON/HTTP. Transport failures are
// reported as ErrUnavailable, 401 as ErrUnauthorized (the stored token is
// dropped), 404 as ErrNotFound and every other non-2xx status as
// *StatusError carrying the server's detail message.
package client
