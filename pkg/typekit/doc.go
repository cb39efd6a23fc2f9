// Package typekit implements engine.Gateway against the Typekit JSON API.
//
// Every request carries the API token in the X-Typekit-Token header. Responses
// are classified as follows:
//
//   - 401: authentication error, which aborts the session
//   - any other status >= 300: remote error whose message starts with the
//     status code, e.g. "404 Not Found"
//   - 2xx without the expected field (kits, kit or ok): contract error
//
// GET requests are retried on transient failures. POST and DELETE requests are
// sent once.
package typekit
