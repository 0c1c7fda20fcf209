// Package httputil provides the JSON response and request helpers shared by
// the API handlers and the auth layer.
package httputil
