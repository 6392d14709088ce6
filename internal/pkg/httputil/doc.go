// Package httputil provides the JSON response helpers used by the report API.
//
// Handlers use these instead of writing raw http.ResponseWriter calls so that
// every error body carries an "error" field.
package httputil
