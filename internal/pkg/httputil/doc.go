// Package httputil provides the JSON response envelopes and request decoding
// shared by the API handlers. Server errors are logged and replaced with a
// generic message before they reach the client.
package httputil
