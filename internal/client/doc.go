// Package client is a Go client for the ivengine HTTP API.
//
// Requests that fail with a 5xx or 429 status are retried with jittered
// exponential backoff. Stream connects to the table change websocket.
package client
