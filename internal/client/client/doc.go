// Package client is a small HTTP client for the photomagic image task API.
//
// Submit starts a background removal task, Status fetches its current
// view and Wait polls Status until the task is completed or failed.
// Non-2xx answers are returned as *APIError carrying the server's message
// and trace id.
package client
