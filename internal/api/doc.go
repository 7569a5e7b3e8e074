// Package api contains the HTTP handlers for the front door: task
// submission, the completion-callback receiver, and the long-poll
// notification endpoint.
package api
