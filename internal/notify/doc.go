// Package notify implements the completion side of the pipeline: the
// sink that posts signed callbacks to the originating service, the
// append-only notification store behind the callback receiver, and the
// long-poll broker that delivers stored records to clients within a
// bounded wait.
package notify
