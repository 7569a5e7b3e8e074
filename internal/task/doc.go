// Package task contains the in-unit execution machinery: the handler
// contract, the type-tagged payload schemas, the registry that routes a
// decoded task to its handler behind a timeout and panic boundary, and
// the unit runner driving one message from decode to completion
// callback.
//
// Handlers themselves (ingestion pipeline, summarizer, agent runner)
// are external collaborators registered at startup; they must be
// idempotent with respect to task_id because at-least-once delivery
// can re-execute them.
package task
