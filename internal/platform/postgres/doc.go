// Package postgres provides the PostgreSQL-backed implementation of
// the notification store, plus the error mapping from driver errors to
// store errors.
package postgres
