// Package domain defines the core entities of the task pipeline:
// the task message envelope that travels through the queue, the
// notification record delivered back to polling clients, and the
// validation rules both must satisfy.
package domain
