// Package dispatch contains the poll loop that moves leased queue
// messages into ephemeral execution units, and the provisioner
// backends that run those units. The dispatcher is stateless between
// ticks: success deletes the message, any failure leaves the lease to
// expire so the queue redelivers.
package dispatch
