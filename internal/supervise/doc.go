// Package supervise keeps a marquee server process alive and guarantees it
// terminates.
//
// Ownership boundary:
// - liveness monitor: periodic connection, log-writer and structure checks
// - shutdown coordinator: orderly shutdown request plus forced exit
//
// The coordinator exits the process grace-period after activation whether or
// not the orderly shutdown finished draining. Work still in flight at that
// point (queued replies, unflushed session records, buffered log lines) is
// lost. Availability wins over completeness here: a hung drain never keeps
// the process up.
//
// Both loops honor cancellation only while waiting; a check or a shutdown
// call in progress is never interrupted.
package supervise
