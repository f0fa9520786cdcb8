// Package core implements synchronous named-channel rendezvous between
// isolated processes.
//
// A Coordinator owns two wait lists, one for parked senders and one for
// parked receivers, and a single mutex that guards both lists and the
// channel state of every Proc. A Send on a channel completes only when a
// Receive on the same channel name is present, and the reverse. Whichever
// side arrives first parks on its own condition variable until the other
// side removes it from its list and wakes it.
//
// Values cross the process boundary as CBOR-encoded copies, so a receiver
// never aliases memory owned by the sender.
package core
