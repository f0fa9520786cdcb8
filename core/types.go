package core

import (
	"time"
)

// ProcID represents a unique identifier for a Proc.
type ProcID uint32

// ProcState represents the current state of a Proc.
type ProcState uint8

const (
	// ProcStateIdle means the Proc is running and not waiting on any channel
	ProcStateIdle ProcState = iota

	// ProcStateParked means the Proc is blocked waiting for a matching peer
	ProcStateParked

	// ProcStateTerminated means the Proc has been deregistered
	ProcStateTerminated
)

// String returns the string representation of ProcState.
func (s ProcState) String() string {
	switch s {
	case ProcStateIdle:
		return "idle"
	case ProcStateParked:
		return "parked"
	case ProcStateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Direction tells which wait list a parked Proc sits in.
type Direction uint8

const (
	// DirectionNone means the Proc is not parked
	DirectionNone Direction = iota

	// DirectionSend means the Proc is waiting for a receiver
	DirectionSend

	// DirectionReceive means the Proc is waiting for a sender
	DirectionReceive
)

// String returns the string representation of Direction.
func (d Direction) String() string {
	switch d {
	case DirectionNone:
		return "none"
	case DirectionSend:
		return "send"
	case DirectionReceive:
		return "receive"
	default:
		return "unknown"
	}
}

// ProcStats contains runtime statistics for a Proc.
type ProcStats struct {
	// ID of the Proc
	ID ProcID

	// Name of the Proc
	Name string

	// Current state
	State ProcState

	// Channel the Proc is parked on, valid when State is ProcStateParked
	Channel string

	// Direction of the pending operation, valid when State is ProcStateParked
	Direction Direction

	// Completed sends
	Sends uint64

	// Completed receives
	Receives uint64

	// Time when the Proc was registered
	CreatedAt time.Time

	// Time of the last completed exchange
	LastExchangeAt time.Time
}

// CoordinatorStats contains a snapshot of the Coordinator's wait lists.
type CoordinatorStats struct {
	// Exchanges is the number of completed send/receive matches
	Exchanges uint64

	// ParkedSenders is the current length of the sender wait list
	ParkedSenders int

	// ParkedReceivers is the current length of the receiver wait list
	ParkedReceivers int

	// Live is the number of registered Procs
	Live int
}
