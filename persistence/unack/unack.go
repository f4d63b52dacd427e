package unack

import (
	"errors"

	"github.com/DrmagicE/coremqtt/pkg/packets"
)

// ErrNotFound is returned by Update when the packet id has no delivery state.
var ErrNotFound = errors.New("unack: packet id not found")

// State is the delivery state of an outgoing QoS 1 or QoS 2 PUBLISH.
type State byte

const (
	// StateReserved means the packet id is reserved and the PUBLISH is about to be sent.
	StateReserved State = iota + 1
	// StatePublishSent means the PUBLISH is sent, waiting for PUBACK or PUBREC.
	StatePublishSent
	// StatePubrelSent means PUBREC is received and PUBREL is sent, waiting for PUBCOMP.
	StatePubrelSent
)

func (s State) String() string {
	switch s {
	case StateReserved:
		return "reserved"
	case StatePublishSent:
		return "publish_sent"
	case StatePubrelSent:
		return "pubrel_sent"
	}
	return "unknown"
}

// Record is the delivery state of one packet id.
type Record struct {
	QoS   uint8
	State State
}

// Store represents a unack store for one client.
// Unack store keeps the delivery state of the outgoing qos1 and qos2 messages until they are acknowledged.
// The implementation does not need to be safe for concurrent use, the caller serialises every call.
type Store interface {
	// Init will be called when the client connect.
	// If cleanStart set to true, the implementation should remove any associated data in backend store.
	Init(cleanStart bool) error
	// Reserve sets the given id into store with StateReserved.
	// The return boolean indicates whether the id exist, in which case the stored record is left unchanged.
	Reserve(id packets.PacketID, qos uint8) (bool, error)
	// Update changes the state of an existing id, ErrNotFound if the id does not exist.
	Update(id packets.PacketID, state State) error
	// Get returns the record of the given id and whether it exists.
	Get(id packets.PacketID) (Record, bool, error)
	// Remove removes the given id from store.
	Remove(id packets.PacketID) error
	// Len returns the number of packet ids in store.
	Len() int
}
