// Package proto defines the peer-to-peer wire messages. Session traffic is
// msgpack; rendezvous control messages are JSON text frames.
package proto

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	// Version tracks the wire-protocol revision peers must agree on.
	Version = 1

	// MaxBatchInputs caps the redundant input window carried by one batch.
	MaxBatchInputs = 64
)

// Kind discriminates session messages.
type Kind uint8

const (
	KindInput    Kind = 1
	KindChecksum Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindChecksum:
		return "checksum"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

var (
	ErrUnsupportedVersion = errors.New("proto: unsupported version")
	ErrUnknownKind        = errors.New("proto: unknown message kind")
	ErrMalformed          = errors.New("proto: malformed message")
)

// InputMessage is one player's confirmed input for one tick.
type InputMessage struct {
	Tick   int32 `msgpack:"t" json:"tick" jsonschema:"minimum=0,description=Simulation tick the input applies to"`
	Handle uint8 `msgpack:"h" json:"handle" jsonschema:"description=Player handle the input belongs to"`
	Input  uint8 `msgpack:"i" json:"input" jsonschema:"maximum=31,description=Input bitmask: up=1 down=2 left=4 right=8 fire=16"`
}

// InputBatch resends every input the receiver has not acknowledged yet, so
// a lost datagram is repaired by the next one.
type InputBatch struct {
	Ack    int32          `msgpack:"a" json:"ack" jsonschema:"description=Last tick of the receiver's inputs the sender has confirmed; -1 when none"`
	Inputs []InputMessage `msgpack:"in" json:"inputs" jsonschema:"maxItems=64"`
}

// ChecksumMessage publishes the sender's fingerprint of a confirmed tick.
type ChecksumMessage struct {
	Tick     int32  `msgpack:"t" json:"tick" jsonschema:"minimum=0"`
	Checksum uint64 `msgpack:"c" json:"checksum"`
}

// Message is the envelope of every session datagram.
type Message struct {
	Version  uint8            `msgpack:"v" json:"version" jsonschema:"enum=1"`
	Kind     Kind             `msgpack:"k" json:"kind" jsonschema:"enum=1,enum=2,description=1 input batch; 2 checksum"`
	Input    *InputBatch      `msgpack:"ib,omitempty" json:"input,omitempty"`
	Checksum *ChecksumMessage `msgpack:"cs,omitempty" json:"checksum,omitempty"`
}

func NewInputMessage(batch InputBatch) Message {
	return Message{Version: Version, Kind: KindInput, Input: &batch}
}

func NewChecksumMessage(tick int32, sum uint64) Message {
	return Message{Version: Version, Kind: KindChecksum, Checksum: &ChecksumMessage{Tick: tick, Checksum: sum}}
}

// Encode renders msg as msgpack.
func Encode(msg Message) ([]byte, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}
	data, err := msgpack.Marshal(&msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", msg.Kind, err)
	}
	return data, nil
}

// Decode parses and validates a session datagram.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := msg.validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func (m Message) validate() error {
	if m.Version != Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, m.Version)
	}
	switch m.Kind {
	case KindInput:
		if m.Input == nil {
			return fmt.Errorf("%w: input message without batch", ErrMalformed)
		}
		if len(m.Input.Inputs) > MaxBatchInputs {
			return fmt.Errorf("%w: %d inputs in one batch", ErrMalformed, len(m.Input.Inputs))
		}
	case KindChecksum:
		if m.Checksum == nil {
			return fmt.Errorf("%w: checksum message without body", ErrMalformed)
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, uint8(m.Kind))
	}
	return nil
}
