package proto

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Control message types sent by the rendezvous server as JSON text frames.
const (
	TypeIDAssigned = "id_assigned"
	TypePeerJoined = "peer_joined"
	TypePeerLeft   = "peer_left"
)

// ControlMessage announces the local id and room membership changes.
type ControlMessage struct {
	Type string `json:"type" jsonschema:"enum=id_assigned,enum=peer_joined,enum=peer_left"`
	ID   uint64 `json:"id" jsonschema:"description=Peer id the message refers to"`
}

func EncodeControl(msg ControlMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func DecodeControl(data []byte) (ControlMessage, error) {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ControlMessage{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch msg.Type {
	case TypeIDAssigned, TypePeerJoined, TypePeerLeft:
		return msg, nil
	default:
		return ControlMessage{}, fmt.Errorf("%w: control type %q", ErrUnknownKind, msg.Type)
	}
}

// Envelope is a binary frame relayed between peers. Clients fill To; the
// server stamps From before forwarding.
type Envelope struct {
	From    uint64 `msgpack:"f" json:"from"`
	To      uint64 `msgpack:"t" json:"to"`
	Payload []byte `msgpack:"p" json:"payload" jsonschema:"description=Encoded session message"`
}

func EncodeEnvelope(env Envelope) ([]byte, error) {
	return msgpack.Marshal(&env)
}

func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return env, nil
}
