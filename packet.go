package libsio

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// Engine.IO v4 packet types, sent as the first character of a text frame.
type enginePacketType byte

const (
	engineOpen    enginePacketType = '0'
	engineClose   enginePacketType = '1'
	enginePing    enginePacketType = '2'
	enginePong    enginePacketType = '3'
	engineMessage enginePacketType = '4'
	engineUpgrade enginePacketType = '5'
	engineNoop    enginePacketType = '6'
)

// Socket.IO v5 packet types, carried inside an Engine.IO message.
type socketPacketType byte

const (
	socketConnect      socketPacketType = '0'
	socketDisconnect   socketPacketType = '1'
	socketEvent        socketPacketType = '2'
	socketAck          socketPacketType = '3'
	socketConnectError socketPacketType = '4'
	socketBinaryEvent  socketPacketType = '5'
	socketBinaryAck    socketPacketType = '6'
)

const defaultNamespace = "/"

type (
	// engineHandshake is the payload of the Engine.IO open packet. Intervals are
	// in milliseconds.
	engineHandshake struct {
		SID          string   `json:"sid"`
		Upgrades     []string `json:"upgrades"`
		PingInterval int      `json:"pingInterval"`
		PingTimeout  int      `json:"pingTimeout"`
		MaxPayload   int      `json:"maxPayload"`
	}

	socketPacket struct {
		Type      socketPacketType
		Namespace string
		AckID     int // -1 when absent
		Data      json.RawMessage
	}

	enginePacket struct {
		Type enginePacketType
		Data []byte
	}
)

func parseEnginePacket(frame []byte) (enginePacket, error) {
	if len(frame) == 0 {
		return enginePacket{}, errors.Wrap(ErrMalformedPacket, "empty frame")
	}
	t := enginePacketType(frame[0])
	if t < engineOpen || t > engineNoop {
		return enginePacket{}, errors.Wrapf(ErrMalformedPacket, "unknown engine.io packet type %q", frame[0])
	}
	return enginePacket{Type: t, Data: frame[1:]}, nil
}

func parseHandshake(data []byte) (engineHandshake, error) {
	var h engineHandshake
	if err := json.Unmarshal(data, &h); err != nil {
		return h, errors.Wrap(ErrMalformedPacket, "open packet: "+err.Error())
	}
	return h, nil
}

// parseSocketPacket decodes `<type>[/<nsp>,][<ack id>][<json>]`.
func parseSocketPacket(data []byte) (socketPacket, error) {
	p := socketPacket{Namespace: defaultNamespace, AckID: -1}
	if len(data) == 0 {
		return p, errors.Wrap(ErrMalformedPacket, "empty socket.io packet")
	}

	p.Type = socketPacketType(data[0])
	switch p.Type {
	case socketConnect, socketDisconnect, socketEvent, socketAck, socketConnectError:
	case socketBinaryEvent, socketBinaryAck:
		return p, errors.Wrap(ErrUnsupportedPacket, "binary socket.io packets")
	default:
		return p, errors.Wrapf(ErrMalformedPacket, "unknown socket.io packet type %q", data[0])
	}
	rest := data[1:]

	if len(rest) > 0 && rest[0] == '/' {
		end := bytes.IndexByte(rest, ',')
		if end < 0 {
			p.Namespace = string(rest)
			return p, nil
		}
		p.Namespace = string(rest[:end])
		rest = rest[end+1:]
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		id, err := strconv.Atoi(string(rest[:digits]))
		if err != nil {
			return p, errors.Wrap(ErrMalformedPacket, "ack id: "+err.Error())
		}
		p.AckID = id
		rest = rest[digits:]
	}

	if len(rest) > 0 {
		if !json.Valid(rest) {
			return p, errors.Wrap(ErrMalformedPacket, "invalid json payload")
		}
		p.Data = json.RawMessage(rest)
	}

	return p, nil
}

// eventArgs splits an EVENT payload into its name and first argument.
func (p socketPacket) eventArgs() (string, json.RawMessage, error) {
	var args []json.RawMessage
	if err := json.Unmarshal(p.Data, &args); err != nil {
		return "", nil, errors.Wrap(ErrMalformedPacket, "event payload is not an array")
	}
	if len(args) == 0 {
		return "", nil, errors.Wrap(ErrMalformedPacket, "event without name")
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, errors.Wrap(ErrMalformedPacket, "event name is not a string")
	}
	if len(args) == 1 {
		return name, nil, nil
	}
	return name, args[1], nil
}

func encodeSocketPacket(t socketPacketType, namespace string, payload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(engineMessage))
	buf.WriteByte(byte(t))
	if namespace != "" && namespace != defaultNamespace {
		buf.WriteString(namespace)
		buf.WriteByte(',')
	}
	buf.Write(payload)
	return buf.Bytes()
}

func encodeConnect(namespace string, auth any) ([]byte, error) {
	var payload []byte
	if auth != nil {
		bts, err := json.Marshal(auth)
		if err != nil {
			return nil, errors.Wrap(err, "cannot encode connect auth")
		}
		payload = bts
	}
	return encodeSocketPacket(socketConnect, namespace, payload), nil
}

func encodeEvent(namespace, name string, payload any) ([]byte, error) {
	args := []any{name}
	if payload != nil {
		args = append(args, payload)
	}
	bts, err := json.Marshal(args)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot encode event %q", name)
	}
	return encodeSocketPacket(socketEvent, namespace, bts), nil
}

func encodeEnginePacket(t enginePacketType, data []byte) []byte {
	return append([]byte{byte(t)}, data...)
}
