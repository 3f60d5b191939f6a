package protocol

import "fmt"

// ControlType identifies the type of control message.
type ControlType uint8

const (
	ControlPing     ControlType = 0x01 // Either side
	ControlPong     ControlType = 0x02 // Response to ping
	ControlLocation ControlType = 0x10 // Location changed (browser) or push it (server)
	ControlClose    ControlType = 0x20 // Session close
)

// String returns the string representation of the control type.
func (ct ControlType) String() string {
	switch ct {
	case ControlPing:
		return "Ping"
	case ControlPong:
		return "Pong"
	case ControlLocation:
		return "Location"
	case ControlClose:
		return "Close"
	default:
		return "Unknown"
	}
}

// CloseReason indicates why a session is being closed.
type CloseReason uint8

const (
	CloseNormal         CloseReason = 0x00
	CloseGoingAway      CloseReason = 0x01
	CloseServerShutdown CloseReason = 0x03
	CloseError          CloseReason = 0x04
)

// String returns the string representation of the close reason.
func (cr CloseReason) String() string {
	switch cr {
	case CloseNormal:
		return "Normal"
	case CloseGoingAway:
		return "GoingAway"
	case CloseServerShutdown:
		return "ServerShutdown"
	case CloseError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Control is a decoded control message. Only the fields of its Type are set.
type Control struct {
	Type      ControlType
	Timestamp uint64 // Ping, Pong: Unix milliseconds
	Path      string // Location
	Reason    CloseReason
	Message   string // Close
}

// EncodeControl encodes a control message.
func EncodeControl(c *Control) []byte {
	e := NewEncoder()
	EncodeControlTo(e, c)
	return e.Bytes()
}

// EncodeControlTo encodes a control message using the provided encoder.
func EncodeControlTo(e *Encoder, c *Control) {
	e.WriteByte(byte(c.Type))
	switch c.Type {
	case ControlPing, ControlPong:
		e.WriteUint64(c.Timestamp)
	case ControlLocation:
		e.WriteString(c.Path)
	case ControlClose:
		e.WriteByte(byte(c.Reason))
		e.WriteString(c.Message)
	}
}

// DecodeControl decodes a control message.
func DecodeControl(data []byte) (*Control, error) {
	d := NewDecoder(data)
	b, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	c := &Control{Type: ControlType(b)}
	switch c.Type {
	case ControlPing, ControlPong:
		c.Timestamp, err = d.ReadUint64()
	case ControlLocation:
		c.Path, err = d.ReadString()
	case ControlClose:
		var r byte
		if r, err = d.ReadByte(); err == nil {
			c.Reason = CloseReason(r)
			c.Message, err = d.ReadString()
		}
	default:
		return nil, fmt.Errorf("protocol: unknown control type 0x%02x", b)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewPing returns a ping control message.
func NewPing(ts uint64) *Control {
	return &Control{Type: ControlPing, Timestamp: ts}
}

// NewPong answers a ping.
func NewPong(ts uint64) *Control {
	return &Control{Type: ControlPong, Timestamp: ts}
}

// NewLocation returns a location control message.
func NewLocation(path string) *Control {
	return &Control{Type: ControlLocation, Path: path}
}

// NewClose returns a close control message.
func NewClose(reason CloseReason, message string) *Control {
	return &Control{Type: ControlClose, Reason: reason, Message: message}
}
