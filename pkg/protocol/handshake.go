package protocol

// HandshakeStatus represents the result of a handshake.
type HandshakeStatus uint8

const (
	HandshakeOK              HandshakeStatus = 0x00
	HandshakeVersionMismatch HandshakeStatus = 0x01
	HandshakeServerBusy      HandshakeStatus = 0x04
	HandshakeInvalidFormat   HandshakeStatus = 0x06
	HandshakeInternalError   HandshakeStatus = 0x08
)

// String returns the string representation of the handshake status.
func (hs HandshakeStatus) String() string {
	switch hs {
	case HandshakeOK:
		return "OK"
	case HandshakeVersionMismatch:
		return "VersionMismatch"
	case HandshakeServerBusy:
		return "ServerBusy"
	case HandshakeInvalidFormat:
		return "InvalidFormat"
	case HandshakeInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// ProtocolVersion represents a protocol version as major.minor.
type ProtocolVersion struct {
	Major uint8
	Minor uint8
}

// CurrentVersion is the current protocol version.
var CurrentVersion = ProtocolVersion{Major: 1, Minor: 0}

// Compatible reports whether a peer speaking v can talk to this build.
func (v ProtocolVersion) Compatible() bool {
	return v.Major == CurrentVersion.Major
}

// ClientHello is the first frame the browser sends.
type ClientHello struct {
	Version ProtocolVersion
	Path    string // location the page was loaded at
}

// ServerHello is the server's response to ClientHello.
type ServerHello struct {
	Status     HandshakeStatus
	SessionID  string
	ServerTime uint64 // Unix milliseconds
}

// EncodeClientHello encodes a ClientHello.
func EncodeClientHello(h *ClientHello) []byte {
	e := NewEncoder()
	e.WriteByte(h.Version.Major)
	e.WriteByte(h.Version.Minor)
	e.WriteString(h.Path)
	return e.Bytes()
}

// DecodeClientHello decodes a ClientHello.
func DecodeClientHello(data []byte) (*ClientHello, error) {
	d := NewDecoder(data)
	major, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	minor, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	path, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	return &ClientHello{
		Version: ProtocolVersion{Major: major, Minor: minor},
		Path:    path,
	}, nil
}

// EncodeServerHello encodes a ServerHello.
func EncodeServerHello(h *ServerHello) []byte {
	e := NewEncoder()
	e.WriteByte(byte(h.Status))
	e.WriteString(h.SessionID)
	e.WriteUint64(h.ServerTime)
	return e.Bytes()
}

// DecodeServerHello decodes a ServerHello.
func DecodeServerHello(data []byte) (*ServerHello, error) {
	d := NewDecoder(data)
	status, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	id, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	ts, err := d.ReadUint64()
	if err != nil {
		return nil, err
	}
	return &ServerHello{Status: HandshakeStatus(status), SessionID: id, ServerTime: ts}, nil
}
