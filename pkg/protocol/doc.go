// Package protocol implements the binary wire format spoken between a live
// session and the browser runtime.
//
// Every message is a frame with a 4-byte header:
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Frame Type  │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (2 bytes, big-endian)         │
//	└─────────────┴──────────────┴───────────────────────────────┘
//
// The server sends FrameCommands carrying document commands in emission
// order. The browser sends FrameEvent when a registered callback fires and
// FrameControl for pings and location changes.
//
// Integers are varints, strings are varint length-prefixed UTF-8.
//
// A command batch encodes as:
//
//	[Count: varint] then per command [Kind: byte][fields...]
//
// where the fields follow the command kind, for example
//
//	SetAttr      [ID: varint][Name: string][Value: string]
//	InsertBefore [Parent: varint][Child: varint][Ref: varint, 0 appends]
package protocol
