// Package dist packages object files and execution snapshots for moving
// between processes. Both travel as canonical CBOR so identical content
// encodes to identical bytes.
package dist

import "errors"

// EnvelopeVersion is the layout version written into every envelope.
const EnvelopeVersion = 1

var (
	ErrDigestMismatch    = errors.New("dist: object digest mismatch")
	ErrHashMismatch      = errors.New("dist: source hash mismatch")
	ErrEnvelopeVersion   = errors.New("dist: unsupported envelope version")
	ErrMissingCapability = errors.New("dist: missing capability")
)

// ImageEnvelope carries an object file keyed by its source hash. Digest is
// the SHA-256 of Object and guards the bytes in transit; Hash repeats the
// object's own header hash so receivers can index envelopes without
// loading them.
type ImageEnvelope struct {
	Version    uint8     `cbor:"1,keyasint"`
	Name       string    `cbor:"2,keyasint,omitempty"`
	Hash       [32]byte  `cbor:"3,keyasint"`
	Digest     [32]byte  `cbor:"4,keyasint"`
	Object     []byte    `cbor:"5,keyasint"`
	Capability *Manifest `cbor:"6,keyasint,omitempty"`
}

// Manifest declares the host names an object file calls.
type Manifest struct {
	Builtins   []string `cbor:"1,keyasint,omitempty"`
	Extensions []string `cbor:"2,keyasint,omitempty"` // module.function
}

// SnapshotEnvelope is the wire form of vm.Snapshot.
type SnapshotEnvelope struct {
	Version  uint8           `cbor:"1,keyasint"`
	RunID    string          `cbor:"2,keyasint"`
	Executor string          `cbor:"3,keyasint"`
	Module   string          `cbor:"4,keyasint,omitempty"`
	IP       int             `cbor:"5,keyasint"`
	Op       string          `cbor:"6,keyasint"`
	Steps    uint64          `cbor:"7,keyasint"`
	Stack    []string        `cbor:"8,keyasint,omitempty"`
	Frames   []FrameEnvelope `cbor:"9,keyasint,omitempty"`
	Globals  []string        `cbor:"10,keyasint,omitempty"`
	Error    string          `cbor:"11,keyasint,omitempty"`
}

// FrameEnvelope is the wire form of vm.FrameSnapshot.
type FrameEnvelope struct {
	Function string   `cbor:"1,keyasint"`
	Module   string   `cbor:"2,keyasint,omitempty"`
	Nest     int      `cbor:"3,keyasint"`
	ReturnIP int      `cbor:"4,keyasint"`
	Locals   []string `cbor:"5,keyasint,omitempty"`
}
