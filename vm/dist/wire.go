package dist

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/nex/pkg/bytecode"
	"github.com/chazu/nex/vm"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("dist: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// NewImageEnvelope loads object to validate it and wraps it with its
// hashes and the host names it calls.
func NewImageEnvelope(name string, object []byte, opts ...bytecode.Option) (*ImageEnvelope, error) {
	img, err := bytecode.Load(object, opts...)
	if err != nil {
		return nil, err
	}
	builtins, extensions, err := img.HostNames()
	if err != nil {
		return nil, fmt.Errorf("dist: scanning %s: %w", name, err)
	}
	env := &ImageEnvelope{
		Version: EnvelopeVersion,
		Name:    name,
		Hash:    img.SourceHash,
		Digest:  sha256.Sum256(object),
		Object:  append([]byte(nil), object...),
	}
	if len(builtins) > 0 || len(extensions) > 0 {
		env.Capability = &Manifest{Builtins: builtins, Extensions: extensions}
	}
	return env, nil
}

// MarshalImage serializes an ImageEnvelope to CBOR bytes.
func MarshalImage(env *ImageEnvelope) ([]byte, error) {
	return cborEncMode.Marshal(env)
}

// DecodeImageEnvelope deserializes an ImageEnvelope without verifying or
// loading its object.
func DecodeImageEnvelope(data []byte) (*ImageEnvelope, error) {
	var env ImageEnvelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("dist: unmarshal image: %w", err)
	}
	return &env, nil
}

// UnmarshalImage deserializes an ImageEnvelope, checks its digest and loads
// the object it carries.
func UnmarshalImage(data []byte, opts ...bytecode.Option) (*ImageEnvelope, *bytecode.Image, error) {
	env, err := DecodeImageEnvelope(data)
	if err != nil {
		return nil, nil, err
	}
	img, err := env.Open(opts...)
	if err != nil {
		return nil, nil, err
	}
	return env, img, nil
}

// Open verifies the envelope and loads its object.
func (env *ImageEnvelope) Open(opts ...bytecode.Option) (*bytecode.Image, error) {
	if env.Version != EnvelopeVersion {
		return nil, fmt.Errorf("%w: %d", ErrEnvelopeVersion, env.Version)
	}
	if sha256.Sum256(env.Object) != env.Digest {
		return nil, ErrDigestMismatch
	}
	img, err := bytecode.Load(env.Object, opts...)
	if err != nil {
		return nil, err
	}
	if img.SourceHash != env.Hash {
		return nil, fmt.Errorf("%w: envelope %x, object %x", ErrHashMismatch, env.Hash, img.SourceHash)
	}
	return img, nil
}

// MarshalSnapshot serializes an execution snapshot to CBOR bytes.
func MarshalSnapshot(s *vm.Snapshot) ([]byte, error) {
	env := SnapshotEnvelope{
		Version:  EnvelopeVersion,
		RunID:    s.RunID,
		Executor: s.Executor,
		Module:   s.Module,
		IP:       s.IP,
		Op:       s.Op,
		Steps:    s.Steps,
		Stack:    s.Stack,
		Globals:  s.Globals,
		Error:    s.Error,
	}
	for _, f := range s.Frames {
		env.Frames = append(env.Frames, FrameEnvelope{
			Function: f.Function,
			Module:   f.Module,
			Nest:     f.Nest,
			ReturnIP: f.ReturnIP,
			Locals:   f.Locals,
		})
	}
	return cborEncMode.Marshal(&env)
}

// UnmarshalSnapshot deserializes an execution snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*vm.Snapshot, error) {
	var env SnapshotEnvelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("dist: unmarshal snapshot: %w", err)
	}
	if env.Version != EnvelopeVersion {
		return nil, fmt.Errorf("%w: %d", ErrEnvelopeVersion, env.Version)
	}
	s := &vm.Snapshot{
		RunID:    env.RunID,
		Executor: env.Executor,
		Module:   env.Module,
		IP:       env.IP,
		Op:       env.Op,
		Steps:    env.Steps,
		Stack:    env.Stack,
		Globals:  env.Globals,
		Error:    env.Error,
	}
	for _, f := range env.Frames {
		s.Frames = append(s.Frames, vm.FrameSnapshot{
			Function: f.Function,
			Module:   f.Module,
			Nest:     f.Nest,
			ReturnIP: f.ReturnIP,
			Locals:   f.Locals,
		})
	}
	return s, nil
}
