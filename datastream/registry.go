// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package datastream

import (
	"fmt"
	"sync"

	"github.com/northlight-forge/nlarc/internal/bytestream"
	"github.com/northlight-forge/nlarc/log"
)

// Key identifies a registered decoder by (type_hash, version), mirroring
// cid_base.py's Datastream.__ds_iden__.
type Key struct {
	TypeHash uint32
	Version  uint32
}

func (k Key) String() string { return fmt.Sprintf("%08X v%d", k.TypeHash, k.Version) }

// Decoder constructs a decoded value from one container's payload.
type Decoder func(c Container) (any, error)

// Unknown is produced for a container whose (type_hash, version) has no
// registered decoder: the raw payload and key are retained so the
// archive can still be traversed and the name recovered if a decoder is
// registered later.
type Unknown struct {
	Key     Key
	Payload []byte
}

// Registry maps (type_hash, version) pairs to decoders (spec.md §4.6).
// Registration is one-shot per key: a duplicate registration is
// rejected, mirroring cid_base.py's "Duplicate subclass!" guard.
type Registry struct {
	mu       sync.Mutex
	decoders map[Key]Decoder
	names    map[Key]string
	seenUnk  map[Key]bool
	log      *log.Helper
}

// NewRegistry creates an empty registry. A nil logger discards
// first-occurrence-unknown notices.
func NewRegistry(logger log.Logger) *Registry {
	return &Registry{
		decoders: map[Key]Decoder{},
		names:    map[Key]string{},
		seenUnk:  map[Key]bool{},
		log:      log.NewHelper(logger),
	}
}

// Register binds name/key to decoder. It returns ErrDuplicateDecoder if
// the key is already bound.
func (r *Registry) Register(name string, key Key, decoder Decoder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.decoders[key]; exists {
		return fmt.Errorf("%w: %s (already %q)", ErrDuplicateDecoder, key, r.names[key])
	}
	r.decoders[key] = decoder
	r.names[key] = name
	return nil
}

// Process looks up a decoder for c's key and invokes it. If none is
// registered, an Unknown is returned and the first occurrence of that
// key is logged (subsequent occurrences are silent, matching the
// spec's "first occurrence of each unknown key is logged").
func (r *Registry) Process(c Container) (any, error) {
	key := Key{TypeHash: c.TypeHash, Version: c.Ver}
	r.mu.Lock()
	decoder, ok := r.decoders[key]
	r.mu.Unlock()
	if !ok {
		r.mu.Lock()
		first := !r.seenUnk[key]
		r.seenUnk[key] = true
		r.mu.Unlock()
		if first {
			r.log.Warnf("unregistered datastream key %s, falling back to Unknown", key)
		}
		return Unknown{Key: key, Payload: c.Payload}, nil
	}
	return decoder(c)
}

// ProcessAt decodes the container starting at the stream's current
// position and dispatches it (spec.md §4.6's end-to-end process(container)).
func (r *Registry) ProcessAt(s *bytestream.Stream) (any, error) {
	c, err := ReadContainer(s)
	if err != nil {
		return nil, err
	}
	return r.Process(c)
}
