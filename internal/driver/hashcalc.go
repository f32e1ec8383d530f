package driver

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"lowir/internal/target"
)

// Digest is a SHA-256 content hash.
type Digest [sha256.Size]byte

// IsZero reports whether d was never computed.
func (d Digest) IsZero() bool { return d == Digest{} }

func (d Digest) String() string { return fmt.Sprintf("%x", d[:]) }

func hashBytes(b []byte) Digest {
	return Digest(sha256.Sum256(b))
}

// combineDigest: H(content || part1 || part2 ...). Parts are in a fixed order.
func combineDigest(content Digest, parts ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	for _, d := range parts {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// targetDigest hashes the msgpack form of a target descriptor. Target has no
// maps, so the encoding is deterministic.
func targetDigest(tgt *target.Target) (Digest, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(tgt); err != nil {
		return Digest{}, fmt.Errorf("hash target: %w", err)
	}
	return hashBytes(buf.Bytes()), nil
}

// optionsDigest covers the options that change emitted IR.
func optionsDigest(opts *Options) Digest {
	var flags [2]byte
	flags[0] = diskCacheSchemaVersion
	if opts.EntryShim {
		flags[1] = 1
	}
	return hashBytes(flags[:])
}

// UnitDigest keys the lowering of unit bytes for tgt under opts.
func UnitDigest(unit []byte, tgt *target.Target, opts *Options) (Digest, error) {
	td, err := targetDigest(tgt)
	if err != nil {
		return Digest{}, err
	}
	return combineDigest(hashBytes(unit), td, optionsDigest(opts)), nil
}
