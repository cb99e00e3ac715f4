// Package objects verifies the integrity header (obj_phys_t) that
// precedes every object this checker loads from disk.
package objects

import (
	"encoding/binary"

	"github.com/kferran/apfsck/internal/types"
)

// VerifyChecksum recomputes the Fletcher-64 checksum of an object's
// raw bytes and compares it against the checksum recorded in its
// header. payload is the full on-disk object, header included; the
// checksum field itself is zeroed before the recomputation, matching
// how it was computed originally.
func VerifyChecksum(payload []byte) bool {
	if len(payload) < types.MaxCksumSize || len(payload)%4 != 0 {
		return false
	}
	want, ok := ComputeChecksum(payload)
	if !ok {
		return false
	}
	return want == [types.MaxCksumSize]byte(payload[:types.MaxCksumSize])
}

// ComputeChecksum returns the Fletcher-64 checksum that payload's
// header field should hold, as if that field were currently zero. It
// is exposed alongside VerifyChecksum so that callers building
// synthetic objects — test fixtures, chiefly — can stamp a checksum
// that VerifyChecksum will accept.
func ComputeChecksum(payload []byte) (sum [types.MaxCksumSize]byte, ok bool) {
	if len(payload) < types.MaxCksumSize || len(payload)%4 != 0 {
		return sum, false
	}

	scratch := make([]byte, len(payload))
	copy(scratch, payload)
	for i := 0; i < types.MaxCksumSize; i++ {
		scratch[i] = 0
	}

	return fletcher64(scratch), true
}

// fletcher64 computes the modified Fletcher-64 checksum APFS uses for
// every object header, operating over 32-bit little-endian words and
// reducing the two running sums modulo 2^32-1 periodically to avoid
// silent overflow on large objects.
func fletcher64(data []byte) [types.MaxCksumSize]byte {
	const modulus = uint64(0xFFFFFFFF)
	const wordsPerChunk = 1024

	var sum1, sum2 uint64

	for offset := 0; offset < len(data); offset += wordsPerChunk * 4 {
		end := offset + wordsPerChunk*4
		if end > len(data) {
			end = len(data)
		}

		for i := offset; i+4 <= end; i += 4 {
			word := binary.LittleEndian.Uint32(data[i : i+4])
			sum1 += uint64(word)
			sum2 += sum1
		}

		sum1 %= modulus
		sum2 %= modulus
	}

	c1 := modulus - ((sum1 + sum2) % modulus)
	c2 := modulus - ((sum1 + c1) % modulus)

	var out [types.MaxCksumSize]byte
	binary.LittleEndian.PutUint64(out[:], (c2<<32)|c1)
	return out
}
