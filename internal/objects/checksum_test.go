package objects

import (
	"encoding/binary"
	"testing"
)

func TestVerifyChecksum_RoundTrip(t *testing.T) {
	payload := make([]byte, 64)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	sum, ok := ComputeChecksum(payload)
	if !ok {
		t.Fatal("ComputeChecksum rejected a well-formed payload")
	}
	copy(payload[:8], sum[:])

	if !VerifyChecksum(payload) {
		t.Fatal("VerifyChecksum rejected a payload stamped with its own checksum")
	}
}

func TestVerifyChecksum_DetectsCorruption(t *testing.T) {
	payload := make([]byte, 64)
	for i := range payload {
		payload[i] = byte(i * 3)
	}
	sum, _ := ComputeChecksum(payload)
	copy(payload[:8], sum[:])

	payload[40] ^= 0xff

	if VerifyChecksum(payload) {
		t.Fatal("VerifyChecksum accepted a corrupted payload")
	}
}

func TestVerifyChecksum_RejectsShortOrMisalignedPayload(t *testing.T) {
	if VerifyChecksum(make([]byte, 4)) {
		t.Fatal("VerifyChecksum accepted a payload shorter than the checksum field")
	}
	if VerifyChecksum(make([]byte, 37)) {
		t.Fatal("VerifyChecksum accepted a payload not a multiple of 4 bytes")
	}
}

func TestVerifyChecksum_ZeroChecksumFieldIsIgnoredWhenComputing(t *testing.T) {
	payload := make([]byte, 16)
	binary.LittleEndian.PutUint64(payload[:8], 0xdeadbeefcafebabe)
	sum, ok := ComputeChecksum(payload)
	if !ok {
		t.Fatal("ComputeChecksum rejected a well-formed payload")
	}

	payload2 := make([]byte, 16)
	sum2, _ := ComputeChecksum(payload2)
	if sum != sum2 {
		t.Fatal("ComputeChecksum should ignore the existing contents of the checksum field")
	}
}
