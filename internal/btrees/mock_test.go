package btrees

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/kferran/apfsck/internal/objects"
	"github.com/kferran/apfsck/internal/types"
)

// mockDevice implements interfaces.BlockDeviceReader over an in-memory
// map, the way the teacher's middleware tests stand in for a real
// container file.
type mockDevice struct {
	blocks    map[types.Paddr][]byte
	blockSize uint32
}

func newMockDevice(blockSize uint32) *mockDevice {
	return &mockDevice{blocks: make(map[types.Paddr][]byte), blockSize: blockSize}
}

func (m *mockDevice) ReadBlock(blockNr types.Paddr) ([]byte, error) {
	data, ok := m.blocks[blockNr]
	if !ok {
		return nil, fmt.Errorf("no block stored at %d", blockNr)
	}
	return data, nil
}

func (m *mockDevice) BlockSize() uint32 { return m.blockSize }

func (m *mockDevice) setBlock(blockNr types.Paddr, data []byte) {
	m.blocks[blockNr] = data
}

// buildFixedNode lays out a complete fixed-kv-size btree_node_phys_t:
// a 16-byte key and a leaf-sized (16-byte) or interior-sized (8-byte)
// value per record, packed by a kvoff_t table of contents, and stamps
// a valid checksum over the result. Keys are placed contiguously from
// table_end; values are placed contiguously backward from the node's
// data_start anchor.
func buildFixedNode(t *testing.T, oid types.OidT, blockSize uint32, root, leaf bool, level uint16, keyRecs, valRecs [][]byte) []byte {
	t.Helper()

	n := len(keyRecs)
	if len(valRecs) != n {
		t.Fatalf("buildFixedNode: %d keys but %d values", n, len(valRecs))
	}
	valLen := types.InteriorValueSize
	if leaf {
		valLen = types.FixedLeafValueSize
	}
	for i := range keyRecs {
		if len(keyRecs[i]) != types.FixedKeySize {
			t.Fatalf("buildFixedNode: key %d is %d bytes, want %d", i, len(keyRecs[i]), types.FixedKeySize)
		}
		if len(valRecs[i]) != valLen {
			t.Fatalf("buildFixedNode: value %d is %d bytes, want %d", i, len(valRecs[i]), valLen)
		}
	}

	raw := make([]byte, blockSize)
	le := binary.LittleEndian

	le.PutUint64(raw[8:16], uint64(oid))
	le.PutUint64(raw[16:24], 1)
	le.PutUint32(raw[24:28], types.ObjectTypeBtreeNode)

	flags := uint16(types.BtnodeFixedKvSize)
	if root {
		flags |= types.BtnodeRoot
	}
	if leaf {
		flags |= types.BtnodeLeaf
	}
	le.PutUint16(raw[32:34], flags)
	le.PutUint16(raw[34:36], level)
	le.PutUint32(raw[36:40], uint32(n))

	tableLen := uint32(n) * types.KvoffEntrySize
	le.PutUint16(raw[40:42], 0)
	le.PutUint16(raw[42:44], uint16(tableLen))

	tocStart := uint32(types.BtreeNodeHeaderSize)
	tableEnd := tocStart + tableLen
	keyAreaStart := tableEnd

	footerSize := uint32(0)
	if root {
		footerSize = types.BtreeInfoSize
	}
	anchor := blockSize - footerSize
	valuesAreaStart := anchor - uint32(n*valLen)

	if keyAreaStart+uint32(n*types.FixedKeySize) > valuesAreaStart {
		t.Fatalf("buildFixedNode: block size %d too small for %d records", blockSize, n)
	}

	for i := 0; i < n; i++ {
		entryOff := tocStart + uint32(i)*types.KvoffEntrySize
		keyOff := uint32(i * types.FixedKeySize)
		valOff := uint32((n - i) * valLen)
		le.PutUint16(raw[entryOff:entryOff+2], uint16(keyOff))
		le.PutUint16(raw[entryOff+2:entryOff+4], uint16(valOff))

		keyAbs := keyAreaStart + keyOff
		copy(raw[keyAbs:keyAbs+types.FixedKeySize], keyRecs[i])

		valAbs := anchor - valOff
		copy(raw[valAbs:valAbs+uint32(valLen)], valRecs[i])
	}

	sum, ok := objects.ComputeChecksum(raw)
	if !ok {
		t.Fatalf("buildFixedNode: could not checksum a %d-byte block", len(raw))
	}
	copy(raw[0:8], sum[:])
	return raw
}

// buildOmapPhys builds the small header object that names an object
// map's tree root, stamped with a valid checksum.
func buildOmapPhys(t *testing.T, oid, treeOid types.OidT) []byte {
	t.Helper()
	raw := make([]byte, 48)
	le := binary.LittleEndian
	le.PutUint64(raw[8:16], uint64(oid))
	le.PutUint64(raw[16:24], 1)
	le.PutUint32(raw[24:28], types.ObjectTypeOmap)
	le.PutUint64(raw[40:48], uint64(treeOid))

	sum, ok := objects.ComputeChecksum(raw)
	if !ok {
		t.Fatalf("buildOmapPhys: could not checksum header")
	}
	copy(raw[0:8], sum[:])
	return raw
}

// omapKeyBytes packs an omap_key_t as a fixed 16-byte key record.
func omapKeyBytes(oid types.OidT, xid types.XidT) []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint64(b[0:8], uint64(oid))
	binary.LittleEndian.PutUint64(b[8:16], uint64(xid))
	return b
}

// omapValBytes packs an omap_val_t as a fixed 16-byte value record.
func omapValBytes(paddr types.Paddr) []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint64(b[8:16], uint64(paddr))
	return b
}

// catalogKeyBytes packs a bare j_key_t, zero-padded to the fixed
// 16-byte key size this test tree uses throughout.
func catalogKeyBytes(objId uint64, objType types.JObjType) []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint64(b[0:8], (objId&types.ObjIdMask)|(uint64(objType)<<types.ObjTypeShift))
	return b
}

// fileExtentKeyBytes packs a j_file_extent_key_t: a j_key_t header
// plus the logical address that disambiguates extents sharing one
// object id. It exactly fills the fixed 16-byte key size.
func fileExtentKeyBytes(objId, logicalAddr uint64) []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint64(b[0:8], (objId&types.ObjIdMask)|(uint64(types.JObjTypeFileExtent)<<types.ObjTypeShift))
	binary.LittleEndian.PutUint64(b[8:16], logicalAddr)
	return b
}

func childIdBytes(oid types.OidT) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(oid))
	return b
}

func dummyLeafValue(tag byte) []byte {
	b := make([]byte, types.FixedLeafValueSize)
	b[0] = tag
	return b
}
