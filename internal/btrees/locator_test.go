package btrees

import (
	"encoding/binary"
	"testing"

	"github.com/kferran/apfsck/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocateKey_FixedLayout(t *testing.T) {
	dev := newMockDevice(512)
	raw := buildFixedNode(t, 1, 512, false, true, 0,
		[][]byte{omapKeyBytes(10, 1), omapKeyBytes(20, 1)},
		[][]byte{omapValBytes(100), omapValBytes(200)})
	dev.setBlock(1, raw)
	node, err := LoadNode(dev, 1)
	require.NoError(t, err)

	off, length, err := LocateKey(node, 1)
	require.NoError(t, err)
	assert.EqualValues(t, types.FixedKeySize, length)
	got := binary.LittleEndian.Uint64(node.Raw[off : off+8])
	assert.EqualValues(t, 20, got)
}

func TestLocateKey_RejectsIndexBeyondRecordCount(t *testing.T) {
	dev := newMockDevice(512)
	raw := buildFixedNode(t, 1, 512, false, true, 0,
		[][]byte{omapKeyBytes(10, 1)},
		[][]byte{omapValBytes(100)})
	dev.setBlock(1, raw)
	node, err := LoadNode(dev, 1)
	require.NoError(t, err)

	_, _, err = LocateKey(node, 1)
	assert.Error(t, err, "LocateKey accepted an index equal to record_count")
}

func TestLocateValue_InteriorIsEightBytesAndLeafIsSixteen(t *testing.T) {
	dev := newMockDevice(512)

	interior := buildFixedNode(t, 1, 512, false, false, 1,
		[][]byte{catalogKeyBytes(5, types.JObjTypeInode)},
		[][]byte{childIdBytes(99)})
	dev.setBlock(1, interior)
	n1, err := LoadNode(dev, 1)
	require.NoError(t, err, "LoadNode (interior)")
	_, vl, err := LocateValue(n1, 0)
	require.NoError(t, err, "LocateValue (interior)")
	assert.EqualValues(t, types.InteriorValueSize, vl)

	leaf := buildFixedNode(t, 2, 512, false, true, 0,
		[][]byte{omapKeyBytes(10, 1)},
		[][]byte{omapValBytes(100)})
	dev.setBlock(2, leaf)
	n2, err := LoadNode(dev, 2)
	require.NoError(t, err, "LoadNode (leaf)")
	_, vl2, err := LocateValue(n2, 0)
	require.NoError(t, err, "LocateValue (leaf)")
	assert.EqualValues(t, types.FixedLeafValueSize, vl2)
}

// A record whose value span ends exactly at the last legal byte is
// accepted; one byte further is rejected. This is exercised directly
// against a hand-built Node, sidestepping LoadNode, so the boundary
// sits exactly on block_size regardless of footer accounting.
func TestLocateValue_AcceptsSpanEndingAtBlockSizeRejectsOneByteBeyond(t *testing.T) {
	raw := make([]byte, 64)
	// One fixed-kv leaf record, toc at offset BtreeNodeHeaderSize.
	tocStart := uint32(types.BtreeNodeHeaderSize)
	binary.LittleEndian.PutUint16(raw[tocStart:tocStart+2], 0) // key offset
	// value offset 16 == FixedLeafValueSize, so the span [anchor-16, anchor) ends exactly at block_size.
	binary.LittleEndian.PutUint16(raw[tocStart+2:tocStart+4], uint16(types.FixedLeafValueSize))

	node := &Node{
		Flags:       types.BtnodeLeaf | types.BtnodeFixedKvSize,
		RecordCount: 1,
		TocStart:    tocStart,
		TableEnd:    tocStart + types.KvoffEntrySize,
		DataStart:   64,
		BlockSize:   64,
		Raw:         raw,
	}

	off, length, err := LocateValue(node, 0)
	require.NoError(t, err, "LocateValue rejected a span ending exactly at block_size")
	require.Equal(t, node.BlockSize, off+length, "test setup error: span should end exactly at block_size")

	// Shrink the value offset by one so the span would end one byte
	// past block_size.
	binary.LittleEndian.PutUint16(raw[tocStart+2:tocStart+4], uint16(types.FixedLeafValueSize-1))
	_, _, err = LocateValue(node, 0)
	assert.Error(t, err, "LocateValue accepted a span extending one byte past block_size")
}

// The variable-layout branch (kvloc_t entries, explicit lengths) is
// exercised directly against a hand-built Node, since none of the
// seed-corpus trees need variable-size keys or values.
func TestLocateKeyAndValue_VariableLayout(t *testing.T) {
	raw := make([]byte, 128)
	tocStart := uint32(types.BtreeNodeHeaderSize)
	// kvloc_t: {k:{off,len}, v:{off,len}}
	binary.LittleEndian.PutUint16(raw[tocStart:tocStart+2], 4)   // key off, relative to table_end
	binary.LittleEndian.PutUint16(raw[tocStart+2:tocStart+4], 9) // key len
	binary.LittleEndian.PutUint16(raw[tocStart+4:tocStart+6], 5) // value off, backward from anchor
	binary.LittleEndian.PutUint16(raw[tocStart+6:tocStart+8], 5) // value len

	tableEnd := tocStart + types.KvlocEntrySize
	keyAbs := tableEnd + 4
	copy(raw[keyAbs:keyAbs+9], []byte("hello.txt"))

	node := &Node{
		Flags:       types.BtnodeLeaf,
		RecordCount: 1,
		TocStart:    tocStart,
		TableEnd:    tableEnd,
		DataStart:   128,
		BlockSize:   128,
		Raw:         raw,
	}
	valAbs := node.DataStart - 5
	copy(raw[valAbs:valAbs+5], []byte("value"))

	ko, kl, err := LocateKey(node, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello.txt", string(raw[ko:ko+kl]))

	vo, vl, err := LocateValue(node, 0)
	require.NoError(t, err)
	assert.Equal(t, "value", string(raw[vo:vo+vl]))
}
