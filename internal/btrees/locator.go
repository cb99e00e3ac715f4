package btrees

import (
	"encoding/binary"
	"fmt"

	"github.com/kferran/apfsck/internal/types"
)

// LocateKey returns the bounded byte span, within node's block, of the
// key stored at the given record index. It is the sole permitted way
// any other component reaches key bytes: every caller gets a span
// that has already been checked against the block's bounds.
func LocateKey(node *Node, index uint32) (off, length uint32, err error) {
	if index >= node.RecordCount {
		return 0, 0, fmt.Errorf("record index %d out of range (record_count=%d)", index, node.RecordCount)
	}

	entryOff := node.TocStart + index*node.entrySize()

	if node.HasFixedKV() {
		if entryOff+types.KvoffEntrySize > uint32(len(node.Raw)) {
			return 0, 0, fmt.Errorf("locator entry %d is out of bounds", index)
		}
		k := binary.LittleEndian.Uint16(node.Raw[entryOff : entryOff+2])
		off = node.TableEnd + uint32(k)
		length = types.FixedKeySize
	} else {
		if entryOff+types.KvlocEntrySize > uint32(len(node.Raw)) {
			return 0, 0, fmt.Errorf("locator entry %d is out of bounds", index)
		}
		koff := binary.LittleEndian.Uint16(node.Raw[entryOff : entryOff+2])
		klen := binary.LittleEndian.Uint16(node.Raw[entryOff+2 : entryOff+4])
		off = node.TableEnd + uint32(koff)
		length = uint32(klen)
	}

	if off+length > node.BlockSize || off+length < off {
		return 0, 0, fmt.Errorf("record %d key span [%d,%d) exceeds block size %d", index, off, off+length, node.BlockSize)
	}
	return off, length, nil
}

// LocateValue returns the bounded byte span, within node's block, of
// the value stored at the given record index. Value offsets are
// measured backward from the end of the block, or from the start of
// the trailing btree_info_t footer when node is a root.
func LocateValue(node *Node, index uint32) (off, length uint32, err error) {
	if index >= node.RecordCount {
		return 0, 0, fmt.Errorf("record index %d out of range (record_count=%d)", index, node.RecordCount)
	}

	entryOff := node.TocStart + index*node.entrySize()
	anchor := node.DataStart

	if node.HasFixedKV() {
		if entryOff+types.KvoffEntrySize > uint32(len(node.Raw)) {
			return 0, 0, fmt.Errorf("locator entry %d is out of bounds", index)
		}
		v := uint32(binary.LittleEndian.Uint16(node.Raw[entryOff+2 : entryOff+4]))
		if v > anchor {
			return 0, 0, fmt.Errorf("record %d value offset %d exceeds heap anchor %d", index, v, anchor)
		}
		off = anchor - v
		if node.IsLeaf() {
			length = types.FixedLeafValueSize
		} else {
			length = types.InteriorValueSize
		}
	} else {
		if entryOff+types.KvlocEntrySize > uint32(len(node.Raw)) {
			return 0, 0, fmt.Errorf("locator entry %d is out of bounds", index)
		}
		v := uint32(binary.LittleEndian.Uint16(node.Raw[entryOff+4 : entryOff+6]))
		vlen := binary.LittleEndian.Uint16(node.Raw[entryOff+6 : entryOff+8])
		if v > anchor {
			return 0, 0, fmt.Errorf("record %d value offset %d exceeds heap anchor %d", index, v, anchor)
		}
		off = anchor - v
		length = uint32(vlen)
	}

	if off+length > node.BlockSize || off+length < off {
		return 0, 0, fmt.Errorf("record %d value span [%d,%d) exceeds block size %d", index, off, off+length, node.BlockSize)
	}
	return off, length, nil
}
