// Package btrees loads, validates, and searches the on-disk B-trees
// addressed through an object map: the object map's own tree and any
// catalog tree resolved through it.
package btrees

import (
	"encoding/binary"
	"fmt"

	"github.com/kferran/apfsck/internal/interfaces"
	"github.com/kferran/apfsck/internal/objects"
	"github.com/kferran/apfsck/internal/types"
)

// Node is an in-memory descriptor over one mapped block, holding
// everything the record locator and the ordering and query engines
// need to interpret it. It is normally produced by LoadNode; tests
// also build Node values by hand.
type Node struct {
	Flags       uint16
	Level       uint16
	RecordCount uint32

	// TocStart is the byte offset, from the start of the block, of
	// the first record-locator entry.
	TocStart uint32

	// TableEnd, FreeStart and DataStart are the three monotonic
	// intra-block offsets this checker tracks. LoadNode ensures that
	// TableEnd and DataStart are <= BlockSize; FreeStart is taken from
	// the header as recorded and is not bounds-checked.
	// TableEnd is the first byte past the record-locator table and
	// the point keys grow upward from; FreeStart is the first byte
	// of the shared free region; DataStart is the anchor that value
	// offsets are measured backward from (the end of the block, or
	// the start of the trailing btree_info_t footer on a root).
	TableEnd  uint32
	FreeStart uint32
	DataStart uint32

	ObjectId  types.OidT
	BlockNr   types.Paddr
	BlockSize uint32
	Raw       []byte
}

// IsRoot reports whether this node was flagged as a B-tree root at
// load time. Flags is a copy of the header's flags taken once by
// LoadNode, so root-ness is read from that snapshot rather than
// re-derived from the raw block bytes: by the time a node might be
// released, nothing guarantees those bytes haven't been reused for
// something else, so downstream code must treat this snapshot as
// authoritative.
func (n *Node) IsRoot() bool { return n.Flags&types.BtnodeRoot != 0 }

// IsLeaf reports whether this node is a leaf.
func (n *Node) IsLeaf() bool { return n.Flags&types.BtnodeLeaf != 0 }

// HasFixedKV reports whether this node's keys and values are all one
// fixed size, so its record-locator table is an array of kvoff_t
// rather than kvloc_t.
func (n *Node) HasFixedKV() bool { return n.Flags&types.BtnodeFixedKvSize != 0 }

func (n *Node) entrySize() uint32 {
	if n.HasFixedKV() {
		return types.KvoffEntrySize
	}
	return types.KvlocEntrySize
}

func (n *Node) footerSize() uint32 {
	if n.IsRoot() {
		return types.BtreeInfoSize
	}
	return 0
}

// LoadNode reads the block at blockNr, verifies its object header
// checksum, decodes its B-tree node header, and rejects it if its
// record count or table layout can't possibly be valid. Every field
// the rest of this package relies on is computed once, here, so that
// the record locator never has to re-derive a bound from untrusted
// bytes.
func LoadNode(dev interfaces.BlockDeviceReader, blockNr types.Paddr) (*Node, error) {
	raw, err := dev.ReadBlock(blockNr)
	if err != nil {
		return nil, fmt.Errorf("reading block %d: %w", blockNr, err)
	}

	if !objects.VerifyChecksum(raw) {
		return nil, fmt.Errorf("block %d: checksum mismatch", blockNr)
	}

	blockSize := dev.BlockSize()
	if uint32(len(raw)) < types.BtreeNodeHeaderSize {
		return nil, fmt.Errorf("block %d: too small for a b-tree node header", blockNr)
	}

	objectId := types.OidT(binary.LittleEndian.Uint64(raw[8:16]))
	flags := binary.LittleEndian.Uint16(raw[32:34])
	level := binary.LittleEndian.Uint16(raw[34:36])
	recordCount := binary.LittleEndian.Uint32(raw[36:40])
	tableSpaceOff := uint32(binary.LittleEndian.Uint16(raw[40:42]))
	tableSpaceLen := uint32(binary.LittleEndian.Uint16(raw[42:44]))
	freeSpaceOff := uint32(binary.LittleEndian.Uint16(raw[44:46]))

	if recordCount == 0 {
		return nil, fmt.Errorf("block %d: record_count is zero", blockNr)
	}

	tocStart := types.BtreeNodeHeaderSize + tableSpaceOff
	tableEnd := tocStart + tableSpaceLen
	if tableEnd > blockSize {
		return nil, fmt.Errorf("block %d: table_end %d exceeds block size %d", blockNr, tableEnd, blockSize)
	}

	entrySize := uint32(types.KvlocEntrySize)
	if flags&types.BtnodeFixedKvSize != 0 {
		entrySize = types.KvoffEntrySize
	}
	if recordCount*entrySize > tableEnd-types.BtreeNodeHeaderSize {
		return nil, fmt.Errorf("block %d: record-locator table for %d records doesn't fit before table_end", blockNr, recordCount)
	}

	footerSize := uint32(0)
	if flags&types.BtnodeRoot != 0 {
		footerSize = types.BtreeInfoSize
	}

	return &Node{
		Flags:       flags,
		Level:       level,
		RecordCount: recordCount,
		TocStart:    tocStart,
		TableEnd:    tableEnd,
		FreeStart:   tableEnd + freeSpaceOff,
		DataStart:   blockSize - footerSize,
		ObjectId:    objectId,
		BlockNr:     blockNr,
		BlockSize:   blockSize,
		Raw:         raw,
	}, nil
}

// UnloadNode releases a node's raw block bytes, unless it's a root:
// roots are retained for the life of the run, since the superblock
// structure that owns an object map or catalog tree keeps its root
// alive across every lookup performed against it.
func UnloadNode(n *Node) {
	if n == nil || n.IsRoot() {
		return
	}
	n.Raw = nil
}
