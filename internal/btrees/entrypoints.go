package btrees

import (
	"encoding/binary"
	"fmt"

	"github.com/kferran/apfsck/internal/interfaces"
	"github.com/kferran/apfsck/internal/keys"
	"github.com/kferran/apfsck/internal/objects"
	"github.com/kferran/apfsck/internal/types"
)

// omapPhysTreeOidOffset is the offset of om_tree_oid within an
// omap_phys_t: the object header (32 bytes), then om_flags (4),
// om_snap_count (4), then om_tree_oid at byte 40.
const omapPhysTreeOidOffset = 40

// ParseOmapBtree opens the object map object at oid — not itself a
// B-tree node, but a small header naming the tree's root — verifies
// its checksum and oid, loads the root by block number directly
// (inside the object map, child ids are already block numbers), and
// checks the whole tree's ordering before returning the root.
func ParseOmapBtree(dev interfaces.BlockDeviceReader, oid types.OidT) (*Node, error) {
	raw, err := dev.ReadBlock(types.Paddr(oid))
	if err != nil {
		return nil, fmt.Errorf("reading object map at block %d: %w", oid, err)
	}
	if !objects.VerifyChecksum(raw) {
		return nil, fmt.Errorf("object map at block %d: checksum mismatch", oid)
	}
	if uint32(len(raw)) < omapPhysTreeOidOffset+8 {
		return nil, fmt.Errorf("object map at block %d: too small", oid)
	}

	headerOid := types.OidT(binary.LittleEndian.Uint64(raw[8:16]))
	if headerOid != oid {
		return nil, fmt.Errorf("object map at block %d: header oid %d doesn't match", oid, headerOid)
	}

	treeOid := types.OidT(binary.LittleEndian.Uint64(raw[omapPhysTreeOidOffset : omapPhysTreeOidOffset+8]))
	root, err := LoadNode(dev, types.Paddr(treeOid))
	if err != nil {
		return nil, fmt.Errorf("loading object map root: %w", err)
	}

	lastKey := keys.LeastKey
	if err := CheckSubtree(dev, root, &lastKey, nil, 0); err != nil {
		return nil, fmt.Errorf("object map root at block %d: %w", root.BlockNr, err)
	}
	return root, nil
}

// ParseCatBtree resolves oid through omapRoot, loads the resulting
// root, and checks the whole catalog tree's ordering before returning
// the root.
func ParseCatBtree(dev interfaces.BlockDeviceReader, oid types.OidT, omapRoot *Node) (*Node, error) {
	blockNr, err := OmapLookup(dev, omapRoot, oid)
	if err != nil {
		return nil, fmt.Errorf("resolving catalog root %d: %w", oid, err)
	}

	root, err := LoadNode(dev, blockNr)
	if err != nil {
		return nil, fmt.Errorf("loading catalog root: %w", err)
	}

	lastKey := keys.LeastKey
	if err := CheckSubtree(dev, root, &lastKey, omapRoot, 0); err != nil {
		return nil, fmt.Errorf("catalog root at block %d: %w", root.BlockNr, err)
	}
	return root, nil
}
