package btrees

import (
	"encoding/binary"
	"fmt"

	"github.com/kferran/apfsck/internal/interfaces"
	"github.com/kferran/apfsck/internal/keys"
	"github.com/kferran/apfsck/internal/types"
)

// CheckSubtree walks node's records in order, asserting that keys
// never decrease across the traversal and that a leaf never repeats a
// key, then recurses into every child. lastKey is threaded by
// reference through the entire traversal, starting from
// keys.LeastKey, so that the ordering check spans subtree boundaries
// rather than restarting at each node.
//
// omapRoot distinguishes the two trees this checker ever walks: nil
// means node belongs to the object map itself, where an interior
// record's child id is already a physical block number and keys
// decode as omap keys. A non-nil omapRoot means node belongs to a
// catalog tree, where child ids must be resolved through OmapLookup
// and keys decode as catalog keys.
func CheckSubtree(dev interfaces.BlockDeviceReader, node *Node, lastKey *keys.Key, omapRoot *Node, depth int) error {
	if depth >= types.MaxTreeDepth {
		return fmt.Errorf("block %d: b-tree too deep", node.BlockNr)
	}

	for i := uint32(0); i < node.RecordCount; i++ {
		ko, kl, err := LocateKey(node, i)
		if err != nil {
			return err
		}

		curr, err := decodeSubtreeKey(node.Raw[ko:ko+kl], omapRoot)
		if err != nil {
			return fmt.Errorf("block %d record %d: %w", node.BlockNr, i, err)
		}

		if keys.Compare(*lastKey, curr) > 0 {
			return fmt.Errorf("block %d record %d: keys out of order", node.BlockNr, i)
		}
		if i > 0 && node.IsLeaf() && keys.Compare(*lastKey, curr) == 0 {
			return fmt.Errorf("block %d record %d: duplicate leaf key", node.BlockNr, i)
		}
		*lastKey = curr

		if node.IsLeaf() {
			continue
		}

		vo, vl, err := LocateValue(node, i)
		if err != nil {
			return err
		}
		if vl != types.InteriorValueSize {
			return fmt.Errorf("block %d record %d: interior value is %d bytes, want %d", node.BlockNr, i, vl, types.InteriorValueSize)
		}

		childId := types.OidT(binary.LittleEndian.Uint64(node.Raw[vo : vo+vl]))
		var childBno types.Paddr
		if omapRoot != nil {
			childBno, err = OmapLookup(dev, omapRoot, childId)
			if err != nil {
				return fmt.Errorf("block %d record %d: %w", node.BlockNr, i, err)
			}
		} else {
			childBno = types.Paddr(childId)
		}

		child, err := LoadNode(dev, childBno)
		if err != nil {
			return fmt.Errorf("block %d record %d: loading child: %w", node.BlockNr, i, err)
		}
		if child.ObjectId != childId {
			return fmt.Errorf("block %d record %d: child at block %d has oid %d, want %d", node.BlockNr, i, childBno, child.ObjectId, childId)
		}

		if err := CheckSubtree(dev, child, lastKey, omapRoot, depth+1); err != nil {
			return err
		}
		UnloadNode(child)
	}

	return nil
}

func decodeSubtreeKey(data []byte, omapRoot *Node) (keys.Key, error) {
	if omapRoot == nil {
		return keys.DecodeOmapKey(data)
	}
	return keys.DecodeCatalogKey(data)
}
