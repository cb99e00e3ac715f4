package btrees

import (
	"encoding/binary"
	"fmt"

	"github.com/kferran/apfsck/internal/interfaces"
	"github.com/kferran/apfsck/internal/keys"
	"github.com/kferran/apfsck/internal/types"
)

// Flags is a bitset describing a Query's tree kind and search mode.
type Flags uint16

const (
	// FlagTreeCat marks a query against a catalog tree: interior
	// child ids must be resolved through an object map.
	FlagTreeCat Flags = 1 << iota
	// FlagTreeOmap marks a query against the object map's own tree:
	// interior child ids are already physical block numbers.
	FlagTreeOmap
	// FlagExact requires the leaf match to compare equal to the
	// search key, rather than accepting the greatest key <= it. On an
	// object map query the search key carries the maximum xid (see
	// keys.MakeOmapKey), so there a leaf match with the same object id
	// counts as exact.
	FlagExact
	// FlagMultiple puts the query into range-cursor mode, visiting
	// every record whose key is equal once disambiguating fields are
	// stripped.
	FlagMultiple
	// FlagNext tells ExecuteQuery to call advanceNode instead of
	// searchNode: the cursor is stepping to the next match rather
	// than performing an initial search.
	FlagNext
	// FlagDone marks a MULTIPLE cursor that has produced its last
	// match at this level.
	FlagDone
)

// Result is the outcome of a search or descent step.
type Result int

const (
	// ResultFound means query.Off/Len/KeyOff/KeyLen name a valid record.
	ResultFound Result = iota
	// ResultNotFound means no qualifying record exists anywhere in
	// the tree reachable from the query's root.
	ResultNotFound
	// ResultTryAnotherBranch means the current node has nothing left
	// for a MULTIPLE cursor and the caller must back up to the
	// parent level and resume there.
	ResultTryAnotherBranch
)

// Query is an active search cursor. It forms a singly linked chain of
// ancestor queries, one per tree level descended so far, so that a
// MULTIPLE cursor can back out of an exhausted node and resume the
// search at its parent without losing its place there.
type Query struct {
	Node   *Node
	Parent *Query
	Key    keys.Key
	Index  uint32
	Depth  int
	Flags  Flags

	// KeyOff, KeyLen, Off and Len are the key and value spans of the
	// most recent successful locate at this level.
	KeyOff, KeyLen, Off, Len uint32
}

// NewQuery starts a cursor at node. When parent is non-nil, the new
// query inherits the parent's key and its flags minus FlagDone and
// FlagNext, and its depth is one past the parent's: this is the
// "pushed" cursor used when ExecuteQuery descends in MULTIPLE mode
// and needs to keep the ancestor chain alive for backtracking.
func NewQuery(node *Node, parent *Query) *Query {
	q := &Query{Node: node, Parent: parent, Index: node.RecordCount}
	if parent != nil {
		q.Key = parent.Key
		q.Flags = parent.Flags &^ (FlagDone | FlagNext)
		q.Depth = parent.Depth + 1
	}
	return q
}

// ReleaseQuery releases q and its entire ancestor chain, unloading
// each level's node. Backtracking transfers ownership of a parent
// chain to the continuation by detaching it first (setting the
// child's Parent to nil) so that a release here never frees a node
// still referenced by an active cursor above it.
func ReleaseQuery(q *Query) {
	for q != nil {
		UnloadNode(q.Node)
		next := q.Parent
		q.Parent = nil
		q = next
	}
}

func decodeQueryKey(q *Query, data []byte) (keys.Key, error) {
	if q.Flags&FlagTreeOmap != 0 {
		return keys.DecodeOmapKey(data)
	}
	return keys.DecodeCatalogKey(data)
}

// searchNode finds the greatest record index in q.Node whose key is
// <= q.Key, the separator convention this tree uses for descent. On
// entry q.Index must equal the exclusive upper bound of the search
// range (record_count on a fresh query); on return, if the search
// succeeded, q.Index is the matching record and q.KeyOff/KeyLen/Off/Len
// describe it.
//
// The bisection is asymmetric: the "low" branch rounds its midpoint
// up. Without that, a two-element range where the midpoint again
// lands on left would never converge when the key at left already
// compares <= the target.
func searchNode(q *Query) (Result, error) {
	cmp := 1
	left := int64(0)
	var right int64
	var ko, kl uint32
	var curr keys.Key

	for {
		if cmp > 0 {
			right = int64(q.Index) - 1
			if right < left {
				return ResultNotFound, nil
			}
			q.Index = uint32((left + right) / 2)
		} else {
			left = int64(q.Index)
			q.Index = uint32((left + right + 1) / 2)
		}

		var err error
		ko, kl, err = LocateKey(q.Node, q.Index)
		if err != nil {
			return 0, err
		}
		curr, err = decodeQueryKey(q, q.Node.Raw[ko:ko+kl])
		if err != nil {
			return 0, fmt.Errorf("block %d record %d: %w", q.Node.BlockNr, q.Index, err)
		}

		target := q.Key
		multiple := q.Flags&FlagMultiple != 0
		if multiple {
			curr = keys.StripDisambiguator(curr)
			target = keys.StripDisambiguator(target)
		}
		cmp = keys.Compare(curr, target)

		if cmp == 0 && !multiple {
			break
		}
		if left == right {
			break
		}
	}

	if cmp > 0 {
		return ResultNotFound, nil
	}
	if q.Node.IsLeaf() && q.Flags&FlagExact != 0 && cmp != 0 {
		if q.Flags&FlagTreeOmap == 0 || curr.Primary != q.Key.Primary {
			return ResultNotFound, nil
		}
	}

	if q.Flags&FlagMultiple != 0 {
		q.Flags |= FlagNext
		if cmp != 0 {
			q.Flags |= FlagDone
		}
	}

	vo, vl, err := LocateValue(q.Node, q.Index)
	if err != nil {
		return 0, err
	}
	if vl == 0 {
		return 0, fmt.Errorf("block %d record %d: zero-length value", q.Node.BlockNr, q.Index)
	}

	q.KeyOff, q.KeyLen, q.Off, q.Len = ko, kl, vo, vl
	return ResultFound, nil
}

// advanceNode steps a MULTIPLE cursor to the next candidate within the
// current node, walking backward from q.Index. It is never called
// outside MULTIPLE mode.
func advanceNode(q *Query) (Result, error) {
	if q.Flags&FlagDone != 0 {
		return ResultNotFound, nil
	}
	if q.Index == 0 {
		return ResultTryAnotherBranch, nil
	}
	q.Index--

	ko, kl, err := LocateKey(q.Node, q.Index)
	if err != nil {
		return 0, err
	}
	curr, err := decodeQueryKey(q, q.Node.Raw[ko:ko+kl])
	if err != nil {
		return 0, fmt.Errorf("block %d record %d: %w", q.Node.BlockNr, q.Index, err)
	}

	target := keys.StripDisambiguator(q.Key)
	curr = keys.StripDisambiguator(curr)
	cmp := keys.Compare(curr, target)
	if cmp > 0 {
		return 0, fmt.Errorf("block %d record %d: keys out of order during advance", q.Node.BlockNr, q.Index)
	}
	if q.Node.IsLeaf() && q.Flags&FlagExact != 0 && cmp != 0 {
		return ResultNotFound, nil
	}

	vo, vl, err := LocateValue(q.Node, q.Index)
	if err != nil {
		return 0, err
	}
	if vl == 0 {
		return 0, fmt.Errorf("block %d record %d: zero-length value", q.Node.BlockNr, q.Index)
	}
	if cmp != 0 {
		q.Flags |= FlagDone
	}

	q.KeyOff, q.KeyLen, q.Off, q.Len = ko, kl, vo, vl
	return ResultFound, nil
}

// ExecuteQuery drives q from wherever it starts down to a leaf,
// resolving interior child ids (through omapRoot when q is a catalog
// query) and pushing or replacing cursor levels as it goes. It returns
// the query level the result actually belongs to, which on a
// MULTIPLE query or after backtracking may not be q itself.
func ExecuteQuery(dev interfaces.BlockDeviceReader, q *Query, omapRoot *Node) (Result, *Query, error) {
	for {
		if q.Depth >= types.MaxTreeDepth {
			return 0, q, fmt.Errorf("block %d: b-tree too deep", q.Node.BlockNr)
		}

		var r Result
		var err error
		if q.Flags&FlagNext != 0 {
			r, err = advanceNode(q)
		} else {
			r, err = searchNode(q)
		}
		if err != nil {
			return 0, q, err
		}

		if r == ResultTryAnotherBranch {
			if q.Parent == nil {
				return ResultNotFound, q, nil
			}
			parent := q.Parent
			q.Parent = nil
			ReleaseQuery(q)
			q = parent
			continue
		}
		if r == ResultNotFound {
			return ResultNotFound, q, nil
		}
		if q.Node.IsLeaf() {
			return ResultFound, q, nil
		}

		childId := types.OidT(binary.LittleEndian.Uint64(q.Node.Raw[q.Off : q.Off+8]))
		var childBno types.Paddr
		if q.Flags&FlagTreeOmap != 0 {
			childBno = types.Paddr(childId)
		} else {
			childBno, err = OmapLookup(dev, omapRoot, childId)
			if err != nil {
				return 0, q, fmt.Errorf("resolving child %d: %w", childId, err)
			}
		}

		child, err := LoadNode(dev, childBno)
		if err != nil {
			return 0, q, fmt.Errorf("loading child at block %d: %w", childBno, err)
		}
		if child.ObjectId != childId {
			return 0, q, fmt.Errorf("child at block %d has oid %d, want %d", childBno, child.ObjectId, childId)
		}

		if q.Flags&FlagMultiple != 0 {
			q = NewQuery(child, q)
		} else {
			UnloadNode(q.Node)
			q.Node = child
			q.Index = child.RecordCount
			q.Depth++
		}
	}
}

// OmapLookup resolves a virtual object identifier to the physical
// block number of its current version, by running a single-shot exact
// query against the object map's own tree.
func OmapLookup(dev interfaces.BlockDeviceReader, omapRoot *Node, objectId types.OidT) (types.Paddr, error) {
	q := NewQuery(omapRoot, nil)
	q.Key = keys.MakeOmapKey(objectId)
	q.Flags = FlagTreeOmap | FlagExact

	result, q, err := ExecuteQuery(dev, q, nil)
	if err != nil {
		return 0, err
	}
	if result != ResultFound {
		return 0, fmt.Errorf("object map: no mapping for object %d", objectId)
	}
	if q.Len != types.OmapValSize {
		return 0, fmt.Errorf("object map: value for object %d is %d bytes, want %d", objectId, q.Len, types.OmapValSize)
	}

	paddr := int64(binary.LittleEndian.Uint64(q.Node.Raw[q.Off+8 : q.Off+16]))
	ReleaseQuery(q)
	return types.Paddr(paddr), nil
}
