package types

// Object Maps (pages 44-50)
// An object map is a B-tree that translates a virtual object
// identifier, qualified by a transaction id, into the physical block
// number where the current copy of that object lives.

// OmapPhysT is the header of an object map object. It is not itself a
// B-tree node: it names the oid of the root node of the tree that
// holds the actual (oid, xid) -> paddr mappings.
// Reference: page 44
type OmapPhysT struct {
	// The object's header.
	OmO ObjPhysT

	// The object map's flags.
	OmFlags uint32

	// The number of snapshots this object map has.
	OmSnapCount uint32

	// The virtual object identifier of the B-tree used for mappings.
	OmTreeOid OidT
}

// OmapKeyT is a key used to access an entry in the object map.
// Reference: page 46
type OmapKeyT struct {
	// The object identifier being looked up.
	OkOid OidT

	// The transaction identifier being looked up.
	OkXid XidT
}

// OmapValT is a value stored in the object map.
// Reference: page 46
type OmapValT struct {
	// A bit field of flags.
	OvFlags uint32

	// The size, in bytes, of the object.
	OvSize uint32

	// The physical address of the object.
	OvPaddr Paddr
}

// OmapValSize is the on-disk size, in bytes, of an omap_val_t: a
// uint32 flags field, a uint32 size field and a 64-bit paddr.
const OmapValSize = 4 + 4 + 8

// OmapKeySize is the on-disk size, in bytes, of an omap_key_t: a
// 64-bit oid followed by a 64-bit xid.
const OmapKeySize = 8 + 8
