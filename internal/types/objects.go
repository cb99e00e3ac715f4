package types

// Objects (pages 10-21)
// Every object on disk, ephemeral, or virtual begins with the same
// fixed-size header. The header carries the checksum that the Node
// Loader verifies before trusting anything else in the block.

// OidT is an object identifier.
// For a physical object, its identifier is the logical block address
// on disk where the object is stored. For a virtual object (as used by
// every B-tree node reached through the object map) it's an opaque
// 64-bit number that the object map translates into a physical address.
// Reference: page 12
type OidT uint64

// XidT is a transaction identifier. Transactions are uniquely
// identified by a monotonically increasing number; zero is never valid.
// Reference: page 12
type XidT uint64

// MaxCksumSize is the number of bytes used for an object checksum.
// Reference: page 11
const MaxCksumSize = 8

// ObjPhysT is the header present at the beginning of every object that
// the checker loads from disk.
// Reference: page 10
type ObjPhysT struct {
	// The Fletcher-64 checksum of the object.
	OChecksum [MaxCksumSize]byte
	// The object's identifier.
	OOid OidT
	// The identifier of the most recent transaction that modified it.
	OXid XidT
	// The object's type, in the low 16 bits, and storage flags above that.
	OType uint32
	// The object's subtype, indicating what the object's data represents.
	OSubtype uint32
}

// Object type masks (pages 13-14)

// ObjectTypeMask isolates the type from OType.
const ObjectTypeMask uint32 = 0x0000ffff

// ObjStorageTypeMask isolates the storage-class bits from OType.
const ObjStorageTypeMask uint32 = 0xc0000000

// Object types relevant to B-tree traversal (pages 14-19)

// ObjectTypeBtreeNode marks a B-tree node (btree_node_phys_t), whether
// root or non-root.
const ObjectTypeBtreeNode uint32 = 0x00000003

// ObjectTypeOmap marks an object map (omap_phys_t).
const ObjectTypeOmap uint32 = 0x0000000b

// ObjectTypeFs marks a volume superblock (apfs_superblock_t).
const ObjectTypeFs uint32 = 0x0000000d

// ObjectTypeNxSuperblock marks a container superblock (nx_superblock_t).
const ObjectTypeNxSuperblock uint32 = 0x00000001

// Object storage classes (page 20)

const (
	ObjVirtual  uint32 = 0x00000000
	ObjPhysical uint32 = 0x40000000
)
