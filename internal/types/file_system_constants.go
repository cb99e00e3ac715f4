package types

// File-System Constants
// Reference: Apple File System Reference, pages 683-744

// JObjType represents the type of a file-system record.
// Used in B-tree keys to identify the type of data stored.
// Reference: page 687
type JObjType uint8

const (
	// JObjTypeAny matches any record type.
	JObjTypeAny JObjType = 0

	// JObjTypeSnapMetadata marks a snapshot metadata record.
	JObjTypeSnapMetadata JObjType = 1

	// JObjTypeExtent marks a physical extent record.
	JObjTypeExtent JObjType = 2

	// JObjTypeInode marks an inode record.
	JObjTypeInode JObjType = 3

	// JObjTypeXattr marks an extended attribute record.
	JObjTypeXattr JObjType = 4

	// JObjTypeSiblingLink marks a sibling link record.
	JObjTypeSiblingLink JObjType = 5

	// JObjTypeDStreamID marks a data stream ID record.
	JObjTypeDStreamID JObjType = 6

	// JObjTypeCryptoState marks a crypto state record.
	JObjTypeCryptoState JObjType = 7

	// JObjTypeFileExtent marks a file extent record. Its key carries a
	// logical address that disambiguates extents sharing one file id.
	JObjTypeFileExtent JObjType = 8

	// JObjTypeDirRec marks a directory entry record. Its key carries a
	// name (or a name hash) that disambiguates entries sharing one
	// parent directory id.
	JObjTypeDirRec JObjType = 9

	// JObjTypeDirStats marks a directory stats record.
	JObjTypeDirStats JObjType = 10

	// JObjTypeSnapName marks a snapshot name record.
	JObjTypeSnapName JObjType = 11

	// JObjTypeSiblingMap marks a sibling map record.
	JObjTypeSiblingMap JObjType = 12

	// JObjTypeFileInfo marks a file info record.
	JObjTypeFileInfo JObjType = 13

	// JObjTypeMaxValid is the highest valid object type.
	JObjTypeMaxValid JObjType = 13

	// JObjTypeInvalid marks an invalid record type.
	JObjTypeInvalid JObjType = 15
)

// ObjIdMask is the bit mask used to access the object identifier
// packed into a j_key_t's obj_id_and_type field.
// Reference: page 684
const ObjIdMask uint64 = 0x0fffffffffffffff

// ObjTypeMask is the bit mask used to access the record type packed
// into a j_key_t's obj_id_and_type field.
// Reference: page 684
const ObjTypeMask uint64 = 0xf000000000000000

// ObjTypeShift is the bit shift used to access the record type packed
// into a j_key_t's obj_id_and_type field.
// Reference: page 684
const ObjTypeShift uint64 = 60

// JDrecLenMask is the bit mask used to access the length of a hashed
// directory entry's name, including the trailing null character.
// Reference: page 79
const JDrecLenMask uint32 = 0x000003ff

// JDrecHashMask is the bit mask used to access the hash of a hashed
// directory entry's name.
// Reference: page 79
const JDrecHashMask uint32 = 0xfffffc00

// JDrecHashShift is the bit shift used to access the hash of a hashed
// directory entry's name.
// Reference: page 79
const JDrecHashShift uint32 = 10
