package types

// NxSuperblockT is the container superblock. Only the fields the
// checker needs to locate the object map, enumerate volumes, and
// validate basic sanity are modeled here; the full structure runs to
// page 38 of the reference and covers checkpoint descriptor areas,
// the Fusion drive fields, and the keybag location, none of which the
// traversal core touches.
// Reference: page 27
type NxSuperblockT struct {
	// The object's header.
	NxO ObjPhysT

	// A number that verifies this is really an nx_superblock_t.
	NxMagic uint32

	// The logical block size used throughout the container.
	NxBlockSize uint32

	// The total number of logical blocks available in the container.
	NxBlockCount uint64

	// Feature flags: optional, read-only-compatible, and incompatible.
	NxFeatures                   uint64
	NxReadonlyCompatibleFeatures uint64
	NxIncompatibleFeatures       uint64

	// The container's universally unique identifier.
	NxUuid UUID

	// The next object identifier and transaction identifier that will
	// be assigned.
	NxNextOid OidT
	NxNextXid XidT

	// The ephemeral object identifier for the space manager.
	NxSpacemanOid OidT

	// The virtual object identifier of the container's object map.
	NxOmapOid OidT

	// The ephemeral object identifier for the reaper.
	NxReaperOid OidT

	// The maximum number of volumes this container can hold, and the
	// virtual object identifiers of each volume superblock actually
	// present. An unused slot holds OidInvalid.
	NxMaxFileSystems uint32
	NxFsOid          [NxMaxFileSystemsConst]OidT
}

// NxMagic is the required value of NxSuperblockT.NxMagic ('NXSB').
// Reference: page 28
const NxMagic uint32 = 'N' | 'X'<<8 | 'S'<<16 | 'B'<<24

// NxMaxFileSystemsConst is the fixed length of the NxFsOid array: the
// largest number of volumes a single container can hold.
// Reference: page 33
const NxMaxFileSystemsConst = 100

// OidInvalid marks an object identifier slot as unused, whether in
// NxSuperblockT.NxFsOid or elsewhere.
// Reference: page 22
const OidInvalid OidT = 0
