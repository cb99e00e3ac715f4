package superblocks

import (
	"encoding/binary"
	"fmt"

	"github.com/kferran/apfsck/internal/interfaces"
	"github.com/kferran/apfsck/internal/objects"
	"github.com/kferran/apfsck/internal/types"
)

// apfsSuperblockMinSize is the number of leading bytes of an
// apfs_superblock_t this reader decodes: the object header, the
// fields through the tree-oid quartet, and the volume uuid that
// follows a little further on. Everything else — the metadata crypto
// state, revert bookkeeping, file and snapshot counters — goes
// unread.
const apfsSuperblockMinSize = 352

// ReadVolumeSuperblock reads and validates the volume superblock at
// blockNr — the block a container's object map resolves one of its
// NxFsOid entries to. It fails fatally if the object checksum doesn't
// verify or the magic doesn't match ApfsMagic.
func ReadVolumeSuperblock(dev interfaces.BlockDeviceReader, blockNr types.Paddr) (*types.ApfsSuperblockT, error) {
	raw, err := dev.ReadBlock(blockNr)
	if err != nil {
		return nil, fmt.Errorf("reading volume superblock at block %d: %w", blockNr, err)
	}
	if uint32(len(raw)) < apfsSuperblockMinSize {
		return nil, fmt.Errorf("block %d: too small for a volume superblock", blockNr)
	}
	if !objects.VerifyChecksum(raw) {
		return nil, fmt.Errorf("block %d: volume superblock checksum mismatch", blockNr)
	}

	le := binary.LittleEndian
	sb := &types.ApfsSuperblockT{}

	sb.ApfsO.OOid = types.OidT(le.Uint64(raw[8:16]))
	sb.ApfsO.OXid = types.XidT(le.Uint64(raw[16:24]))
	sb.ApfsO.OType = le.Uint32(raw[24:28])
	sb.ApfsO.OSubtype = le.Uint32(raw[28:32])

	sb.ApfsMagic = le.Uint32(raw[32:36])
	if sb.ApfsMagic != types.ApfsMagic {
		return nil, fmt.Errorf("block %d: volume superblock magic 0x%08x, want 0x%08x", blockNr, sb.ApfsMagic, types.ApfsMagic)
	}

	sb.ApfsFsIndex = le.Uint32(raw[36:40])
	sb.ApfsFeatures = le.Uint64(raw[40:48])
	sb.ApfsReadonlyCompatibleFeatures = le.Uint64(raw[48:56])
	sb.ApfsIncompatibleFeatures = le.Uint64(raw[56:64])

	// Bytes [64:96) hold the unmount time and the reserve/quota/alloc
	// block counts; [96:208) holds the metadata crypto state. None of
	// it bears on reaching or validating the catalog tree.
	sb.ApfsOmapOid = types.OidT(le.Uint64(raw[224:232]))
	sb.ApfsRootTreeOid = types.OidT(le.Uint64(raw[232:240]))

	// Bytes [240:256) hold the extent-reference and snapshot-metadata
	// tree oids, and [256:336) the revert and counter fields, neither
	// of which this checker follows.
	copy(sb.ApfsVolUuid[:], raw[336:352])

	if sb.ApfsOmapOid == types.OidInvalid {
		return nil, fmt.Errorf("block %d: volume superblock has no object map", blockNr)
	}
	if sb.ApfsRootTreeOid == types.OidInvalid {
		return nil, fmt.Errorf("block %d: volume superblock has no root tree", blockNr)
	}

	return sb, nil
}
