// Package superblocks reads the container and volume superblocks that
// name the roots of the trees internal/btrees walks. Unlike a node,
// neither superblock is addressed through an object map: the
// container superblock is read at a given block number, normally
// block zero, and a volume
// superblock is reached via the container's own object map using the
// oid recorded in NxSuperblockT.NxFsOid.
package superblocks

import (
	"encoding/binary"
	"fmt"

	"github.com/kferran/apfsck/internal/interfaces"
	"github.com/kferran/apfsck/internal/objects"
	"github.com/kferran/apfsck/internal/types"
)

// nxSuperblockMinSize is the number of leading bytes of an
// nx_superblock_t this reader actually decodes: the object header,
// the fixed container-level fields, and the NxFsOid volume array. The
// on-disk structure continues for several hundred more bytes
// (checkpoint bookkeeping, Fusion fields, the keybag location) that
// this checker never reads.
const nxSuperblockMinSize = 184 + types.NxMaxFileSystemsConst*8

// ReadContainerSuperblock reads and validates the container
// superblock at blockNr, normally block zero. It fails fatally if the
// object checksum doesn't verify or the magic doesn't match NxMagic.
func ReadContainerSuperblock(dev interfaces.BlockDeviceReader, blockNr types.Paddr) (*types.NxSuperblockT, error) {
	raw, err := dev.ReadBlock(blockNr)
	if err != nil {
		return nil, fmt.Errorf("reading container superblock at block %d: %w", blockNr, err)
	}
	if uint32(len(raw)) < nxSuperblockMinSize {
		return nil, fmt.Errorf("block %d: too small for a container superblock", blockNr)
	}
	if !objects.VerifyChecksum(raw) {
		return nil, fmt.Errorf("block %d: container superblock checksum mismatch", blockNr)
	}

	le := binary.LittleEndian
	sb := &types.NxSuperblockT{}

	sb.NxO.OOid = types.OidT(le.Uint64(raw[8:16]))
	sb.NxO.OXid = types.XidT(le.Uint64(raw[16:24]))
	sb.NxO.OType = le.Uint32(raw[24:28])
	sb.NxO.OSubtype = le.Uint32(raw[28:32])

	sb.NxMagic = le.Uint32(raw[32:36])
	if sb.NxMagic != types.NxMagic {
		return nil, fmt.Errorf("block %d: container superblock magic 0x%08x, want 0x%08x", blockNr, sb.NxMagic, types.NxMagic)
	}

	sb.NxBlockSize = le.Uint32(raw[36:40])
	sb.NxBlockCount = le.Uint64(raw[40:48])
	sb.NxFeatures = le.Uint64(raw[48:56])
	sb.NxReadonlyCompatibleFeatures = le.Uint64(raw[56:64])
	sb.NxIncompatibleFeatures = le.Uint64(raw[64:72])
	copy(sb.NxUuid[:], raw[72:88])
	sb.NxNextOid = types.OidT(le.Uint64(raw[88:96]))
	sb.NxNextXid = types.XidT(le.Uint64(raw[96:104]))

	// Bytes [104:152) hold checkpoint descriptor/data area bookkeeping
	// this checker never consults.
	sb.NxSpacemanOid = types.OidT(le.Uint64(raw[152:160]))
	sb.NxOmapOid = types.OidT(le.Uint64(raw[160:168]))
	sb.NxReaperOid = types.OidT(le.Uint64(raw[168:176]))

	// Bytes [176:180) hold the test-type field this checker ignores.
	sb.NxMaxFileSystems = le.Uint32(raw[180:184])

	offset := 184
	for i := 0; i < types.NxMaxFileSystemsConst; i++ {
		sb.NxFsOid[i] = types.OidT(le.Uint64(raw[offset : offset+8]))
		offset += 8
	}

	if sb.NxOmapOid == types.OidInvalid {
		return nil, fmt.Errorf("block %d: container superblock has no object map", blockNr)
	}

	return sb, nil
}

// FirstVolume returns the oid of the first occupied slot in sb's
// volume array, in ascending index order. It fails if the container
// names no volumes at all, which a consistency checker has nothing to
// walk.
func FirstVolume(sb *types.NxSuperblockT) (types.OidT, error) {
	limit := sb.NxMaxFileSystems
	if limit > types.NxMaxFileSystemsConst {
		limit = types.NxMaxFileSystemsConst
	}
	for i := uint32(0); i < limit; i++ {
		if sb.NxFsOid[i] != types.OidInvalid {
			return sb.NxFsOid[i], nil
		}
	}
	return 0, fmt.Errorf("container names no volumes")
}
