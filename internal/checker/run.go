// Package checker wires the block device, the container and volume
// superblocks, and the B-tree traversal core together into the one
// operation the CLI actually performs: open a container, find a
// volume, and walk its object map and catalog tree end to end.
package checker

import (
	"fmt"

	"github.com/kferran/apfsck/internal/btrees"
	"github.com/kferran/apfsck/internal/device"
	"github.com/kferran/apfsck/internal/superblocks"
	"github.com/kferran/apfsck/internal/types"
)

// Report summarizes one successful run, for the CLI to print.
type Report struct {
	ContainerUUID types.UUID
	VolumeUUID    types.UUID
	BlockSize     uint32
	BlockCount    uint64
	VolumeOid     types.OidT
	CatalogRoot   types.Paddr
}

// Options configures a single check run.
type Options struct {
	// ContainerPath is the container file or image to open.
	ContainerPath string

	// BlockSize is used only until the container superblock is read;
	// once NxSuperblockT.NxBlockSize is known, the run re-opens the
	// device at that size if it differs.
	BlockSize uint32

	// SuperblockAddr is the physical block number of the container
	// superblock, normally zero.
	SuperblockAddr types.Paddr

	// VolumeOid, if non-zero, selects a specific volume instead of
	// the first one the container names.
	VolumeOid types.OidT
}

// Run opens the container at opts.ContainerPath, validates its
// superblock, resolves a volume, and checks that volume's object map
// and catalog tree from the root down. Any fatal condition anywhere
// in that chain is returned as an error; the caller (the CLI) is
// responsible for turning that into the process's exit code.
func Run(opts Options) (*Report, error) {
	dev, err := device.Open(opts.ContainerPath, opts.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("opening container: %w", err)
	}
	defer dev.Close()

	nxSb, err := superblocks.ReadContainerSuperblock(dev, opts.SuperblockAddr)
	if err != nil {
		return nil, fmt.Errorf("container superblock: %w", err)
	}

	if nxSb.NxBlockSize != opts.BlockSize {
		dev.Close()
		dev, err = device.Open(opts.ContainerPath, nxSb.NxBlockSize)
		if err != nil {
			return nil, fmt.Errorf("reopening container at block size %d: %w", nxSb.NxBlockSize, err)
		}
		defer dev.Close()
	}

	containerOmapRoot, err := btrees.ParseOmapBtree(dev, nxSb.NxOmapOid)
	if err != nil {
		return nil, fmt.Errorf("container object map: %w", err)
	}

	volumeOid := opts.VolumeOid
	if volumeOid == types.OidInvalid {
		volumeOid, err = superblocks.FirstVolume(nxSb)
		if err != nil {
			return nil, err
		}
	}

	volumeBlockNr, err := btrees.OmapLookup(dev, containerOmapRoot, volumeOid)
	if err != nil {
		return nil, fmt.Errorf("resolving volume %d: %w", volumeOid, err)
	}

	volSb, err := superblocks.ReadVolumeSuperblock(dev, volumeBlockNr)
	if err != nil {
		return nil, fmt.Errorf("volume superblock: %w", err)
	}

	volumeOmapRoot, err := btrees.ParseOmapBtree(dev, volSb.ApfsOmapOid)
	if err != nil {
		return nil, fmt.Errorf("volume object map: %w", err)
	}

	catalogRoot, err := btrees.ParseCatBtree(dev, volSb.ApfsRootTreeOid, volumeOmapRoot)
	if err != nil {
		return nil, fmt.Errorf("catalog tree: %w", err)
	}

	return &Report{
		ContainerUUID: nxSb.NxUuid,
		VolumeUUID:    volSb.ApfsVolUuid,
		BlockSize:     nxSb.NxBlockSize,
		BlockCount:    nxSb.NxBlockCount,
		VolumeOid:     volumeOid,
		CatalogRoot:   catalogRoot.BlockNr,
	}, nil
}
