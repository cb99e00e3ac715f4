// Package device acquires read-only block views from a container file
// or image. It is the outer program's block-I/O layer: the only
// component in this module that ever touches the filesystem.
package device

import (
	"fmt"
	"os"

	"github.com/kferran/apfsck/internal/types"
)

// FileDevice serves blocks from an open file by seeking and reading
// block_size bytes at a time. A page-aligned, read-only mapping would
// do the same job with less copying; ReadAt gives the same semantics
// without requiring platform-specific mmap support.
type FileDevice struct {
	file      *os.File
	blockSize uint32
	size      int64
}

// Open opens path read-only and wraps it as a FileDevice with the
// given block size. The caller is responsible for validating
// blockSize against the container superblock before trusting reads
// from this device.
func Open(path string, blockSize uint32) (*FileDevice, error) {
	if blockSize == 0 {
		return nil, fmt.Errorf("block size must be non-zero")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening container: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("statting container: %w", err)
	}

	return &FileDevice{file: f, blockSize: blockSize, size: info.Size()}, nil
}

// ReadBlock returns a freshly allocated copy of the block at blockNr.
func (d *FileDevice) ReadBlock(blockNr types.Paddr) ([]byte, error) {
	if !blockNr.Validate() {
		return nil, fmt.Errorf("invalid block number %d", blockNr)
	}

	offset := int64(blockNr) * int64(d.blockSize)
	if offset < 0 || offset+int64(d.blockSize) > d.size {
		return nil, fmt.Errorf("block %d is beyond the end of the container", blockNr)
	}

	buf := make([]byte, d.blockSize)
	if _, err := d.file.ReadAt(buf, offset); err != nil {
		return nil, fmt.Errorf("reading block %d: %w", blockNr, err)
	}

	return buf, nil
}

// BlockSize returns the fixed block size this device was opened with.
func (d *FileDevice) BlockSize() uint32 {
	return d.blockSize
}

// Close releases the underlying file handle.
func (d *FileDevice) Close() error {
	return d.file.Close()
}
