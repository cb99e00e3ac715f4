// Package interfaces collects the small seams between the traversal
// core and its external collaborators, so that tests can substitute a
// synthetic device without touching a real file.
package interfaces

import "github.com/kferran/apfsck/internal/types"

// BlockDeviceReader provides read-only access to the fixed-size
// blocks of a container. Implementations are free to serve blocks
// from an open file or, in tests, from a plain map.
type BlockDeviceReader interface {
	// ReadBlock returns the block_size bytes stored at the given
	// physical block number. The returned slice must not be mutated;
	// callers that need to keep bytes past their next call copy them.
	ReadBlock(blockNr types.Paddr) ([]byte, error)

	// BlockSize returns the size, in bytes, of every block on this
	// device.
	BlockSize() uint32
}
