package superblocks

import (
	"encoding/binary"
	"testing"

	"github.com/kferran/apfsck/internal/objects"
	"github.com/kferran/apfsck/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDevice struct {
	blocks    map[types.Paddr][]byte
	blockSize uint32
}

func newMockDevice(blockSize uint32) *mockDevice {
	return &mockDevice{blocks: make(map[types.Paddr][]byte), blockSize: blockSize}
}

func (m *mockDevice) ReadBlock(blockNr types.Paddr) ([]byte, error) {
	return m.blocks[blockNr], nil
}

func (m *mockDevice) BlockSize() uint32 { return m.blockSize }

func buildContainerSuperblock(t *testing.T, omapOid types.OidT, fsOids []types.OidT) []byte {
	t.Helper()
	raw := make([]byte, 4096)
	le := binary.LittleEndian

	le.PutUint64(raw[8:16], 1)
	le.PutUint32(raw[32:36], types.NxMagic)
	le.PutUint32(raw[36:40], 4096)
	le.PutUint64(raw[40:48], 1000)
	le.PutUint64(raw[160:168], uint64(omapOid))
	le.PutUint32(raw[180:184], types.NxMaxFileSystemsConst)

	offset := 184
	for i := 0; i < types.NxMaxFileSystemsConst; i++ {
		var oid types.OidT
		if i < len(fsOids) {
			oid = fsOids[i]
		}
		le.PutUint64(raw[offset:offset+8], uint64(oid))
		offset += 8
	}

	sum, ok := objects.ComputeChecksum(raw)
	require.True(t, ok)
	copy(raw[0:8], sum[:])
	return raw
}

func buildVolumeSuperblock(t *testing.T, omapOid, rootTreeOid types.OidT) []byte {
	t.Helper()
	raw := make([]byte, 4096)
	le := binary.LittleEndian

	le.PutUint64(raw[8:16], 2)
	le.PutUint32(raw[32:36], types.ApfsMagic)
	le.PutUint64(raw[224:232], uint64(omapOid))
	le.PutUint64(raw[232:240], uint64(rootTreeOid))

	sum, ok := objects.ComputeChecksum(raw)
	require.True(t, ok)
	copy(raw[0:8], sum[:])
	return raw
}

func TestReadContainerSuperblock_AcceptsValid(t *testing.T) {
	dev := newMockDevice(4096)
	dev.blocks[0] = buildContainerSuperblock(t, 9, []types.OidT{1000})

	sb, err := ReadContainerSuperblock(dev, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 9, sb.NxOmapOid)
	assert.EqualValues(t, 4096, sb.NxBlockSize)

	fsOid, err := FirstVolume(sb)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, fsOid)
}

func TestReadContainerSuperblock_RejectsBadMagic(t *testing.T) {
	dev := newMockDevice(4096)
	raw := buildContainerSuperblock(t, 9, []types.OidT{1000})
	binary.LittleEndian.PutUint32(raw[32:36], 0xdeadbeef)
	// Magic corruption invalidates the checksum too; zero it so the
	// magic check, not the checksum check, is what's exercised.
	for i := 0; i < types.MaxCksumSize; i++ {
		raw[i] = 0
	}
	sum, ok := objects.ComputeChecksum(raw)
	require.True(t, ok)
	copy(raw[0:8], sum[:])
	dev.blocks[0] = raw

	_, err := ReadContainerSuperblock(dev, 0)
	assert.Error(t, err)
}

func TestReadContainerSuperblock_RejectsChecksumMismatch(t *testing.T) {
	dev := newMockDevice(4096)
	raw := buildContainerSuperblock(t, 9, []types.OidT{1000})
	raw[500] ^= 0xff
	dev.blocks[0] = raw

	_, err := ReadContainerSuperblock(dev, 0)
	assert.Error(t, err)
}

func TestFirstVolume_RejectsEmptyContainer(t *testing.T) {
	sb := &types.NxSuperblockT{NxMaxFileSystems: types.NxMaxFileSystemsConst}
	_, err := FirstVolume(sb)
	assert.Error(t, err, "FirstVolume accepted a container naming no volumes")
}

func TestReadVolumeSuperblock_AcceptsValid(t *testing.T) {
	dev := newMockDevice(4096)
	dev.blocks[501] = buildVolumeSuperblock(t, 42, 43)

	sb, err := ReadVolumeSuperblock(dev, 501)
	require.NoError(t, err)
	assert.EqualValues(t, 42, sb.ApfsOmapOid)
	assert.EqualValues(t, 43, sb.ApfsRootTreeOid)
}

func TestReadVolumeSuperblock_RejectsMissingRootTree(t *testing.T) {
	dev := newMockDevice(4096)
	raw := buildVolumeSuperblock(t, 42, 0)
	dev.blocks[501] = raw

	_, err := ReadVolumeSuperblock(dev, 501)
	assert.Error(t, err, "ReadVolumeSuperblock accepted a volume with no root tree oid")
}
