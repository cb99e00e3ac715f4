// Package keys decodes the two key shapes this checker ever compares
// — object map keys and catalog keys — into a single comparable form,
// and implements the ordering used throughout the traversal and query
// engine. Real APFS key decoding covers a dozen record types; this
// checker only needs enough of each to order records and to collapse
// the disambiguating fields that a MULTIPLE query must ignore.
package keys

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/kferran/apfsck/internal/types"
)

// Key is the decoded, comparable form of either an object map key or
// a catalog key. Primary carries the field both shapes sort on first:
// an object map key's object id, or a catalog key's packed
// obj_id_and_type. Secondary and Name carry whatever a given record
// type uses to disambiguate otherwise-equal primary keys: an object
// map key's transaction id, a file extent's logical address, or a
// directory entry's or extended attribute's name.
type Key struct {
	Primary   uint64
	Secondary uint64
	Name      []byte
}

// LeastKey compares less than every key ever decoded from a valid
// node; it seeds check_subtree's running lower bound.
var LeastKey = Key{}

// Compare orders two keys, returning <0, 0, or >0 the way
// strings.Compare does. Primary is compared first; ties fall through
// to Secondary, and a final tie on Secondary falls through to Name.
func Compare(a, b Key) int {
	switch {
	case a.Primary < b.Primary:
		return -1
	case a.Primary > b.Primary:
		return 1
	}

	switch {
	case a.Secondary < b.Secondary:
		return -1
	case a.Secondary > b.Secondary:
		return 1
	}

	return bytes.Compare(a.Name, b.Name)
}

// StripDisambiguator returns a copy of k with every field that exists
// only to break ties between records sharing one primary key removed.
// A MULTIPLE query applies this to the decoded key of every candidate
// record, so that six extents or directory entries sharing one object
// id compare equal and are all visited.
func StripDisambiguator(k Key) Key {
	return Key{Primary: k.Primary}
}

// DecodeOmapKey decodes an omap_key_t: an 8-byte object identifier
// followed by an 8-byte transaction identifier.
func DecodeOmapKey(data []byte) (Key, error) {
	if len(data) < int(types.OmapKeySize) {
		return Key{}, fmt.Errorf("omap key too short: %d bytes", len(data))
	}
	return Key{
		Primary:   binary.LittleEndian.Uint64(data[0:8]),
		Secondary: binary.LittleEndian.Uint64(data[8:16]),
	}, nil
}

// MakeOmapKey builds the search key used to look up the current
// mapping for a virtual object identifier. Passing the maximum
// transaction id as the secondary field means the bisection in
// search_node, which finds the greatest key <= the target, lands on
// the most recent version of the object at or before "now".
func MakeOmapKey(oid types.OidT) Key {
	return Key{Primary: uint64(oid), Secondary: ^uint64(0)}
}

// DecodeCatalogKey decodes a catalog key. Every catalog key begins
// with a j_key_t; most record types carry nothing further, but file
// extents, directory entries, and extended attributes each append a
// field that disambiguates multiple records sharing one object id.
func DecodeCatalogKey(data []byte) (Key, error) {
	if len(data) < 8 {
		return Key{}, fmt.Errorf("catalog key too short: %d bytes", len(data))
	}

	hdr := types.JKeyT{ObjIdAndType: binary.LittleEndian.Uint64(data[0:8])}
	k := Key{Primary: hdr.ObjIdAndType}

	rest := data[8:]
	switch hdr.ObjectType() {
	case types.JObjTypeFileExtent:
		if len(rest) < 8 {
			return Key{}, fmt.Errorf("file extent key too short: %d bytes", len(data))
		}
		k.Secondary = binary.LittleEndian.Uint64(rest[0:8])

	case types.JObjTypeDirRec:
		if len(rest) < 4 {
			return Key{}, fmt.Errorf("directory entry key too short: %d bytes", len(data))
		}
		nameLenAndHash := binary.LittleEndian.Uint32(rest[0:4])
		k.Secondary = uint64((nameLenAndHash & types.JDrecHashMask) >> types.JDrecHashShift)
		nameLen := int(nameLenAndHash & types.JDrecLenMask)
		name, err := trimName(rest[4:], nameLen)
		if err != nil {
			return Key{}, fmt.Errorf("directory entry name: %w", err)
		}
		k.Name = name

	case types.JObjTypeXattr:
		if len(rest) < 2 {
			return Key{}, fmt.Errorf("xattr key too short: %d bytes", len(data))
		}
		nameLen := int(binary.LittleEndian.Uint16(rest[0:2]))
		name, err := trimName(rest[2:], nameLen)
		if err != nil {
			return Key{}, fmt.Errorf("xattr name: %w", err)
		}
		k.Name = name
	}

	return k, nil
}

func trimName(data []byte, nameLen int) ([]byte, error) {
	if nameLen < 0 || nameLen > len(data) {
		return nil, fmt.Errorf("name length %d exceeds available %d bytes", nameLen, len(data))
	}
	name := make([]byte, nameLen)
	copy(name, data[:nameLen])
	return name, nil
}
