package types

// JKeyT is the header at the beginning of every catalog (file-system)
// key. The object identifier and the record type are packed together
// so that a tree sorting by the raw 64-bit field naturally groups all
// of one object's records together, ordered by type.
// Reference: page 75
type JKeyT struct {
	// ObjIdAndType packs the object id in the low 60 bits and the
	// record type (a JObjType) in the high 4 bits.
	ObjIdAndType uint64
}

// ObjectId extracts the object identifier from a packed header.
func (k JKeyT) ObjectId() uint64 {
	return k.ObjIdAndType & ObjIdMask
}

// ObjectType extracts the record type from a packed header.
func (k JKeyT) ObjectType() JObjType {
	return JObjType((k.ObjIdAndType & ObjTypeMask) >> ObjTypeShift)
}

// JFileExtentKeyT is the key half of a file extent record. Two
// extents belonging to the same file are disambiguated by
// LogicalAddr, the byte offset within the file where the extent
// begins.
// Reference: page 103
type JFileExtentKeyT struct {
	Hdr         JKeyT
	LogicalAddr uint64
}

// JDrecHashedKeyT is the key half of a directory entry record. Two
// entries in the same directory are disambiguated by Name (and,
// incidentally, by a precomputed hash of it carried alongside the
// length in NameLenAndHash).
// Reference: page 78
type JDrecHashedKeyT struct {
	Hdr            JKeyT
	NameLenAndHash uint32
	Name           []byte
}

// NameLen returns the length of the entry's name, including its
// trailing null character.
func (k JDrecHashedKeyT) NameLen() int {
	return int(k.NameLenAndHash & JDrecLenMask)
}

// JXattrKeyT is the key half of an extended attribute record. Two
// attributes on the same object are disambiguated by Name.
// Reference: page 85
type JXattrKeyT struct {
	Hdr     JKeyT
	NameLen uint16
	Name    []byte
}
