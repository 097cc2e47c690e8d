package fatbind

// FSKind identifies the file system found on a bound volume.
type FSKind int

const (
	KindUnknown FSKind = iota
	KindFAT12
	KindFAT16
	KindFAT32
	KindExFAT
)

func (k FSKind) String() string {
	switch k {
	case KindFAT12:
		return "FAT12"
	case KindFAT16:
		return "FAT16"
	case KindFAT32:
		return "FAT32"
	case KindExFAT:
		return "exFAT"
	default:
		return "unknown"
	}
}

// Attribute flags of a FAT directory entry.
const (
	// AttrReadOnly marks a directory entry as read-only.
	AttrReadOnly = 1 << iota

	// AttrHidden marks a directory entry as "hidden", meaning it wouldn't show up in
	// normal directory listings. Listings here ignore it.
	AttrHidden

	// AttrSystem marks a directory entry as essential to the operating system.
	AttrSystem

	// AttrVolumeLabel marks the entry holding the volume label. It must reside in the
	// root directory, and never names a file.
	AttrVolumeLabel

	// AttrDirectory marks a directory entry as being a directory.
	AttrDirectory

	// AttrArchived is set by writers whenever an entry is created or modified.
	AttrArchived

	AttrDevice
	AttrReserved
)

// AttrLongName is the combination of attributes that marks a long file name slot
// rather than a real directory entry.
const AttrLongName = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeLabel
