package store

// Slot is a single named durable slot holding one opaque state
// snapshot. Saving overwrites any prior snapshot; there is no
// versioning and no merge.
type Slot interface {
	Save(data []byte) error
	// Load returns the stored snapshot, or ok=false when nothing has
	// been saved yet.
	Load() (data []byte, ok bool, err error)
	Close() error
}
