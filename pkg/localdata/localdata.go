// Package localdata persists small named records on the local device.
// It is the single choke point for cart and session state: stores own the
// record contents, backends own durability. Absence of a record is not an
// error; it means the owning store starts from its zero state.
package localdata

// Backend reads and writes opaque named records.
type Backend interface {
	// Load returns the record bytes and whether the record exists.
	Load(name string) ([]byte, bool, error)
	// Store replaces the record atomically.
	Store(name string, data []byte) error
	// Delete removes the record. Deleting a missing record is a no-op.
	Delete(name string) error
}
