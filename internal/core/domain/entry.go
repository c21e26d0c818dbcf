package domain

// DefaultNamespace is the id of the implicit, always-open namespace.
const DefaultNamespace uint16 = 0

// Entry is one record of the entry store.
//
// Encrypted entries keep their logical type (Str or Blob) and hold the
// ciphertext as payload.
type Entry struct {
	Key       string
	Value     Value
	Encrypted bool
	Namespace uint16
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	e.Value = Clone(e.Value)
	return e
}

// Type returns the logical type of the stored value.
func (e Entry) Type() Type {
	if e.Value == nil {
		return TypeUnspecified
	}
	return e.Value.Type()
}

// Default is a registered fallback value used by explicit resets.
type Default struct {
	Key   string
	Value Value
}
