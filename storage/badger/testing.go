package badger

// NewMemoryStore opens an in-memory store that owns its backend.
func NewMemoryStore(opts ...Option) (*Store, error) {
	return OpenStore("", true, opts...)
}
