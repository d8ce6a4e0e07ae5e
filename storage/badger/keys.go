package badger

const (
	chunkRecordPrefix = "chkrec"
	chunkDimensionKey = "chkdim"
)

// makeChunkKey generates the key for a chunk record.
// Format: prefix:chunkID
func makeChunkKey(chunkID string) []byte {
	return []byte(chunkRecordPrefix + ":" + chunkID)
}

func chunkPrefix() []byte {
	return []byte(chunkRecordPrefix + ":")
}
