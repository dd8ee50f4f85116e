package store

import "sync"

// Key layout:
//
//	<prefix><id>                              document
//	<prefix>idx:<name>:<value>                unique index -> id
//	<prefix>idx:<name>:<value>\x00<id>        multi-value index -> id
const (
	indexMarker    = "idx:"
	multiSeparator = 0x00
)

// keyPool provides reusable byte slices for read-path keys.
// Keys handed to txn.Set are retained by Badger until commit and must not come from the pool.
var keyPool = sync.Pool{
	New: func() any {
		return make([]byte, 0, 256)
	},
}

// buildKey constructs a document key using a pooled buffer.
// Callers MUST call releaseKey when done with the key.
func buildKey(prefix, id string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = append(buf, prefix...)
	buf = append(buf, id...)
	return buf
}

// buildIndexKey constructs a unique-index key using a pooled buffer.
// Callers MUST call releaseKey when done with the key.
func buildIndexKey(prefix, indexName, value string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = appendIndexKey(buf[:0], prefix, indexName, value)
	return buf
}

// releaseKey returns a key buffer to the pool for reuse.
func releaseKey(key []byte) {
	if cap(key) <= 512 {
		keyPool.Put(key[:0]) //nolint:staticcheck // slice header copy is fine here
	}
}

func appendIndexKey(buf []byte, prefix, indexName, value string) []byte {
	buf = append(buf, prefix...)
	buf = append(buf, indexMarker...)
	buf = append(buf, indexName...)
	buf = append(buf, ':')
	buf = append(buf, value...)
	return buf
}

// indexKey returns a freshly allocated unique-index key, safe for writes.
func indexKey(prefix, indexName, value string) []byte {
	return appendIndexKey(make([]byte, 0, len(prefix)+len(indexMarker)+len(indexName)+len(value)+1), prefix, indexName, value)
}

// multiIndexKey returns a freshly allocated multi-value index key, safe for writes.
func multiIndexKey(prefix, indexName, value, id string) []byte {
	buf := indexKey(prefix, indexName, value)
	buf = append(buf, multiSeparator)
	return append(buf, id...)
}

// multiIndexPrefix is the scan prefix for every id stored under value.
func multiIndexPrefix(prefix, indexName, value string) []byte {
	return append(indexKey(prefix, indexName, value), multiSeparator)
}
