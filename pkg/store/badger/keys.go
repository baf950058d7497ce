package badger

// Key Namespace Schema
// ====================
//
// BadgerDB is a flat key-value store, so all data types share one keyspace.
// Namespaced prefixes keep them apart and make prefix scans cheap:
//
//	f:<filename>  ->  JSON-encoded store.FileRecord
//	a:<username>  ->  raw password bytes
//
// Filenames and usernames are unique keys in their own tables upstream, so
// the prefixed keys are unique too. Listing the catalog is a single prefix
// scan over "f:", which BadgerDB returns in byte order, i.e. sorted by
// filename.

const (
	filePrefix    = "f:"
	accountPrefix = "a:"
)

func fileKey(filename string) []byte {
	return []byte(filePrefix + filename)
}

func accountKey(username string) []byte {
	return []byte(accountPrefix + username)
}
