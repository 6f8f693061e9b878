package badger

import (
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// newTestDB opens a badgerhold store in a temp dir and wraps it
func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	options := badgerhold.DefaultOptions
	options.Dir = t.TempDir()
	options.ValueDir = options.Dir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store, logger: arbor.NewLogger()}
}
