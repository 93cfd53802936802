package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// both implementations must behave identically through the interface
func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"fs":  NewFSStore(t.TempDir()),
		"mem": NewMemStore(),
	}
}

func TestStoreReadWrite(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			assert.False(t, store.Exists("Books/Dune.md"))

			require.NoError(t, store.Write("Books/Dune.md", "content"))
			assert.True(t, store.Exists("Books/Dune.md"))

			content, err := store.Read("Books/Dune.md")
			require.NoError(t, err)
			assert.Equal(t, "content", content)

			_, err = store.Read("Books/missing.md")
			assert.Error(t, err)
		})
	}
}

func TestStoreRename(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Write("Books/Old.md", "content"))
			require.NoError(t, store.Rename("Books/Old.md", "Books/New.md"))

			assert.False(t, store.Exists("Books/Old.md"))
			content, err := store.Read("Books/New.md")
			require.NoError(t, err)
			assert.Equal(t, "content", content)

			assert.Error(t, store.Rename("Books/Old.md", "Books/Gone.md"))
		})
	}
}

func TestStoreDelete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Write("Books/Dune.md", "content"))
			require.NoError(t, store.Delete("Books/Dune.md"))
			assert.False(t, store.Exists("Books/Dune.md"))
			assert.Error(t, store.Delete("Books/Dune.md"))
		})
	}
}

func TestStoreList(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.MkdirAll("Books"))
			require.NoError(t, store.Write("Books/B.md", "b"))
			require.NoError(t, store.Write("Books/A.md", "a"))
			require.NoError(t, store.Write("Books/nested/C.md", "c"))
			require.NoError(t, store.Write("Other.md", "o"))

			names, err := store.List("Books")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"A.md", "B.md"}, names)
		})
	}
}
