package storage

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.Save("course-1/cert.pdf", []byte("%PDF-1.3"))
	require.NoError(t, err)
	require.Equal(t, "course-1/cert.pdf", rel)

	f, err := store.Open(rel)
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.Equal(t, "%PDF-1.3", string(body))

	require.NoError(t, store.Delete(rel))
	require.NoError(t, store.Delete(rel))
	_, err = store.Open(rel)
	require.Error(t, err)
}

func TestLocalStorageStaysInsideBaseDir(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.Save("../../escape.pdf", []byte("x"))
	require.NoError(t, err)
	f, err := store.Open("escape.pdf")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.Equal(t, "../../escape.pdf", rel)
}
