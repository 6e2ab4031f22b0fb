package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exzackly/exzos/disk"
	"github.com/exzackly/exzos/fs"
)

func TestDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exzos.img")
	g := disk.DefaultGeometry()

	store, err := disk.OpenFileStore(path, g)
	require.NoError(t, err)

	dsk, err := disk.New(g, store)
	require.NoError(t, err)

	drv, err := fs.NewDriver(dsk, nil, nil)
	require.NoError(t, err)

	require.NoError(t, drv.Format(false))
	require.NoError(t, drv.Create("notes"))
	require.NoError(t, drv.Write("notes", []byte("hello")))
	require.NoError(t, store.Close())

	var out bytes.Buffer
	require.NoError(t, dump(&out, path, g, false))

	require.Contains(t, out.String(), "notes")
	require.Contains(t, out.String(), "head=1:0:0")
	require.NotContains(t, out.String(), "[blocks]")

	out.Reset()
	require.NoError(t, dump(&out, path, g, true))
	require.Contains(t, out.String(), "[blocks]")
	require.Contains(t, out.String(), "....hello")
}
