package tiles

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/binary"
	"io"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-parcels/internal/feature"
)

func TestTileID(t *testing.T) {
	cases := []struct {
		z, x, y uint32
		id      uint64
	}{
		{0, 0, 0, 0},
		{1, 0, 0, 1},
		{1, 0, 1, 2},
		{1, 1, 1, 3},
		{1, 1, 0, 4},
		{2, 0, 0, 5},
	}
	for _, c := range cases {
		assert.Equal(t, c.id, TileID(maptile.New(c.x, c.y, maptile.Zoom(c.z))), "%d/%d/%d", c.z, c.x, c.y)
	}
}

func TestHeaderIs127Bytes(t *testing.T) {
	assert.Equal(t, 127, headerLen)
}

func TestExportWritesArchive(t *testing.T) {
	all := testCollection()
	coll := feature.NewCollection(all.Config(), all.Features()[:1])

	a, err := Export(context.Background(), coll, []string{"rgba(1, 2, 3, 0.70)"}, 13, 14)
	require.NoError(t, err)
	require.Positive(t, a.Len())

	var buf bytes.Buffer
	n, err := a.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	var h archiveHeader
	require.NoError(t, binary.Read(bytes.NewReader(buf.Bytes()), binary.LittleEndian, &h))
	assert.Equal(t, "PMTiles", string(h.Magic[:]))
	assert.Equal(t, uint8(3), h.Version)
	assert.Equal(t, uint64(a.Len()), h.TileEntries)
	assert.Equal(t, uint8(13), h.MinZoom)
	assert.Equal(t, uint8(14), h.MaxZoom)
	assert.Equal(t, uint64(buf.Len()), h.TileDataOffset+h.TileDataLength)

	zr, err := gzip.NewReader(bytes.NewReader(buf.Bytes()[h.RootOffset : h.RootOffset+h.RootLength]))
	require.NoError(t, err)
	dir, err := io.ReadAll(zr)
	require.NoError(t, err)
	count, _ := binary.Uvarint(dir)
	assert.Equal(t, uint64(a.Len()), count)
}

func TestExportRejectsBadZoomRange(t *testing.T) {
	_, err := Export(context.Background(), testCollection(), nil, 5, 2)
	assert.Error(t, err)
}

func TestEmptyArchive(t *testing.T) {
	a := NewArchive("parcel", orb.Bound{})
	a.Add(maptile.New(0, 0, 0), nil)
	assert.Zero(t, a.Len())
	_, err := a.WriteTo(io.Discard)
	assert.Error(t, err)
}
