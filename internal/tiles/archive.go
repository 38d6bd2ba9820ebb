package tiles

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/plat-parcels/internal/feature"
)

// PMTiles v3 enum values used by archives written here.
const (
	compressionGzip = 2
	tileTypeMVT     = 1
)

// archiveHeader is the fixed 127-byte PMTiles v3 header. encoding/binary
// writes it without padding, in field order.
type archiveHeader struct {
	Magic               [7]byte
	Version             uint8
	RootOffset          uint64
	RootLength          uint64
	MetadataOffset      uint64
	MetadataLength      uint64
	LeafOffset          uint64
	LeafLength          uint64
	TileDataOffset      uint64
	TileDataLength      uint64
	AddressedTiles      uint64
	TileEntries         uint64
	TileContents        uint64
	Clustered           uint8
	InternalCompression uint8
	TileCompression     uint8
	TileType            uint8
	MinZoom             uint8
	MaxZoom             uint8
	MinLonE7            int32
	MinLatE7            int32
	MaxLonE7            int32
	MaxLatE7            int32
	CenterZoom          uint8
	CenterLonE7         int32
	CenterLatE7         int32
}

var headerLen = binary.Size(archiveHeader{})

// Archive collects encoded tiles of one layer and writes them as a single
// PMTiles v3 file with one root directory.
type Archive struct {
	layer   string
	bound   orb.Bound
	minZoom maptile.Zoom
	maxZoom maptile.Zoom
	tiles   map[uint64][]byte
}

// NewArchive returns an empty archive for layer covering bound.
func NewArchive(layer string, bound orb.Bound) *Archive {
	return &Archive{layer: layer, bound: bound, minZoom: MaxZoom, tiles: map[uint64][]byte{}}
}

// Add stores the encoded tile t. Empty data is ignored.
func (a *Archive) Add(t maptile.Tile, data []byte) {
	if len(data) == 0 {
		return
	}
	a.tiles[TileID(t)] = data
	a.minZoom = min(a.minZoom, t.Z)
	a.maxZoom = max(a.maxZoom, t.Z)
}

// Len returns the number of stored tiles.
func (a *Archive) Len() int { return len(a.tiles) }

// Export renders every non-empty tile of coll between minZoom and maxZoom.
func Export(ctx context.Context, coll *feature.Collection, colors []string, minZoom, maxZoom maptile.Zoom) (*Archive, error) {
	if minZoom > maxZoom || maxZoom > MaxZoom {
		return nil, fmt.Errorf("invalid zoom range %d-%d", minZoom, maxZoom)
	}
	bound := coll.Bound()
	a := NewArchive(string(coll.Config().Type), bound)
	for z := minZoom; z <= maxZoom; z++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, t := range Covering(bound, z) {
			data, err := Encode(coll, colors, t)
			if err != nil {
				return nil, err
			}
			a.Add(t, data)
		}
	}
	return a, nil
}

// WriteTo writes the archive: header, root directory, metadata, then tile
// data clustered by tile ID.
func (a *Archive) WriteTo(w io.Writer) (int64, error) {
	if len(a.tiles) == 0 {
		return 0, fmt.Errorf("archive %s has no tiles", a.layer)
	}
	ids := make([]uint64, 0, len(a.tiles))
	for id := range a.tiles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var data bytes.Buffer
	entries := make([]dirEntry, len(ids))
	for i, id := range ids {
		t := a.tiles[id]
		entries[i] = dirEntry{id: id, offset: uint64(data.Len()), length: uint32(len(t))}
		data.Write(t)
	}

	root, err := gzipBytes(encodeDirectory(entries))
	if err != nil {
		return 0, err
	}
	meta, err := json.Marshal(map[string]any{
		"name":   a.layer,
		"format": "pbf",
		"vector_layers": []map[string]any{
			{"id": a.layer, "minzoom": a.minZoom, "maxzoom": a.maxZoom},
		},
	})
	if err != nil {
		return 0, err
	}
	if meta, err = gzipBytes(meta); err != nil {
		return 0, err
	}

	n := uint64(len(entries))
	center := a.bound.Center()
	h := archiveHeader{
		Magic:               [7]byte{'P', 'M', 'T', 'i', 'l', 'e', 's'},
		Version:             3,
		RootOffset:          uint64(headerLen),
		RootLength:          uint64(len(root)),
		MetadataOffset:      uint64(headerLen + len(root)),
		MetadataLength:      uint64(len(meta)),
		TileDataOffset:      uint64(headerLen + len(root) + len(meta)),
		TileDataLength:      uint64(data.Len()),
		AddressedTiles:      n,
		TileEntries:         n,
		TileContents:        n,
		Clustered:           1,
		InternalCompression: compressionGzip,
		TileCompression:     compressionGzip,
		TileType:            tileTypeMVT,
		MinZoom:             uint8(a.minZoom),
		MaxZoom:             uint8(a.maxZoom),
		MinLonE7:            e7(a.bound.Min[0]),
		MinLatE7:            e7(a.bound.Min[1]),
		MaxLonE7:            e7(a.bound.Max[0]),
		MaxLatE7:            e7(a.bound.Max[1]),
		CenterZoom:          uint8(a.minZoom),
		CenterLonE7:         e7(center[0]),
		CenterLatE7:         e7(center[1]),
	}

	var head bytes.Buffer
	if err := binary.Write(&head, binary.LittleEndian, h); err != nil {
		return 0, err
	}
	var total int64
	for _, part := range [][]byte{head.Bytes(), root, meta, data.Bytes()} {
		m, err := w.Write(part)
		total += int64(m)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// TileID is the PMTiles Hilbert curve ID of t.
func TileID(t maptile.Tile) uint64 {
	z := uint64(t.Z)
	acc := ((uint64(1) << (2 * z)) - 1) / 3
	x, y := uint64(t.X), uint64(t.Y)
	n := uint64(1) << z
	var d uint64
	for s := n / 2; s > 0; s /= 2 {
		var rx, ry uint64
		if x&s > 0 {
			rx = 1
		}
		if y&s > 0 {
			ry = 1
		}
		d += s * s * ((3 * rx) ^ ry)
		if ry == 0 {
			if rx == 1 {
				x = s - 1 - x
				y = s - 1 - y
			}
			x, y = y, x
		}
	}
	return acc + d
}

type dirEntry struct {
	id     uint64
	offset uint64
	length uint32
}

// encodeDirectory writes entries column-wise as varints: count, ID deltas,
// run lengths, lengths, then offsets (0 when contiguous with the previous
// entry, else offset+1).
func encodeDirectory(entries []dirEntry) []byte {
	buf := binary.AppendUvarint(nil, uint64(len(entries)))
	var last uint64
	for _, e := range entries {
		buf = binary.AppendUvarint(buf, e.id-last)
		last = e.id
	}
	for range entries {
		buf = binary.AppendUvarint(buf, 1)
	}
	for _, e := range entries {
		buf = binary.AppendUvarint(buf, uint64(e.length))
	}
	for i, e := range entries {
		if i > 0 && e.offset == entries[i-1].offset+uint64(entries[i-1].length) {
			buf = binary.AppendUvarint(buf, 0)
		} else {
			buf = binary.AppendUvarint(buf, e.offset+1)
		}
	}
	return buf
}

func gzipBytes(b []byte) ([]byte, error) {
	var out bytes.Buffer
	zw, err := gzip.NewWriterLevel(&out, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(b); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func e7(deg float64) int32 {
	return int32(math.Round(deg * 1e7))
}
