package graph

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/paulmach/orb"
)

const (
	magicBytes   = "SAFEPATH"
	version      = uint32(1)
	maxNodes     = 10_000_000
	maxEdges     = 50_000_000
	maxStringLen = 1 << 16
	maxAttrs     = 1 << 10
)

// fileHeader is the binary header.
type fileHeader struct {
	Magic    [8]byte
	Version  uint32
	NumNodes uint32
	NumEdges uint32
}

// Layout after the header, all little endian:
//
//	meta map
//	node ids (int64), lats, lons (float64), then one attribute map per node
//	edge from/to positions (uint32), lengths (float64), congestion (byte),
//	then one attribute map per edge
//	geometry offsets (uint32), shape lons, shape lats, each count prefixed
//	CRC32 (IEEE) of everything above

// WriteBinary serializes a raw multigraph to a binary file. The file is
// written to a temporary path and renamed into place.
func WriteBinary(path string, mg *Multigraph) error {
	pos := nodePositions(mg)
	from := make([]uint32, len(mg.Edges))
	to := make([]uint32, len(mg.Edges))
	for i, e := range mg.Edges {
		u, uok := pos[e.From]
		v, vok := pos[e.To]
		if !uok || !vok {
			return fmt.Errorf("edge %d (%d->%d) references an unlisted node", i, e.From, e.To)
		}
		from[i], to[i] = u, v
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath) // no-op after a successful rename
	}()

	bw := bufio.NewWriter(f)
	sum := crc32.NewIEEE()
	enc := &encoder{w: io.MultiWriter(bw, sum)}

	hdr := fileHeader{
		Version:  version,
		NumNodes: uint32(len(mg.Nodes)),
		NumEdges: uint32(len(mg.Edges)),
	}
	copy(hdr.Magic[:], magicBytes)
	enc.put(&hdr)
	enc.strMap(mg.Meta)
	if enc.err != nil {
		return fmt.Errorf("write header: %w", enc.err)
	}

	ids := make([]int64, len(mg.Nodes))
	lats := make([]float64, len(mg.Nodes))
	lons := make([]float64, len(mg.Nodes))
	for i, n := range mg.Nodes {
		ids[i], lats[i], lons[i] = int64(n.ID), n.Lat, n.Lon
	}
	writeSlice(enc, ids)
	writeSlice(enc, lats)
	writeSlice(enc, lons)
	for _, n := range mg.Nodes {
		enc.strMap(n.Attrs)
	}
	if enc.err != nil {
		return fmt.Errorf("write nodes: %w", enc.err)
	}

	lengths := make([]float64, len(mg.Edges))
	congestion := make([]byte, len(mg.Edges))
	for i, e := range mg.Edges {
		lengths[i], congestion[i] = e.Length, byte(e.Congestion)
	}
	writeSlice(enc, from)
	writeSlice(enc, to)
	writeSlice(enc, lengths)
	writeSlice(enc, congestion)
	for _, e := range mg.Edges {
		enc.strMap(e.Attrs)
	}
	if enc.err != nil {
		return fmt.Errorf("write edges: %w", enc.err)
	}

	offsets := make([]uint32, len(mg.Edges)+1)
	var shapeLon, shapeLat []float64
	for i, e := range mg.Edges {
		offsets[i] = uint32(len(shapeLon))
		for _, p := range e.Geometry {
			shapeLon = append(shapeLon, p.Lon())
			shapeLat = append(shapeLat, p.Lat())
		}
	}
	offsets[len(mg.Edges)] = uint32(len(shapeLon))
	writeCounted(enc, offsets)
	writeCounted(enc, shapeLon)
	writeCounted(enc, shapeLat)
	if enc.err != nil {
		return fmt.Errorf("write geometry: %w", enc.err)
	}

	if err := binary.Write(bw, binary.LittleEndian, sum.Sum32()); err != nil {
		return fmt.Errorf("write CRC32: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// ReadBinary deserializes a raw multigraph written by WriteBinary.
func ReadBinary(path string) (*Multigraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	sum := crc32.NewIEEE()
	dec := &decoder{r: io.TeeReader(br, sum)}

	var hdr fileHeader
	dec.get(&hdr)
	if dec.err != nil {
		return nil, fmt.Errorf("read header: %w", dec.err)
	}
	switch {
	case string(hdr.Magic[:]) != magicBytes:
		return nil, fmt.Errorf("invalid magic bytes: %q", hdr.Magic)
	case hdr.Version != version:
		return nil, fmt.Errorf("unsupported version: %d", hdr.Version)
	case hdr.NumNodes > maxNodes:
		return nil, fmt.Errorf("NumNodes %d exceeds limit %d", hdr.NumNodes, maxNodes)
	case hdr.NumEdges > maxEdges:
		return nil, fmt.Errorf("NumEdges %d exceeds limit %d", hdr.NumEdges, maxEdges)
	}
	numNodes, numEdges := int(hdr.NumNodes), int(hdr.NumEdges)

	mg := &Multigraph{Meta: dec.strMap()}

	ids := readSlice[int64](dec, numNodes)
	lats := readSlice[float64](dec, numNodes)
	lons := readSlice[float64](dec, numNodes)
	mg.Nodes = make([]Node, numNodes)
	for i := range mg.Nodes {
		if dec.err != nil {
			break
		}
		mg.Nodes[i] = Node{ID: NodeID(ids[i]), Lat: lats[i], Lon: lons[i], Attrs: dec.strMap()}
	}
	if dec.err != nil {
		return nil, fmt.Errorf("read nodes: %w", dec.err)
	}

	from := readSlice[uint32](dec, numEdges)
	to := readSlice[uint32](dec, numEdges)
	lengths := readSlice[float64](dec, numEdges)
	congestion := readSlice[byte](dec, numEdges)
	if dec.err != nil {
		return nil, fmt.Errorf("read edges: %w", dec.err)
	}
	for i := range from {
		if from[i] >= hdr.NumNodes || to[i] >= hdr.NumNodes {
			return nil, fmt.Errorf("edge %d endpoint out of range (%d->%d, NumNodes=%d)", i, from[i], to[i], hdr.NumNodes)
		}
	}
	mg.Edges = make([]Edge, numEdges)
	for i := range mg.Edges {
		mg.Edges[i] = Edge{
			From: mg.Nodes[from[i]].ID,
			To:   mg.Nodes[to[i]].ID,
			EdgeData: EdgeData{
				Length:     lengths[i],
				Congestion: Congestion(congestion[i]),
				Attrs:      dec.strMap(),
			},
		}
	}
	if dec.err != nil {
		return nil, fmt.Errorf("read edge attrs: %w", dec.err)
	}

	offsets := readCounted[uint32](dec, numEdges+1)
	shapeLon := readCounted[float64](dec, maxEdges)
	shapeLat := readCounted[float64](dec, maxEdges)
	if dec.err != nil {
		return nil, fmt.Errorf("read geometry: %w", dec.err)
	}
	if err := attachGeometry(mg.Edges, offsets, shapeLon, shapeLat); err != nil {
		return nil, err
	}

	want := sum.Sum32()
	var stored uint32
	if err := binary.Read(br, binary.LittleEndian, &stored); err != nil {
		return nil, fmt.Errorf("read CRC32: %w", err)
	}
	if stored != want {
		return nil, fmt.Errorf("CRC32 mismatch: stored=%08x computed=%08x", stored, want)
	}
	return mg, nil
}

// attachGeometry slices the flat shape arrays into per-edge line strings.
func attachGeometry(edges []Edge, offsets []uint32, lon, lat []float64) error {
	if len(offsets) != len(edges)+1 || len(lon) != len(lat) {
		return fmt.Errorf("geometry arrays inconsistent: %d offsets, %d lon, %d lat", len(offsets), len(lon), len(lat))
	}
	for i := range edges {
		start, end := offsets[i], offsets[i+1]
		if start > end || int(end) > len(lon) {
			return fmt.Errorf("geometry offsets invalid for edge %d", i)
		}
		if end == start {
			continue
		}
		ls := make(orb.LineString, 0, end-start)
		for k := start; k < end; k++ {
			ls = append(ls, orb.Point{lon[k], lat[k]})
		}
		edges[i].Geometry = ls
	}
	return nil
}

// encoder writes little endian values and keeps the first error.
type encoder struct {
	w   io.Writer
	err error
}

func (e *encoder) put(v any) {
	if e.err == nil {
		e.err = binary.Write(e.w, binary.LittleEndian, v)
	}
}

func writeSlice[T uint32 | int64 | float64 | byte](e *encoder, s []T) {
	if len(s) > 0 {
		e.put(s)
	}
}

// writeCounted writes a slice preceded by its length.
func writeCounted[T uint32 | float64](e *encoder, s []T) {
	e.put(uint32(len(s)))
	writeSlice(e, s)
}

func (e *encoder) str(s string) {
	if e.err == nil && len(s) > maxStringLen {
		e.err = fmt.Errorf("string of %d bytes exceeds limit %d", len(s), maxStringLen)
	}
	e.put(uint32(len(s)))
	writeSlice(e, []byte(s))
}

// strMap writes a count followed by key/value pairs in key order.
func (e *encoder) strMap(m map[string]string) {
	e.put(uint32(len(m)))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		e.str(k)
		e.str(m[k])
	}
}

// decoder reads little endian values and keeps the first error. After an
// error every read returns a zero value.
type decoder struct {
	r   io.Reader
	err error
}

func (d *decoder) get(v any) {
	if d.err == nil {
		d.err = binary.Read(d.r, binary.LittleEndian, v)
	}
}

func (d *decoder) u32() uint32 {
	var v uint32
	d.get(&v)
	return v
}

func (d *decoder) str() string {
	n := d.u32()
	if d.err != nil {
		return ""
	}
	if n > maxStringLen {
		d.err = fmt.Errorf("string of %d bytes exceeds limit %d", n, maxStringLen)
		return ""
	}
	return string(readSlice[byte](d, int(n)))
}

// strMap returns nil for an empty map.
func (d *decoder) strMap() map[string]string {
	n := d.u32()
	if d.err != nil || n == 0 {
		return nil
	}
	if n > maxAttrs {
		d.err = fmt.Errorf("attribute count %d exceeds limit %d", n, maxAttrs)
		return nil
	}
	m := make(map[string]string, n)
	for range n {
		k := d.str()
		m[k] = d.str()
	}
	return m
}

func readSlice[T uint32 | int64 | float64 | byte](d *decoder, n int) []T {
	if n == 0 || d.err != nil {
		return nil
	}
	s := make([]T, n)
	d.get(s)
	return s
}

// readCounted reads a length prefixed slice of at most limit elements.
func readCounted[T uint32 | float64](d *decoder, limit int) []T {
	n := d.u32()
	if d.err == nil && int(n) > limit {
		d.err = fmt.Errorf("array of %d elements exceeds limit %d", n, limit)
	}
	return readSlice[T](d, int(n))
}
