package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// TIFF tags and values used by the bilevel check image profile.
const (
	tagImageWidth       = 256
	tagImageLength      = 257
	tagBitsPerSample    = 258
	tagCompression      = 259
	tagPhotometric      = 262
	tagImageDescription = 270
	tagStripOffsets     = 273
	tagSamplesPerPixel  = 277
	tagRowsPerStrip     = 278
	tagStripByteCounts  = 279
	tagXResolution      = 282
	tagYResolution      = 283
	tagResolutionUnit   = 296

	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5

	// CompressionGroup4 is the TIFF compression code for CCITT T.6.
	CompressionGroup4 = 4

	// DPI is the resolution of every image in the file.
	DPI = 200
)

var (
	// ErrNotTIFF is returned for data without a TIFF header.
	ErrNotTIFF = errors.New("image is not a TIFF file")

	// ErrNotGroup4 is returned for TIFF images using another compression.
	ErrNotGroup4 = errors.New("image is not CCITT Group 4 compressed")
)

// Compression reads the compression code of the first image in a TIFF file.
func Compression(data []byte) (int, error) {
	if len(data) < 8 {
		return 0, ErrNotTIFF
	}

	var order binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return 0, ErrNotTIFF
	}
	if order.Uint16(data[2:4]) != 42 {
		return 0, ErrNotTIFF
	}

	ifd := int(order.Uint32(data[4:8]))
	if ifd < 8 || ifd+2 > len(data) {
		return 0, fmt.Errorf("%w: IFD offset out of range", ErrNotTIFF)
	}

	count := int(order.Uint16(data[ifd : ifd+2]))
	for i := 0; i < count; i++ {
		at := ifd + 2 + i*12
		if at+12 > len(data) {
			return 0, fmt.Errorf("%w: truncated IFD", ErrNotTIFF)
		}
		if order.Uint16(data[at:at+2]) != tagCompression {
			continue
		}
		if order.Uint16(data[at+2:at+4]) == typeLong {
			return int(order.Uint32(data[at+8 : at+12])), nil
		}
		return int(order.Uint16(data[at+8 : at+10])), nil
	}

	// Compression defaults to 1 (none) when the tag is absent.
	return 1, nil
}

// BlankPage builds a white bilevel page as TIFF, CCITT Group 4, at 200 DPI,
// with description stored in the ImageDescription tag.
func BlankPage(width, height int, description string) []byte {
	var buf bytes.Buffer
	buf.WriteString("II")
	binary.Write(&buf, binary.LittleEndian, uint16(42))
	binary.Write(&buf, binary.LittleEndian, uint32(8))
	writePage(&buf, binary.LittleEndian, width, height, description)
	return buf.Bytes()
}

// AppendPage adds a blank page carrying description as the last page of a
// TIFF file. The new page uses the file's byte order.
func AppendPage(data []byte, width, height int, description string) ([]byte, error) {
	if len(data) < 8 {
		return nil, ErrNotTIFF
	}

	var order binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, ErrNotTIFF
	}

	// Walk to the last IFD; link is the offset of its next-IFD pointer.
	link := 4
	for hops := 0; ; hops++ {
		next := int(order.Uint32(data[link : link+4]))
		if next == 0 {
			break
		}
		if hops > 64 || next < 8 || next+2 > len(data) {
			return nil, fmt.Errorf("%w: IFD offset out of range", ErrNotTIFF)
		}
		count := int(order.Uint16(data[next : next+2]))
		link = next + 2 + count*12
		if link+4 > len(data) {
			return nil, fmt.Errorf("%w: truncated IFD", ErrNotTIFF)
		}
	}

	var buf bytes.Buffer
	buf.Write(data)
	if buf.Len()%2 == 1 {
		buf.WriteByte(0)
	}
	if uint64(buf.Len()) > math.MaxUint32 {
		return nil, fmt.Errorf("image too large to extend")
	}

	out := buf.Bytes()
	order.PutUint32(out[link:link+4], uint32(len(out)))
	writePage(&buf, order, width, height, description)
	return buf.Bytes(), nil
}

// writePage appends one IFD with its values and strip at the current end of
// buf. Offsets are absolute, so buf must hold the file from its first byte.
func writePage(buf *bytes.Buffer, order binary.ByteOrder, width, height int, description string) {
	strip := blankG4(height)

	desc := append([]byte(description), 0)
	if len(desc)%2 == 1 {
		desc = append(desc, 0)
	}

	type entry struct {
		tag, typ uint16
		count    uint32
		value    uint32
	}

	const entryCount = 13
	base := buf.Len()
	ifdSize := 2 + entryCount*12 + 4
	descAt := base + ifdSize
	xresAt := descAt + len(desc)
	yresAt := xresAt + 8
	stripAt := yresAt + 8

	entries := []entry{
		{tagImageWidth, typeLong, 1, uint32(width)},
		{tagImageLength, typeLong, 1, uint32(height)},
		{tagBitsPerSample, typeShort, 1, 1},
		{tagCompression, typeShort, 1, CompressionGroup4},
		{tagPhotometric, typeShort, 1, 0},
		{tagImageDescription, typeASCII, uint32(len(description) + 1), uint32(descAt)},
		{tagStripOffsets, typeLong, 1, uint32(stripAt)},
		{tagSamplesPerPixel, typeShort, 1, 1},
		{tagRowsPerStrip, typeLong, 1, uint32(height)},
		{tagStripByteCounts, typeLong, 1, uint32(len(strip))},
		{tagXResolution, typeRational, 1, uint32(xresAt)},
		{tagYResolution, typeRational, 1, uint32(yresAt)},
		{tagResolutionUnit, typeShort, 1, 2},
	}

	binary.Write(buf, order, uint16(len(entries)))
	for _, e := range entries {
		binary.Write(buf, order, e.tag)
		binary.Write(buf, order, e.typ)
		binary.Write(buf, order, e.count)
		if e.typ == typeShort {
			// SHORT values sit left-justified in the 4-byte value field.
			binary.Write(buf, order, uint16(e.value))
			binary.Write(buf, order, uint16(0))
		} else {
			binary.Write(buf, order, e.value)
		}
	}
	binary.Write(buf, order, uint32(0))

	buf.Write(desc)
	for i := 0; i < 2; i++ {
		binary.Write(buf, order, uint32(DPI))
		binary.Write(buf, order, uint32(1))
	}
	buf.Write(strip)
}

// blankG4 encodes height all-white rows. Against an all-white reference line
// every row is a single vertical mode V(0) code, followed by the end of
// facsimile block.
func blankG4(height int) []byte {
	var w bitWriter
	for i := 0; i < height; i++ {
		w.write(1, 1)
	}
	w.write(0x001, 12)
	w.write(0x001, 12)
	return w.bytes()
}

type bitWriter struct {
	buf   []byte
	cur   byte
	nbits uint
}

func (w *bitWriter) write(code uint32, length uint) {
	for i := int(length) - 1; i >= 0; i-- {
		w.cur = w.cur<<1 | byte(code>>uint(i)&1)
		w.nbits++
		if w.nbits == 8 {
			w.buf = append(w.buf, w.cur)
			w.cur, w.nbits = 0, 0
		}
	}
}

func (w *bitWriter) bytes() []byte {
	if w.nbits > 0 {
		return append(w.buf, w.cur<<(8-w.nbits))
	}
	return w.buf
}
