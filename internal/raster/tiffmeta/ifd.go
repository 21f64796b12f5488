package tiffmeta

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	tagImageWidth  = 256
	tagImageLength = 257

	typeShort = 3
	typeLong  = 4
	typeLong8 = 16

	classicMagic = 42
	bigMagic     = 43

	maxIFDEntries = 4096
)

var errNoSizeTags = errors.New("first IFD has no ImageWidth/ImageLength")

type layout struct {
	order     binary.ByteOrder
	big       bool
	entrySize int64
}

// readIFDSize reads ImageWidth and ImageLength from the first IFD of a
// classic or BigTIFF file. Sample layout is ignored.
func readIFDSize(r io.ReaderAt) (int, int, error) {
	var hdr [16]byte
	if _, err := r.ReadAt(hdr[:8], 0); err != nil {
		return 0, 0, fmt.Errorf("read header: %w", err)
	}

	var l layout
	switch string(hdr[:2]) {
	case "II":
		l.order = binary.LittleEndian
	case "MM":
		l.order = binary.BigEndian
	default:
		return 0, 0, fmt.Errorf("bad byte order mark %q", hdr[:2])
	}

	var ifdOff uint64
	switch l.order.Uint16(hdr[2:4]) {
	case classicMagic:
		l.entrySize = 12
		ifdOff = uint64(l.order.Uint32(hdr[4:8]))
	case bigMagic:
		if _, err := r.ReadAt(hdr[8:16], 8); err != nil {
			return 0, 0, fmt.Errorf("read bigtiff header: %w", err)
		}
		if l.order.Uint16(hdr[4:6]) != 8 {
			return 0, 0, fmt.Errorf("unsupported bigtiff offset size %d", l.order.Uint16(hdr[4:6]))
		}
		l.big = true
		l.entrySize = 20
		ifdOff = l.order.Uint64(hdr[8:16])
	default:
		return 0, 0, fmt.Errorf("bad magic %d", l.order.Uint16(hdr[2:4]))
	}
	if ifdOff == 0 || ifdOff > math.MaxInt64/2 {
		return 0, 0, fmt.Errorf("bad IFD offset %d", ifdOff)
	}

	count, entriesOff, err := l.entryCount(r, int64(ifdOff))
	if err != nil {
		return 0, 0, err
	}
	entries := make([]byte, count*l.entrySize)
	if _, err := r.ReadAt(entries, entriesOff); err != nil {
		return 0, 0, fmt.Errorf("read IFD entries: %w", err)
	}

	width, height := -1, -1
	for i := int64(0); i < count; i++ {
		e := entries[i*l.entrySize : (i+1)*l.entrySize]
		tag := l.order.Uint16(e[0:2])
		if tag != tagImageWidth && tag != tagImageLength {
			continue
		}
		v, err := l.scalar(e)
		if err != nil {
			return 0, 0, fmt.Errorf("tag %d: %w", tag, err)
		}
		if tag == tagImageWidth {
			width = v
		} else {
			height = v
		}
	}
	if width < 0 || height < 0 {
		return 0, 0, errNoSizeTags
	}
	return width, height, nil
}

func (l layout) entryCount(r io.ReaderAt, off int64) (int64, int64, error) {
	if l.big {
		var b [8]byte
		if _, err := r.ReadAt(b[:], off); err != nil {
			return 0, 0, fmt.Errorf("read IFD count: %w", err)
		}
		n := l.order.Uint64(b[:])
		if n == 0 || n > maxIFDEntries {
			return 0, 0, fmt.Errorf("bad IFD entry count %d", n)
		}
		return int64(n), off + 8, nil
	}
	var b [2]byte
	if _, err := r.ReadAt(b[:], off); err != nil {
		return 0, 0, fmt.Errorf("read IFD count: %w", err)
	}
	n := l.order.Uint16(b[:])
	if n == 0 || n > maxIFDEntries {
		return 0, 0, fmt.Errorf("bad IFD entry count %d", n)
	}
	return int64(n), off + 2, nil
}

// scalar returns the first value of a SHORT, LONG or LONG8 entry, which
// always fits in the entry's value field.
func (l layout) scalar(e []byte) (int, error) {
	typ := l.order.Uint16(e[2:4])
	var n uint64
	var val []byte
	if l.big {
		n, val = l.order.Uint64(e[4:12]), e[12:20]
	} else {
		n, val = uint64(l.order.Uint32(e[4:8])), e[8:12]
	}
	if n < 1 {
		return 0, fmt.Errorf("empty value")
	}

	switch typ {
	case typeShort:
		return int(l.order.Uint16(val[0:2])), nil
	case typeLong:
		return int(l.order.Uint32(val[0:4])), nil
	case typeLong8:
		if !l.big {
			return 0, fmt.Errorf("LONG8 in classic TIFF")
		}
		v := l.order.Uint64(val[0:8])
		if v > math.MaxInt32 {
			return 0, fmt.Errorf("value %d out of range", v)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("unexpected field type %d", typ)
	}
}
