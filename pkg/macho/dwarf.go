package macho

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/blacktop/go-dwarf"
	"github.com/pkg/errors"
)

// ErrNoDWARF is returned by DWARF when the object has no __debug_info section.
var ErrNoDWARF = errors.New("no DWARF debug info")

func dwarfSuffix(s *Section) string {
	switch {
	case strings.HasPrefix(s.Name, "__debug_"):
		return s.Name[8:]
	case strings.HasPrefix(s.Name, "__zdebug_"):
		return s.Name[9:]
	case strings.HasPrefix(s.Name, "__apple_"):
		return s.Name[8:]
	default:
		return ""
	}
}

// dwarfData returns the section contents, inflating "ZLIB" compressed
// payloads.
func dwarfData(s *Section) ([]byte, error) {
	b, err := s.Data()
	if err != nil {
		return nil, err
	}
	if len(b) >= 12 && string(b[:4]) == "ZLIB" {
		dlen := binary.BigEndian.Uint64(b[4:12])
		r, err := zlib.NewReader(bytes.NewReader(b[12:]))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to inflate %s", s.Name)
		}
		defer r.Close()
		var buf bytes.Buffer
		if _, err := io.CopyN(&buf, r, int64(dlen)); err != nil {
			return nil, errors.Wrapf(err, "failed to inflate %s", s.Name)
		}
		b = buf.Bytes()
	}
	return b, nil
}

// DWARF returns the DWARF debug information for the Mach-O file.
func (f *File) DWARF() (*dwarf.Data, error) {
	// There are many other DWARF sections, but these
	// are the ones the dwarf package uses.
	var dat = map[string][]byte{"abbrev": nil, "info": nil, "str": nil, "line": nil, "ranges": nil}
	secs := f.Sections()
	for _, s := range secs {
		suffix := dwarfSuffix(s)
		if _, ok := dat[suffix]; !ok {
			continue
		}
		b, err := dwarfData(s)
		if err != nil {
			return nil, err
		}
		dat[suffix] = b
	}
	if dat["info"] == nil {
		return nil, ErrNoDWARF
	}

	d, err := dwarf.New(dat["abbrev"], nil, nil, dat["info"], dat["line"], nil, dat["ranges"], dat["str"])
	if err != nil {
		return nil, err
	}

	// Look for DWARF4 .debug_types sections.
	for i, s := range secs {
		if dwarfSuffix(s) != "types" {
			continue
		}
		b, err := dwarfData(s)
		if err != nil {
			return nil, err
		}
		if err := d.AddTypes(fmt.Sprintf("types-%d", i), b); err != nil {
			return nil, err
		}
	}

	return d, nil
}
