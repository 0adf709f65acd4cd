package bindump

import (
	"bytes"
	"encoding/binary"

	"github.com/apex/log"

	"github.com/blacktop/bindump/pkg/binfmt"
	"github.com/blacktop/bindump/pkg/elf"
	"github.com/blacktop/bindump/pkg/macho"
	"github.com/blacktop/bindump/pkg/macho/types"
	"github.com/blacktop/bindump/pkg/pe"
)

// MagicSize is the number of leading bytes every lookup needs.
const MagicSize = 4

// An Entry routes buffers starting with Magic to Decode.
type Entry struct {
	Name   string
	Format binfmt.Format
	Magic  []byte
	Decode binfmt.DecodeFunc
}

// A Registry is an ordered magic table. The first entry whose Magic is a
// prefix of the buffer wins.
type Registry struct {
	entries []Entry
}

// NewRegistry returns a Registry holding entries in order.
func NewRegistry(entries ...Entry) *Registry {
	return &Registry{entries: append([]Entry(nil), entries...)}
}

// Register appends e to the table.
func (r *Registry) Register(e Entry) { r.entries = append(r.entries, e) }

// Entries returns a copy of the table.
func (r *Registry) Entries() []Entry { return append([]Entry(nil), r.entries...) }

// Lookup returns the entry matching the magic of dat.
func (r *Registry) Lookup(dat []byte) (Entry, error) {
	if len(dat) < MagicSize {
		return Entry{}, binfmt.Errorf(binfmt.ErrTruncated, 0, nil, "need %d bytes of magic, have %d", MagicSize, len(dat))
	}
	for _, e := range r.entries {
		if bytes.HasPrefix(dat, e.Magic) {
			return e, nil
		}
	}
	return Entry{}, binfmt.Errorf(binfmt.ErrUnknownMagic, 0, append([]byte(nil), dat[:MagicSize]...), "unrecognized file format")
}

// Decode looks up the decoder for dat and runs it.
func (r *Registry) Decode(dat []byte) (binfmt.Object, error) {
	e, err := r.Lookup(dat)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"format": e.Name, "size": len(dat)}).Debug("dispatching")
	return e.Decode(dat)
}

func magicBytes(order binary.ByteOrder, m types.Magic) []byte {
	b := make([]byte, MagicSize)
	order.PutUint32(b, uint32(m))
	return b
}

// thinEntries are every format that may appear inside a universal binary.
func thinEntries() []Entry {
	return []Entry{
		{Name: "mach-o 32-bit big-endian", Format: binfmt.MachO, Magic: magicBytes(binary.BigEndian, types.Magic32), Decode: macho.DecodeThin},
		{Name: "mach-o 64-bit big-endian", Format: binfmt.MachO, Magic: magicBytes(binary.BigEndian, types.Magic64), Decode: macho.DecodeThin},
		{Name: "mach-o 64-bit little-endian", Format: binfmt.MachO, Magic: magicBytes(binary.LittleEndian, types.Magic64), Decode: macho.DecodeThin},
		{Name: "mach-o 32-bit little-endian", Format: binfmt.MachO, Magic: magicBytes(binary.LittleEndian, types.Magic32), Decode: macho.DecodeThin},
		{Name: "elf", Format: binfmt.ELF, Magic: elf.Magic, Decode: elf.Decode},
		{Name: "pe", Format: binfmt.PE, Magic: pe.Magic, Decode: pe.Decode},
	}
}

// DefaultRegistry returns the full magic table. Universal slices are
// dispatched through a table without the universal entry, so fat
// binaries cannot nest.
func DefaultRegistry(parallel int) *Registry {
	slices := NewRegistry(thinEntries()...)
	fat := Entry{
		Name:   "universal",
		Format: binfmt.Universal,
		Magic:  magicBytes(binary.BigEndian, types.MagicFat),
		Decode: func(dat []byte) (binfmt.Object, error) {
			ff, err := macho.NewFatFile(dat, macho.FatConfig{Decode: slices.Decode, Parallel: parallel})
			if err != nil {
				return nil, err
			}
			return ff, nil
		},
	}
	return NewRegistry(append([]Entry{fat}, thinEntries()...)...)
}
