// Package macho implements access to Mach-O object files and universal
// (fat) containers held in memory.
package macho

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/pkg/errors"

	"github.com/blacktop/bindump/internal/binread"
	"github.com/blacktop/bindump/pkg/binfmt"
	"github.com/blacktop/bindump/pkg/macho/types"
)

// A FileTOC is the header and decoded load commands of a Mach-O object.
type FileTOC struct {
	types.FileHeader
	ByteOrder binary.ByteOrder
	Loads     []Load
}

func (t *FileTOC) String() string {
	return t.FileHeader.String() + t.LoadsString()
}

func pad(length int) string {
	if length > 0 {
		return strings.Repeat(" ", length)
	}
	return " "
}

// LoadsString returns a string representation of all the MachO's load commands
func (t *FileTOC) LoadsString() string {
	var sb strings.Builder
	for i, l := range t.Loads {
		if s, ok := l.(*Segment); ok {
			fmt.Fprintf(&sb, "%03d: %s sz=0x%08x off=0x%08x-0x%08x addr=0x%09x-0x%09x %s/%s   %s%s%s\n",
				i, s.Command(), s.Filesz, s.Offset, s.Offset+s.Filesz, s.Addr, s.Addr+s.Memsz,
				s.Prot, s.Maxprot, s.Name, pad(20-len(s.Name)), s.Flag)
			for _, c := range s.Sections {
				fmt.Fprintf(&sb, "\tsz=0x%08x off=0x%08x-0x%08x addr=0x%09x-0x%09x\t\t%s.%s%salign=%d\n",
					c.Size, c.Offset, uint64(c.Offset)+c.Size, c.Addr, c.Addr+c.Size,
					s.Name, c.Name, pad(32-(len(s.Name)+len(c.Name)+1)), c.Align)
			}
			continue
		}
		fmt.Fprintf(&sb, "%03d: %s%ssize=%d\n", i, l.Command(), pad(28-len(l.Command().String())), l.LoadSize())
	}
	return sb.String()
}

// LoadSize returns the sum of the declared sizes of all decoded load commands.
func (t *FileTOC) LoadSize() uint32 {
	var sz uint32
	for _, l := range t.Loads {
		sz += l.LoadSize()
	}
	return sz
}

// HdrSize returns the size in bytes of the Macho header.
func (t *FileTOC) HdrSize() uint32 {
	return uint32(t.Magic.HeaderSize())
}

// A File represents an open Mach-O file.
type File struct {
	FileTOC

	dat      []byte
	warnings []error
}

// NewFile decodes the Mach-O object held in dat. The returned File borrows
// dat; section and segment contents are slices of it.
func NewFile(dat []byte) (*File, error) {
	f := &File{dat: dat}

	// Read and decode Mach magic to determine byte order, size.
	// Magic32 and Magic64 differ only in the bottom bit.
	if len(dat) < 4 {
		return nil, binfmt.Errorf(binfmt.ErrTruncated, 0, nil, "need 4 bytes of magic, have %d", len(dat))
	}
	be := binary.BigEndian.Uint32(dat[0:])
	le := binary.LittleEndian.Uint32(dat[0:])
	switch types.Magic32.Int() &^ 1 {
	case be &^ 1:
		f.ByteOrder = binary.BigEndian
		f.Magic = types.Magic(be)
	case le &^ 1:
		f.ByteOrder = binary.LittleEndian
		f.Magic = types.Magic(le)
	default:
		return nil, binfmt.Errorf(binfmt.ErrUnknownMagic, 0, be, "invalid magic number")
	}

	r := binread.NewReader(dat, f.ByteOrder, 0)
	r.Skip(4)
	if err := f.readHeader(r); err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}

	log.WithFields(log.Fields{
		"magic":  f.Magic,
		"cpu":    f.CPU,
		"type":   f.Type,
		"ncmds":  f.NCommands,
		"sizeof": f.SizeCommands,
	}).Debug("decoded mach-o header")

	if err := f.readLoads(r); err != nil {
		return nil, err
	}

	if sz := f.LoadSize(); sz != f.SizeCommands {
		w := binfmt.Errorf(binfmt.ErrStructuralMismatch, int64(f.HdrSize()), nil,
			"header declares %d bytes of load commands, decoded %d", f.SizeCommands, sz)
		log.WithFields(log.Fields{"declared": f.SizeCommands, "decoded": sz}).Warn("load command size mismatch")
		f.warnings = append(f.warnings, w)
	}

	return f, nil
}

func (f *File) readHeader(r *binread.Reader) error {
	pos := r.Pos()
	cpu, err := r.Int32()
	if err != nil {
		return err
	}
	if f.CPU, err = types.ParseCPU(cpu); err != nil {
		return at(err, pos)
	}
	sub, err := r.Int32()
	if err != nil {
		return err
	}
	f.SubCPU = types.CPUSubtype(sub)

	pos = r.Pos()
	typ, err := r.Uint32()
	if err != nil {
		return err
	}
	if f.Type, err = types.ParseFileType(typ); err != nil {
		return at(err, pos)
	}
	var flags uint32
	if err := r.Uint32s(&f.NCommands, &f.SizeCommands, &flags); err != nil {
		return err
	}
	f.Flags = types.HeaderFlag(flags)
	if f.Magic == types.Magic64 {
		if f.Reserved, err = r.Uint32(); err != nil {
			return err
		}
	}
	return nil
}

// readLoads decodes NCommands load commands starting at the cursor. Each
// command is skipped by its declared size regardless of how much of it was
// decoded.
func (f *File) readLoads(r *binread.Reader) error {
	f.Loads = make([]Load, 0, min(int(f.NCommands), r.Len()/types.LoadCmdPrefixSize))
	for i := uint32(0); i < f.NCommands; i++ {
		start := r.Offset()
		pos := r.Pos()
		// Each load command begins with uint32 command and length.
		if r.Len() < types.LoadCmdPrefixSize {
			return binfmt.Errorf(binfmt.ErrTruncatedLoadCommand, pos, nil,
				"load command %d: need %d bytes, have %d", i, types.LoadCmdPrefixSize, r.Len())
		}
		tag, _ := r.Uint32()
		siz, _ := r.Uint32()
		if siz < types.LoadCmdPrefixSize || uint64(siz) > uint64(r.Len())+types.LoadCmdPrefixSize {
			return binfmt.Errorf(binfmt.ErrTruncatedLoadCommand, pos, siz,
				"load command %d: invalid command block size", i)
		}
		cmd, err := types.ParseLoadCmd(tag)
		if err != nil {
			return errors.Wrapf(at(err, pos), "load command %d", i)
		}

		end := start + int(siz)
		cmddat := f.dat[start:end:end]
		var l Load
		switch cmd {
		case types.LC_SEGMENT, types.LC_SEGMENT_64:
			s, err := decodeSegment(cmd, cmddat, f.ByteOrder, pos, f.dat)
			if err != nil {
				return errors.Wrapf(err, "failed to read %s (load command %d)", cmd, i)
			}
			l = s
		default:
			l = LoadCmdBytes{LoadCmd: cmd, LoadBytes: cmddat}
		}
		f.Loads = append(f.Loads, l)

		if err := r.Skip(int(siz) - types.LoadCmdPrefixSize); err != nil {
			return err
		}
	}
	return nil
}

// at moves a freshly built FormatError to off.
func at(err error, off int64) error {
	var fe *binfmt.FormatError
	if errors.As(err, &fe) {
		fe.Off = off
	}
	return err
}

// Format implements binfmt.Object.
func (f *File) Format() binfmt.Format { return binfmt.MachO }

// Warnings returns the non-fatal problems found while decoding.
func (f *File) Warnings() []error { return f.warnings }

// Segment returns the first Segment with the given name, or nil if no such segment exists.
func (f *File) Segment(name string) *Segment {
	for _, l := range f.Loads {
		if s, ok := l.(*Segment); ok && s.Name == name {
			return s
		}
	}
	return nil
}

// Segments returns all the segment load commands in order.
func (f *File) Segments() []*Segment {
	var segs []*Segment
	for _, l := range f.Loads {
		if s, ok := l.(*Segment); ok {
			segs = append(segs, s)
		}
	}
	return segs
}

// Sections returns every section of every segment in the order they appear.
func (f *File) Sections() []*Section {
	var secs []*Section
	for _, s := range f.Segments() {
		secs = append(secs, s.Sections...)
	}
	return secs
}

// Section returns the first section with the given name, or nil if no such
// section exists. Name may be either "sect" or "seg.sect".
func (f *File) Section(name string) *Section {
	seg, sect, qualified := strings.Cut(name, ".")
	for _, s := range f.Sections() {
		if qualified && s.Seg == seg && s.Name == sect {
			return s
		}
		if !qualified && s.Name == name {
			return s
		}
	}
	return nil
}
