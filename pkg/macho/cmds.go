package macho

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/blacktop/bindump/internal/binread"
	"github.com/blacktop/bindump/pkg/binfmt"
	"github.com/blacktop/bindump/pkg/macho/types"
)

// A Load represents any Mach-O load command.
type Load interface {
	Raw() []byte
	String() string
	Command() types.LoadCmd
	LoadSize() uint32
}

// LoadCmdBytes is a command-tagged sequence of bytes.
// This is used for Load Commands that are not (yet)
// interesting to us.
type LoadCmdBytes struct {
	types.LoadCmd
	LoadBytes
}

func (s LoadCmdBytes) String() string {
	return s.LoadCmd.String() + ": " + s.LoadBytes.String()
}

// A LoadBytes is the uninterpreted bytes of a Mach-O load command,
// including the 8 byte (cmd, cmdsize) prefix.
type LoadBytes []byte

func (b LoadBytes) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, a := range b {
		if i > 0 {
			sb.WriteByte(' ')
			if len(b) > 48 && i >= 16 {
				fmt.Fprintf(&sb, "... (%d bytes)", len(b))
				break
			}
		}
		fmt.Fprintf(&sb, "%x", a)
	}
	sb.WriteByte(']')
	return sb.String()
}
func (b LoadBytes) Raw() []byte      { return b }
func (b LoadBytes) LoadSize() uint32 { return uint32(len(b)) }

/*******************************************************************************
 * SEGMENT
 *******************************************************************************/

// A SegmentHeader is the header for a Mach-O 32-bit or 64-bit load segment command.
type SegmentHeader struct {
	types.LoadCmd
	Len     uint32
	Name    string
	Addr    uint64
	Memsz   uint64
	Offset  uint64
	Filesz  uint64
	Maxprot types.VmProtection
	Prot    types.VmProtection
	Nsect   uint32
	Flag    types.SegFlag
}

func (s *SegmentHeader) String() string {
	return fmt.Sprintf(
		"Seg %s, len=%#x, addr=%#x, memsz=%#x, offset=%#x, filesz=%#x, maxprot=%s, prot=%s, nsect=%d, flag=%#x",
		s.Name, s.Len, s.Addr, s.Memsz, s.Offset, s.Filesz, s.Maxprot, s.Prot, s.Nsect, uint32(s.Flag))
}

// A Segment represents a Mach-O 32-bit or 64-bit load segment command.
// The segment owns its section records in on-disk order.
type Segment struct {
	SegmentHeader
	LoadBytes
	Sections []*Section

	dat []byte // enclosing object
}

// Is64 reports whether s is an LC_SEGMENT_64.
func (s *Segment) Is64() bool { return s.Command() == types.LC_SEGMENT_64 }

func (s *Segment) LoadSize() uint32 { return s.Len }

func (s *Segment) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", s.Command(), s.Name)
	fmt.Fprintf(&sb, "  addr   = %#x-%#x\n", s.Addr, s.Addr+s.Memsz)
	fmt.Fprintf(&sb, "  offset = %#x-%#x\n", s.Offset, s.Offset+s.Filesz)
	fmt.Fprintf(&sb, "  prot   = %s/%s\n", s.Prot, s.Maxprot)
	fmt.Fprintf(&sb, "  nsect  = %d\n", s.Nsect)
	if s.Flag != 0 {
		fmt.Fprintf(&sb, "  flags  = %s\n", s.Flag)
	}
	for _, sec := range s.Sections {
		for _, line := range strings.Split(strings.TrimSuffix(sec.String(), "\n"), "\n") {
			sb.WriteString("  " + line + "\n")
		}
	}
	return sb.String()
}

// Data reads and returns the contents of the segment.
func (s *Segment) Data() ([]byte, error) {
	dat, ok := binread.Slice(s.dat, s.Offset, s.Filesz)
	if !ok {
		return nil, &binfmt.FormatError{
			Kind: binfmt.ErrOutOfBounds,
			Off:  int64(s.Offset),
			Msg:  fmt.Sprintf("segment %s size %#x exceeds file size %#x", s.Name, s.Filesz, len(s.dat)),
		}
	}
	return dat, nil
}

func decodeSegment(cmd types.LoadCmd, cmddat []byte, bo binary.ByteOrder, base int64, obj []byte) (*Segment, error) {
	wide := cmd == types.LC_SEGMENT_64
	s := &Segment{LoadBytes: cmddat, dat: obj}
	s.LoadCmd = cmd
	s.Len = uint32(len(cmddat))

	r := binread.NewReader(cmddat[types.LoadCmdPrefixSize:], bo, base+types.LoadCmdPrefixSize)
	var err error
	if s.Name, err = r.FixedName(16); err != nil {
		return nil, err
	}
	if err := r.Words(wide, &s.Addr, &s.Memsz, &s.Offset, &s.Filesz); err != nil {
		return nil, err
	}
	var maxprot, prot, flag uint32
	if err := r.Uint32s(&maxprot, &prot, &s.Nsect, &flag); err != nil {
		return nil, err
	}
	s.Maxprot = types.VmProtection(int32(maxprot))
	s.Prot = types.VmProtection(int32(prot))
	s.Flag = types.SegFlag(flag)

	secsize := types.SectionSize32
	if wide {
		secsize = types.SectionSize64
	}
	s.Sections = make([]*Section, 0, min(int(s.Nsect), r.Len()/secsize))
	for i := uint32(0); i < s.Nsect; i++ {
		sec, err := decodeSection(r, wide, obj)
		if err != nil {
			return nil, fmt.Errorf("failed to read section %d of %s: %w", i, s.Name, err)
		}
		s.Sections = append(s.Sections, sec)
	}
	return s, nil
}

/*******************************************************************************
 * SECTION
 *******************************************************************************/

type SectionHeader struct {
	Name      string
	Seg       string
	Addr      uint64
	Size      uint64
	Offset    uint32
	Align     uint32 // decoded alignment in bytes, not the on-disk exponent
	Reloff    uint32
	Nreloc    uint32
	Flags     types.SectionFlag
	Reserved1 uint32
	Reserved2 uint32
	Reserved3 uint32 // only present if original was 64-bit
}

type Section struct {
	SectionHeader

	dat []byte // enclosing object
}

func (s *Section) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Section %s.%s\n", s.Seg, s.Name)
	fmt.Fprintf(&sb, "  addr   = %#x-%#x\n", s.Addr, s.Addr+s.Size)
	fmt.Fprintf(&sb, "  offset = %#x\n", s.Offset)
	fmt.Fprintf(&sb, "  align  = %d\n", s.Align)
	if s.Nreloc > 0 {
		fmt.Fprintf(&sb, "  relocs = %d at %#x\n", s.Nreloc, s.Reloff)
	}
	fmt.Fprintf(&sb, "  flags  = %#x\n", uint32(s.Flags))
	return sb.String()
}

// Data reads and returns the contents of the Mach-O section.
// Zero fill sections have no file contents and return nil.
func (s *Section) Data() ([]byte, error) {
	if s.Flags.IsZerofill() {
		return nil, nil
	}
	dat, ok := binread.Slice(s.dat, uint64(s.Offset), s.Size)
	if !ok {
		return nil, &binfmt.FormatError{
			Kind: binfmt.ErrOutOfBounds,
			Off:  int64(s.Offset),
			Msg:  fmt.Sprintf("section %s.%s size %#x exceeds file size %#x", s.Seg, s.Name, s.Size, len(s.dat)),
		}
	}
	return dat, nil
}

func decodeSection(r *binread.Reader, wide bool, obj []byte) (*Section, error) {
	sh := &Section{dat: obj}
	var err error
	if sh.Name, err = r.FixedName(16); err != nil {
		return nil, err
	}
	if sh.Seg, err = r.FixedName(16); err != nil {
		return nil, err
	}
	if err := r.Words(wide, &sh.Addr, &sh.Size); err != nil {
		return nil, err
	}
	if sh.Offset, err = r.Uint32(); err != nil {
		return nil, err
	}
	if sh.Align, err = r.AlignExp(); err != nil {
		return nil, err
	}
	var flags uint32
	if err := r.Uint32s(&sh.Reloff, &sh.Nreloc, &flags, &sh.Reserved1, &sh.Reserved2); err != nil {
		return nil, err
	}
	sh.Flags = types.SectionFlag(flags)
	if wide {
		if sh.Reserved3, err = r.Uint32(); err != nil {
			return nil, err
		}
	}
	return sh, nil
}
