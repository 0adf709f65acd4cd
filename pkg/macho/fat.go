package macho

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/blacktop/bindump/internal/binread"
	"github.com/blacktop/bindump/pkg/binfmt"
	"github.com/blacktop/bindump/pkg/macho/types"
)

// ErrNotFat is returned from NewFatFile when the file is not a
// universal binary but may be a thin binary, based on its magic number.
var ErrNotFat = &binfmt.FormatError{Kind: binfmt.ErrUnknownMagic, Msg: "not a fat Mach-O file"}

// A FatFile is a Mach-O universal binary that contains at least one architecture.
type FatFile struct {
	Magic  types.Magic
	Arches []*FatArch
}

// A FatArchHeader represents a fat header for a specific image architecture.
type FatArchHeader struct {
	CPU    types.CPU
	SubCPU types.CPUSubtype
	Offset uint32
	Size   uint32
	Align  uint32 // decoded alignment in bytes
}

// A FatArch is a Mach-O File inside a FatFile.
type FatArch struct {
	FatArchHeader
	Object binfmt.Object
}

// File returns the embedded object as a Mach-O file, or nil if it is not one.
func (a *FatArch) File() *File {
	f, _ := a.Object.(*File)
	return f
}

func (a *FatArch) String() string {
	return fmt.Sprintf("%s, %s offset=%#x size=%#x (%s) align=%d",
		a.CPU, a.SubCPU.String(a.CPU), a.Offset, a.Size, humanize.Bytes(uint64(a.Size)), a.Align)
}

// FatConfig controls how NewFatFile decodes the embedded objects.
type FatConfig struct {
	// Decode is applied to each architecture's byte range. It defaults to a
	// decoder that only accepts thin Mach-O objects.
	Decode binfmt.DecodeFunc
	// Parallel is the number of architectures decoded concurrently. Values
	// below 2 decode sequentially.
	Parallel int
}

// DecodeThin decodes dat as a single Mach-O object.
func DecodeThin(dat []byte) (binfmt.Object, error) {
	f, err := NewFile(dat)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// NewFatFile decodes the universal binary held in dat. Every architecture
// record is validated against the bounds of dat before any embedded object
// is decoded.
func NewFatFile(dat []byte, config ...FatConfig) (*FatFile, error) {
	var conf FatConfig
	if len(config) > 0 {
		conf = config[0]
	}
	if conf.Decode == nil {
		conf.Decode = DecodeThin
	}

	// The fat header is always big endian.
	r := binread.NewReader(dat, binary.BigEndian, 0)
	magic, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if types.Magic(magic) != types.MagicFat {
		return nil, ErrNotFat
	}
	ff := &FatFile{Magic: types.MagicFat}

	narch, err := r.Uint32()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read fat header")
	}

	ff.Arches = make([]*FatArch, 0, min(int(narch), r.Len()/types.FatArchSize))
	slices := make([][]byte, 0, cap(ff.Arches))
	for i := uint32(0); i < narch; i++ {
		pos := r.Pos()
		fa, err := readFatArch(r)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read fat arch %d", i)
		}
		sl, ok := binread.Slice(dat, uint64(fa.Offset), uint64(fa.Size))
		if !ok {
			return nil, &binfmt.FormatError{
				Kind: binfmt.ErrArchOutOfBounds,
				Off:  pos,
				Msg:  fmt.Sprintf("arch %d (%s) offset %#x + size %#x exceeds file size %#x", i, fa.CPU, fa.Offset, fa.Size, len(dat)),
			}
		}
		ff.Arches = append(ff.Arches, fa)
		slices = append(slices, sl)
	}

	if err := ff.decodeArches(slices, conf); err != nil {
		return nil, err
	}
	return ff, nil
}

func readFatArch(r *binread.Reader) (*FatArch, error) {
	fa := new(FatArch)
	pos := r.Pos()
	cpu, err := r.Int32()
	if err != nil {
		return nil, err
	}
	if fa.CPU, err = types.ParseCPU(cpu); err != nil {
		return nil, at(err, pos)
	}
	sub, err := r.Int32()
	if err != nil {
		return nil, err
	}
	fa.SubCPU = types.CPUSubtype(sub)
	if err := r.Uint32s(&fa.Offset, &fa.Size); err != nil {
		return nil, err
	}
	if fa.Align, err = r.AlignExp(); err != nil {
		return nil, err
	}
	return fa, nil
}

// decodeArches runs conf.Decode over every slice. Results land at the index
// of their arch record, and the error of the lowest failing index wins.
func (ff *FatFile) decodeArches(slices [][]byte, conf FatConfig) error {
	errs := make([]error, len(slices))
	decode := func(i int) {
		obj, err := conf.Decode(slices[i])
		if err != nil {
			errs[i] = errors.Wrapf(err, "failed to decode fat arch %d (%s)", i, ff.Arches[i].CPU)
			return
		}
		ff.Arches[i].Object = obj
	}

	if conf.Parallel < 2 || len(slices) < 2 {
		for i := range slices {
			if decode(i); errs[i] != nil {
				return errs[i]
			}
		}
		return nil
	}

	log.WithField("workers", conf.Parallel).Debugf("decoding %d fat arches", len(slices))
	var g errgroup.Group
	g.SetLimit(conf.Parallel)
	for i := range slices {
		i := i
		g.Go(func() error {
			decode(i)
			return nil
		})
	}
	g.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Arch returns the first architecture with the given CPU type, or nil.
func (ff *FatFile) Arch(cpu types.CPU) *FatArch {
	for _, a := range ff.Arches {
		if a.CPU == cpu {
			return a
		}
	}
	return nil
}

// Format implements binfmt.Object.
func (ff *FatFile) Format() binfmt.Format { return binfmt.Universal }

// Warnings collects the warnings of every embedded object.
func (ff *FatFile) Warnings() []error {
	var warns []error
	for i, a := range ff.Arches {
		if a.Object == nil {
			continue
		}
		for _, w := range a.Object.Warnings() {
			warns = append(warns, errors.WithMessagef(w, "fat arch %d (%s)", i, a.CPU))
		}
	}
	return warns
}

func (ff *FatFile) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Magic         = %s\n", ff.Magic)
	fmt.Fprintf(&sb, "Arches        = %d\n", len(ff.Arches))
	for i, a := range ff.Arches {
		fmt.Fprintf(&sb, "\nArch %d: %s\n", i, a)
		if a.Object == nil {
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(a.Object.String(), "\n"), "\n") {
			sb.WriteString("    " + line + "\n")
		}
	}
	return sb.String()
}
