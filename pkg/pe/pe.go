// Package pe adapts debug/pe to the binfmt.Object contract.
package pe

import (
	"bytes"
	"debug/pe"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	perrors "github.com/pkg/errors"

	"github.com/blacktop/bindump/pkg/binfmt"
)

// Magic is the DOS stub signature every PE image starts with.
var Magic = []byte("MZ")

// File is an in-memory PE image reduced to its headers.
type File struct {
	pe.FileHeader
	OptionalHeader any // *pe.OptionalHeader32, *pe.OptionalHeader64 or nil
	Sections       []pe.SectionHeader
}

// NewFile decodes the PE image held in dat.
func NewFile(dat []byte) (*File, error) {
	if len(dat) < len(Magic) {
		return nil, binfmt.Errorf(binfmt.ErrTruncated, 0, nil, "need %d bytes of magic, have %d", len(Magic), len(dat))
	}
	if !bytes.HasPrefix(dat, Magic) {
		return nil, binfmt.Errorf(binfmt.ErrUnknownMagic, 0, dat[:len(Magic)], "invalid DOS signature")
	}
	pf, err := pe.NewFile(bytes.NewReader(dat))
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, binfmt.Errorf(binfmt.ErrTruncated, 0, nil, "%v", err)
		}
		return nil, perrors.Wrap(err, "failed to parse PE")
	}
	f := &File{
		FileHeader:     pf.FileHeader,
		OptionalHeader: pf.OptionalHeader,
		Sections:       make([]pe.SectionHeader, 0, len(pf.Sections)),
	}
	for _, s := range pf.Sections {
		f.Sections = append(f.Sections, s.SectionHeader)
	}
	return f, nil
}

// Decode implements binfmt.DecodeFunc.
func Decode(dat []byte) (binfmt.Object, error) {
	f, err := NewFile(dat)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) Format() binfmt.Format { return binfmt.PE }
func (f *File) Warnings() []error     { return nil }

var machineStrings = map[uint16]string{
	pe.IMAGE_FILE_MACHINE_I386:  "i386",
	pe.IMAGE_FILE_MACHINE_AMD64: "amd64",
	pe.IMAGE_FILE_MACHINE_ARM:   "arm",
	pe.IMAGE_FILE_MACHINE_ARMNT: "armnt",
	pe.IMAGE_FILE_MACHINE_ARM64: "arm64",
}

// MachineString returns a short name for the COFF machine field.
func (f *File) MachineString() string {
	if s, ok := machineStrings[f.Machine]; ok {
		return s
	}
	return fmt.Sprintf("%#x", f.Machine)
}

func (f *File) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Machine         = %s\n", f.MachineString())
	fmt.Fprintf(&sb, "Sections        = %d\n", f.NumberOfSections)
	fmt.Fprintf(&sb, "Characteristics = %#x\n", f.Characteristics)
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		fmt.Fprintf(&sb, "ImageBase       = %#x\n", oh.ImageBase)
		fmt.Fprintf(&sb, "Entry           = %#x\n", oh.AddressOfEntryPoint)
	case *pe.OptionalHeader64:
		fmt.Fprintf(&sb, "ImageBase       = %#x\n", oh.ImageBase)
		fmt.Fprintf(&sb, "Entry           = %#x\n", oh.AddressOfEntryPoint)
	}
	for i, s := range f.Sections {
		fmt.Fprintf(&sb, "%03d: %-8s vaddr=0x%08x vsize=%#x off=0x%08x size=%s\n",
			i, s.Name, s.VirtualAddress, s.VirtualSize, s.Offset, humanize.Bytes(uint64(s.Size)))
	}
	return sb.String()
}
