// Package elf adapts debug/elf to the binfmt.Object contract so ELF images
// can be dispatched next to Mach-O objects.
package elf

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	perrors "github.com/pkg/errors"

	"github.com/blacktop/bindump/pkg/binfmt"
)

// Magic is the ELF identification prefix.
var Magic = []byte(elf.ELFMAG)

// File is an in-memory ELF image reduced to its headers.
type File struct {
	elf.FileHeader
	Sections []elf.SectionHeader
	Progs    []elf.ProgHeader

	dat []byte
}

// NewFile decodes the ELF image held in dat.
func NewFile(dat []byte) (*File, error) {
	if len(dat) < len(Magic) {
		return nil, binfmt.Errorf(binfmt.ErrTruncated, 0, nil, "need %d bytes of magic, have %d", len(Magic), len(dat))
	}
	if !bytes.HasPrefix(dat, Magic) {
		return nil, binfmt.Errorf(binfmt.ErrUnknownMagic, 0, dat[:4], "invalid ELF magic")
	}
	ef, err := elf.NewFile(bytes.NewReader(dat))
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, binfmt.Errorf(binfmt.ErrTruncated, 0, nil, "%v", err)
		}
		return nil, perrors.Wrap(err, "failed to parse ELF")
	}
	f := &File{
		FileHeader: ef.FileHeader,
		Sections:   make([]elf.SectionHeader, 0, len(ef.Sections)),
		Progs:      make([]elf.ProgHeader, 0, len(ef.Progs)),
		dat:        dat,
	}
	for i := range ef.Sections {
		f.Sections = append(f.Sections, ef.Sections[i].SectionHeader)
	}
	for i := range ef.Progs {
		f.Progs = append(f.Progs, ef.Progs[i].ProgHeader)
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

func (f *File) Format() binfmt.Format { return binfmt.ELF }
func (f *File) Warnings() []error     { return nil }

// Section returns the first section header with the given name, or nil.
func (f *File) Section(name string) *elf.SectionHeader {
	for i := range f.Sections {
		s := &f.Sections[i]
		if s.Name == name {
			return s
		}
	}
	return nil
}

// SectionData returns the file contents of s without copying.
func (f *File) SectionData(s *elf.SectionHeader) ([]byte, error) {
	if s.Type == elf.SHT_NOBITS {
		return nil, nil
	}
	if s.Offset > uint64(len(f.dat)) || s.FileSize > uint64(len(f.dat))-s.Offset {
		return nil, binfmt.Errorf(binfmt.ErrOutOfBounds, int64(s.Offset), nil,
			"section %s size %#x exceeds file size %#x", s.Name, s.FileSize, len(f.dat))
	}
	return f.dat[s.Offset : s.Offset+s.FileSize], nil
}

func (f *File) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Class         = %s\n", f.Class)
	fmt.Fprintf(&sb, "Data          = %s\n", f.Data)
	fmt.Fprintf(&sb, "OSABI         = %s\n", f.OSABI)
	fmt.Fprintf(&sb, "Type          = %s\n", f.Type)
	fmt.Fprintf(&sb, "Machine       = %s\n", f.Machine)
	fmt.Fprintf(&sb, "Entry         = %#x\n", f.Entry)
	for i, p := range f.Progs {
		fmt.Fprintf(&sb, "%03d: %-12s off=0x%08x vaddr=0x%09x filesz=%#x memsz=%#x %s\n",
			i, p.Type, p.Off, p.Vaddr, p.Filesz, p.Memsz, p.Flags)
	}
	for i, s := range f.Sections {
		fmt.Fprintf(&sb, "%03d: %-20s %-14s addr=0x%09x off=0x%08x size=%s\n",
			i, s.Name, s.Type, s.Addr, s.Offset, humanize.Bytes(s.Size))
	}
	return sb.String()
}
