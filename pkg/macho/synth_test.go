package macho

import (
	"encoding/binary"

	"github.com/blacktop/bindump/pkg/macho/types"
)

// Helpers that assemble Mach-O images in memory.

type synthSection struct {
	name, seg    string
	addr, size   uint64
	offset       uint32
	alignExp     uint32
	flags        uint32
	res1, res2   uint32
	res3         uint32
	nreloc, roff uint32
}

type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

type synthObject struct {
	bo       byteOrder
	wide     bool
	cpu      types.CPU
	subcpu   types.CPUSubtype
	typ      types.HeaderFileType
	flags    uint32
	cmds     [][]byte
	sizeCmds *uint32 // overrides the computed sizeofcmds
	nCmds    *uint32 // overrides the computed ncmds
	tail     []byte
}

func newSynth(bo byteOrder, wide bool) *synthObject {
	o := &synthObject{bo: bo, wide: wide, cpu: types.CPUAmd64, subcpu: 3, typ: types.MH_EXECUTE}
	if !wide {
		o.cpu = types.CPU386
	}
	return o
}

func (o *synthObject) magic() uint32 {
	if o.wide {
		return uint32(types.Magic64)
	}
	return uint32(types.Magic32)
}

func (o *synthObject) hdrSize() int {
	if o.wide {
		return types.FileHeaderSize64
	}
	return types.FileHeaderSize32
}

func (o *synthObject) u32(b []byte, v uint32) []byte { return o.bo.AppendUint32(b, v) }

func (o *synthObject) word(b []byte, v uint64) []byte {
	if o.wide {
		return o.bo.AppendUint64(b, v)
	}
	return o.bo.AppendUint32(b, uint32(v))
}

func fixed16(b []byte, s string) []byte {
	var n [16]byte
	copy(n[:], s)
	return append(b, n[:]...)
}

// raw appends a load command with tag cmd whose payload follows the prefix.
// pad extra zero bytes are added and counted in cmdsize.
func (o *synthObject) raw(cmd uint32, payload []byte, pad int) *synthObject {
	b := o.u32(nil, cmd)
	b = o.u32(b, uint32(8+len(payload)+pad))
	b = append(b, payload...)
	b = append(b, make([]byte, pad)...)
	o.cmds = append(o.cmds, b)
	return o
}

// segment appends an LC_SEGMENT or LC_SEGMENT_64 with the given sections.
func (o *synthObject) segment(name string, addr, memsz, off, filesz uint64, pad int, secs ...synthSection) *synthObject {
	cmd := uint32(types.LC_SEGMENT)
	if o.wide {
		cmd = uint32(types.LC_SEGMENT_64)
	}
	p := fixed16(nil, name)
	p = o.word(p, addr)
	p = o.word(p, memsz)
	p = o.word(p, off)
	p = o.word(p, filesz)
	p = o.u32(p, 7)
	p = o.u32(p, 5)
	p = o.u32(p, uint32(len(secs)))
	p = o.u32(p, 0)
	for _, s := range secs {
		p = fixed16(p, s.name)
		p = fixed16(p, s.seg)
		p = o.word(p, s.addr)
		p = o.word(p, s.size)
		p = o.u32(p, s.offset)
		p = o.u32(p, s.alignExp)
		p = o.u32(p, s.roff)
		p = o.u32(p, s.nreloc)
		p = o.u32(p, s.flags)
		p = o.u32(p, s.res1)
		p = o.u32(p, s.res2)
		if o.wide {
			p = o.u32(p, s.res3)
		}
	}
	return o.raw(cmd, p, pad)
}

func (o *synthObject) bytes() []byte {
	var cmds []byte
	for _, c := range o.cmds {
		cmds = append(cmds, c...)
	}
	ncmds, sizeCmds := uint32(len(o.cmds)), uint32(len(cmds))
	if o.nCmds != nil {
		ncmds = *o.nCmds
	}
	if o.sizeCmds != nil {
		sizeCmds = *o.sizeCmds
	}
	b := o.u32(nil, o.magic())
	b = o.u32(b, uint32(o.cpu))
	b = o.u32(b, uint32(o.subcpu))
	b = o.u32(b, uint32(o.typ))
	b = o.u32(b, ncmds)
	b = o.u32(b, sizeCmds)
	b = o.u32(b, o.flags)
	if o.wide {
		b = o.u32(b, 0)
	}
	b = append(b, cmds...)
	return append(b, o.tail...)
}

type synthArch struct {
	cpu      int32
	subcpu   int32
	offset   uint32
	size     uint32
	alignExp uint32
}

// fatImage lays out a fat header with the given arch records, zero pads it
// to total bytes and copies each object to its offset.
func fatImage(total int, archs []synthArch, objs map[uint32][]byte) []byte {
	b := binary.BigEndian.AppendUint32(nil, uint32(types.MagicFat))
	b = binary.BigEndian.AppendUint32(b, uint32(len(archs)))
	for _, a := range archs {
		b = binary.BigEndian.AppendUint32(b, uint32(a.cpu))
		b = binary.BigEndian.AppendUint32(b, uint32(a.subcpu))
		b = binary.BigEndian.AppendUint32(b, a.offset)
		b = binary.BigEndian.AppendUint32(b, a.size)
		b = binary.BigEndian.AppendUint32(b, a.alignExp)
	}
	if len(b) < total {
		b = append(b, make([]byte, total-len(b))...)
	}
	for off, obj := range objs {
		copy(b[off:], obj)
	}
	return b
}

func ptr[T any](v T) *T { return &v }
