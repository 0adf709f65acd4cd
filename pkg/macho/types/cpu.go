package types

import (
	"strconv"

	"github.com/blacktop/bindump/pkg/binfmt"
)

// A CPU is a Mach-O cpu type.
type CPU int32

const (
	cpuArch64   = 0x01000000 // 64 bit ABI
	cpuArch6432 = 0x02000000 // ABI for 64-bit hardware with 32-bit types; LP32
)

const (
	CPUAny     CPU = -1
	CPUVax     CPU = 1
	CPUMc680x0 CPU = 6
	CPU386     CPU = 7
	CPUAmd64   CPU = CPU386 | cpuArch64
	CPUMc98000 CPU = 10
	CPUHppa    CPU = 11
	CPUArm     CPU = 12
	CPUArm64   CPU = CPUArm | cpuArch64
	CPUArm6432 CPU = CPUArm | cpuArch6432
	CPUMc88000 CPU = 13
	CPUSparc   CPU = 14
	CPUI860    CPU = 15
	CPUPpc     CPU = 18
	CPUPpc64   CPU = CPUPpc | cpuArch64
)

// cpuStrings is also the closed set of cpu types ParseCPU accepts.
var cpuStrings = map[CPU]string{
	CPUAny:     "Any",
	CPUVax:     "VAX",
	CPUMc680x0: "MC680x0",
	CPU386:     "i386",
	CPUAmd64:   "Amd64",
	CPUMc98000: "MC98000",
	CPUHppa:    "HPPA",
	CPUArm:     "ARM",
	CPUArm64:   "AARCH64",
	CPUArm6432: "ARM64_32",
	CPUMc88000: "MC88000",
	CPUSparc:   "SPARC",
	CPUI860:    "i860",
	CPUPpc:     "PowerPC",
	CPUPpc64:   "PowerPC 64",
}

// ParseCPU maps a raw cpu_type_t to a known CPU.
func ParseCPU(v int32) (CPU, error) {
	if _, ok := cpuStrings[CPU(v)]; !ok {
		return 0, &binfmt.FormatError{Kind: binfmt.ErrUnknownCPUType, Val: v}
	}
	return CPU(v), nil
}

// Is64Bit reports whether the CPU uses the 64-bit ABI.
func (i CPU) Is64Bit() bool { return i != CPUAny && i&cpuArch64 != 0 }

func (i CPU) String() string {
	if s, ok := cpuStrings[i]; ok {
		return s
	}
	return strconv.Itoa(int(i))
}

func (i CPU) GoString() string {
	if s, ok := cpuStrings[i]; ok {
		return "types.CPU(" + s + ")"
	}
	return "types.CPU(" + strconv.Itoa(int(i)) + ")"
}

// A CPUSubtype is the raw cpu_subtype_t of a header or universal arch.
type CPUSubtype int32

// X86 subtypes
const (
	CPUSubtypeX86All   CPUSubtype = 3
	CPUSubtypeX86Arch1 CPUSubtype = 4
	CPUSubtypeX86_64H  CPUSubtype = 8
)

// ARM subtypes
const (
	CPUSubtypeArmAll    CPUSubtype = 0
	CPUSubtypeArmV4T    CPUSubtype = 5
	CPUSubtypeArmV6     CPUSubtype = 6
	CPUSubtypeArmV5Tej  CPUSubtype = 7
	CPUSubtypeArmXscale CPUSubtype = 8
	CPUSubtypeArmV7     CPUSubtype = 9
	CPUSubtypeArmV7F    CPUSubtype = 10
	CPUSubtypeArmV7S    CPUSubtype = 11
	CPUSubtypeArmV7K    CPUSubtype = 12
	CPUSubtypeArmV8     CPUSubtype = 13
	CPUSubtypeArmV6M    CPUSubtype = 14
	CPUSubtypeArmV7M    CPUSubtype = 15
	CPUSubtypeArmV7Em   CPUSubtype = 16
	CPUSubtypeArmV8M    CPUSubtype = 17
)

// ARM64 subtypes
const (
	CPUSubtypeArm64All CPUSubtype = 0
	CPUSubtypeArm64V8  CPUSubtype = 1
	CPUSubtypeArm64E   CPUSubtype = 2
)

// Capability bits used in the definition of cpu_subtype.
const (
	cpuSubtypeFeatureMask = 0xff000000 /* mask for feature flags */
	cpuSubtypeMask        = 0x00ffffff /* mask for cpu subtype */
	cpuSubtypeLib64       = 0x80000000 /* 64 bit libraries */
)

var cpuSubtypeX86Strings = []IntName{
	{uint32(CPUSubtypeX86All), "x86_64"},
	{uint32(CPUSubtypeX86Arch1), "x86 Arch1"},
	{uint32(CPUSubtypeX86_64H), "x86_64 (Haswell)"},
}
var cpuSubtypeArmStrings = []IntName{
	{uint32(CPUSubtypeArmAll), "ArmAll"},
	{uint32(CPUSubtypeArmV4T), "ARMv4t"},
	{uint32(CPUSubtypeArmV6), "ARMv6"},
	{uint32(CPUSubtypeArmV5Tej), "ARMv5tej"},
	{uint32(CPUSubtypeArmXscale), "ARMXScale"},
	{uint32(CPUSubtypeArmV7), "ARMv7"},
	{uint32(CPUSubtypeArmV7F), "ARMv7f"},
	{uint32(CPUSubtypeArmV7S), "ARMv7s"},
	{uint32(CPUSubtypeArmV7K), "ARMv7k"},
	{uint32(CPUSubtypeArmV8), "ARMv8"},
	{uint32(CPUSubtypeArmV6M), "ARMv6m"},
	{uint32(CPUSubtypeArmV7M), "ARMv7m"},
	{uint32(CPUSubtypeArmV7Em), "ARMv7em"},
	{uint32(CPUSubtypeArmV8M), "ARMv8m"},
}
var cpuSubtypeArm64Strings = []IntName{
	{uint32(CPUSubtypeArm64All), "ARM64"},
	{uint32(CPUSubtypeArm64V8), "ARM64 (ARMv8)"},
	{uint32(CPUSubtypeArm64E), "ARM64e (ARMv8.3)"},
}

// String names the subtype in the context of its cpu type. Subtypes
// without a known name render as hex.
func (st CPUSubtype) String(cpu CPU) string {
	sub := uint32(st) & cpuSubtypeMask
	switch cpu {
	case CPU386, CPUAmd64:
		return StringName(sub, cpuSubtypeX86Strings, false)
	case CPUArm:
		return StringName(sub, cpuSubtypeArmStrings, false)
	case CPUArm64:
		return StringName(sub, cpuSubtypeArm64Strings, false)
	}
	return "0x" + strconv.FormatUint(uint64(uint32(st)), 16)
}

// Caps returns the capability bits of the subtype.
func (st CPUSubtype) Caps(cpu CPU) string {
	caps := uint32(st) & cpuSubtypeFeatureMask
	if caps == 0 {
		return ""
	}
	if caps&cpuSubtypeLib64 != 0 && cpu != CPUArm64 {
		return "caps: LIB64"
	}
	return "caps: 0x" + strconv.FormatUint(uint64(caps), 16)
}
