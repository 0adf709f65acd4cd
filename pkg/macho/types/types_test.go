package types

import (
	"errors"
	"testing"

	"github.com/blacktop/bindump/pkg/binfmt"
	"github.com/google/go-cmp/cmp"
)

func TestParseCPU(t *testing.T) {
	tests := []struct {
		in   int32
		want CPU
	}{
		{-1, CPUAny},
		{1, CPUVax},
		{6, CPUMc680x0},
		{7, CPU386},
		{16777223, CPUAmd64},
		{10, CPUMc98000},
		{11, CPUHppa},
		{12, CPUArm},
		{16777228, CPUArm64},
		{33554444, CPUArm6432},
		{13, CPUMc88000},
		{14, CPUSparc},
		{15, CPUI860},
		{18, CPUPpc},
		{16777234, CPUPpc64},
	}
	for _, tt := range tests {
		got, err := ParseCPU(tt.in)
		if err != nil {
			t.Errorf("ParseCPU(%d) = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCPU(%d) = %v; want %v", tt.in, got, tt.want)
		}
	}
	if len(tests) != len(cpuStrings) {
		t.Errorf("cpu table has %d entries; test covers %d", len(cpuStrings), len(tests))
	}

	for _, v := range []int32{0, 2, 8, 16777224, -2} {
		_, err := ParseCPU(v)
		var fe *binfmt.FormatError
		if !errors.As(err, &fe) || !errors.Is(err, binfmt.ErrUnknownCPUType) {
			t.Errorf("ParseCPU(%d) err = %v; want ErrUnknownCPUType", v, err)
			continue
		}
		if fe.Val != v {
			t.Errorf("ParseCPU(%d) err value = %v", v, fe.Val)
		}
	}
}

func TestCPUString(t *testing.T) {
	if s := CPUAmd64.String(); s != "Amd64" {
		t.Errorf("CPUAmd64.String() = %q", s)
	}
	if !CPUArm64.Is64Bit() || CPUArm6432.Is64Bit() || CPUAny.Is64Bit() {
		t.Error("Is64Bit() misreports the ABI bits")
	}
	if s := CPUSubtype(3).String(CPUAmd64); s != "x86_64" {
		t.Errorf("subtype 3 of Amd64 = %q", s)
	}
	if s := CPUSubtype(2).String(CPUArm64); s != "ARM64e (ARMv8.3)" {
		t.Errorf("subtype 2 of AARCH64 = %q", s)
	}
	if s := CPUSubtype(-0x7ffffffd).Caps(CPUAmd64); s != "caps: LIB64" {
		t.Errorf("Caps() = %q; want caps: LIB64", s)
	}
}

func TestParseFileType(t *testing.T) {
	for v := uint32(1); v <= 14; v++ {
		ft, err := ParseFileType(v)
		if err != nil {
			t.Errorf("ParseFileType(%d) = %v", v, err)
		}
		if uint32(ft) != v {
			t.Errorf("ParseFileType(%d) = %d", v, ft)
		}
	}
	for _, v := range []uint32{0, 15, 0xffffffff} {
		if _, err := ParseFileType(v); !errors.Is(err, binfmt.ErrUnknownFileType) {
			t.Errorf("ParseFileType(%d) err = %v; want ErrUnknownFileType", v, err)
		}
	}
	if MH_EXECUTE.String() != "EXECUTE" || MH_GPU_DYLIB.String() != "GPU_DYLIB" {
		t.Errorf("unexpected file type names %q %q", MH_EXECUTE, MH_GPU_DYLIB)
	}
}

func TestParseLoadCmd(t *testing.T) {
	for _, c := range LoadCmds() {
		got, err := ParseLoadCmd(uint32(c))
		if err != nil || got != c {
			t.Errorf("ParseLoadCmd(%#x) = %v, %v", uint32(c), got, err)
		}
	}
	if n := len(LoadCmds()); n != 54 {
		t.Errorf("len(LoadCmds()) = %d; want 54", n)
	}
	for _, v := range []uint32{0, 0x18, 0x1c, 0x36, 0x80000001, 0xffffffff} {
		_, err := ParseLoadCmd(v)
		var fe *binfmt.FormatError
		if !errors.As(err, &fe) || !errors.Is(err, binfmt.ErrUnknownLoadCommand) {
			t.Errorf("ParseLoadCmd(%#x) err = %v; want ErrUnknownLoadCommand", v, err)
			continue
		}
		if fe.Val != LoadCmd(v) {
			t.Errorf("ParseLoadCmd(%#x) err value = %v", v, fe.Val)
		}
	}
	if !LC_LOAD_WEAK_DYLIB.RequiresDyld() || LC_SEGMENT_64.RequiresDyld() {
		t.Error("RequiresDyld() misreports LC_REQ_DYLD")
	}
	if s := LC_DYLD_CHAINED_FIXUPS.String(); s != "LC_DYLD_CHAINED_FIXUPS" {
		t.Errorf("String() = %q", s)
	}
	if s := LoadCmd(0x36).String(); s != "0x36" {
		t.Errorf("unknown String() = %q", s)
	}
}

func TestHeaderFlagList(t *testing.T) {
	tests := []struct {
		in   HeaderFlag
		want []string
	}{
		{0, []string{"None"}},
		{NoUndefs | DyldLink | TwoLevel | PIE, []string{"NoUndefs", "DyldLink", "TwoLevel", "PIE"}},
		{DylibInCache | 0x10000000, []string{"0x10000000", "DylibInCache"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, tt.in.List()); diff != "" {
			t.Errorf("HeaderFlag(%#x).List() mismatch (-want +got):\n%s", uint32(tt.in), diff)
		}
	}
}

func TestVmProtection(t *testing.T) {
	tests := map[VmProtection]string{0: "---", 1: "r--", 3: "rw-", 5: "r-x", 7: "rwx"}
	for p, want := range tests {
		if got := p.String(); got != want {
			t.Errorf("VmProtection(%d) = %q; want %q", p, got, want)
		}
	}
}

func TestSegFlagString(t *testing.T) {
	if s := (NoReLoc | ReadOnly).String(); s != "NoReLoc|ReadOnly" {
		t.Errorf("SegFlag.String() = %q", s)
	}
	if !S_ZEROFILL.IsZerofill() || (S_REGULAR | 0x80000000).IsZerofill() {
		t.Error("IsZerofill() misreports section type")
	}
}
