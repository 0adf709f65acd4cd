package types

import (
	"strconv"
)

type VmProtection int32

func (v VmProtection) Read() bool {
	return (v & 0x01) != 0
}

func (v VmProtection) Write() bool {
	return (v & 0x02) != 0
}

func (v VmProtection) Execute() bool {
	return (v & 0x04) != 0
}

func (v VmProtection) String() string {
	var protStr string
	if v.Read() {
		protStr += "r"
	} else {
		protStr += "-"
	}
	if v.Write() {
		protStr += "w"
	} else {
		protStr += "-"
	}
	if v.Execute() {
		protStr += "x"
	} else {
		protStr += "-"
	}
	return protStr
}

type IntName struct {
	I uint32
	S string
}

func StringName(i uint32, names []IntName, goSyntax bool) string {
	if s, ok := lookupName(i, names); ok {
		if goSyntax {
			return "types." + s
		}
		return s
	}
	return "0x" + strconv.FormatUint(uint64(i), 16)
}

func lookupName(i uint32, names []IntName) (string, bool) {
	for _, n := range names {
		if n.I == i {
			return n.S, true
		}
	}
	return "", false
}
