// Package binfmt holds the contract shared by every executable container
// decoder: the format enumeration, the decoded object interface and the
// error taxonomy.
package binfmt

// Format is an executable container format.
type Format uint8

const (
	Unknown Format = iota
	Universal
	MachO
	ELF
	PE
)

var formatStrings = []string{
	Unknown:   "Unknown",
	Universal: "Universal MachO",
	MachO:     "MachO",
	ELF:       "ELF",
	PE:        "PE",
}

func (f Format) String() string {
	if int(f) < len(formatStrings) {
		return formatStrings[f]
	}
	return formatStrings[Unknown]
}

// An Object is a fully decoded container.
//
// Implementations are immutable once returned and own every nested record.
type Object interface {
	Format() Format
	// String renders the object as deterministic multi-line text.
	String() string
	// Warnings returns the non-fatal structural inconsistencies found while
	// decoding, including those of embedded objects.
	Warnings() []error
}

// DecodeFunc decodes raw bytes into an Object.
type DecodeFunc func(dat []byte) (Object, error)
