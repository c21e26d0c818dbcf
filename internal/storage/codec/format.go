package codec

import (
	"fmt"
	"strings"

	"github.com/yndnr/confmesh-go/internal/core/domain"
)

// Format selects an exchange format.
type Format uint8

const (
	FormatUnspecified Format = iota
	FormatJSON
	FormatBinary
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatBinary:
		return "binary"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// ParseFormat resolves a format name.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "json":
		return FormatJSON, nil
	case "binary", "bin":
		return FormatBinary, nil
	default:
		return FormatUnspecified, domain.ErrInvalidParameter.WithDetails("unknown format " + name)
	}
}

// Flags modify export and import behavior.
type Flags uint32

const (
	// FlagPretty indents JSON output. Ignored by the binary format.
	FlagPretty Flags = 1 << iota

	// FlagDecrypt exports encrypted entries as plaintext.
	FlagDecrypt

	// FlagClear erases the target namespace before importing.
	FlagClear

	// FlagSkipErrors drops malformed entries instead of failing the import.
	FlagSkipErrors
)

// Has reports whether every bit of other is set in f.
func (f Flags) Has(other Flags) bool {
	return f&other == other
}

// Encode serializes entries in order. Namespaces are ignored.
func Encode(format Format, entries []domain.Entry, flags Flags) ([]byte, error) {
	switch format {
	case FormatJSON:
		return encodeJSON(entries, flags.Has(FlagPretty))
	case FormatBinary:
		return encodeBinary(entries)
	default:
		return nil, domain.ErrInvalidParameter.WithDetails("unknown format " + format.String())
	}
}

// Size returns the exact length Encode produces for the same arguments.
func Size(format Format, entries []domain.Entry, flags Flags) (int, error) {
	out, err := Encode(format, entries, flags)
	if err != nil {
		return 0, err
	}
	return len(out), nil
}

// Decode parses data into entries in document order.
//
// Malformed top-level structure fails with domain.ErrInvalidFormat. A
// malformed entry fails the whole decode unless FlagSkipErrors is set, in
// which case it is dropped. When a key occurs more than once the last value
// wins and the first position is kept.
func Decode(format Format, data []byte, flags Flags) ([]domain.Entry, error) {
	if len(data) == 0 {
		return nil, domain.ErrInvalidParameter.WithDetails("empty import data")
	}

	var (
		entries []domain.Entry
		err     error
	)
	switch format {
	case FormatJSON:
		entries, err = decodeJSON(data, flags.Has(FlagSkipErrors))
	case FormatBinary:
		entries, err = decodeBinary(data, flags.Has(FlagSkipErrors))
	default:
		return nil, domain.ErrInvalidParameter.WithDetails("unknown format " + format.String())
	}
	if err != nil {
		return nil, err
	}
	return dedupe(entries), nil
}

func dedupe(entries []domain.Entry) []domain.Entry {
	seen := make(map[string]int, len(entries))
	out := entries[:0]
	for _, e := range entries {
		if i, ok := seen[e.Key]; ok {
			out[i] = e
			continue
		}
		seen[e.Key] = len(out)
		out = append(out, e)
	}
	return out
}

func entryError(key string, format string, args ...any) error {
	return domain.ErrInvalidFormat.WithDetails(fmt.Sprintf("entry %q: ", key) + fmt.Sprintf(format, args...))
}
