package codec

import (
	"encoding/binary"
	"math"

	"github.com/yndnr/confmesh-go/internal/core/domain"
)

const (
	// Magic opens every binary image.
	Magic uint32 = 0x43464742

	// HeaderSize is the length of magic plus record count.
	HeaderSize = 8

	recordHeaderSize = 1 + 1 + 2
	flagEncrypted    = 1 << 0
	maxBinaryKeyLen  = math.MaxUint16
)

func scalarWidth(t domain.Type) int {
	switch t {
	case domain.TypeI32, domain.TypeU32, domain.TypeFloat:
		return 4
	case domain.TypeI64:
		return 8
	case domain.TypeBool:
		return 1
	default:
		return -1
	}
}

func encodeBinary(entries []domain.Entry) ([]byte, error) {
	size := HeaderSize
	for _, e := range entries {
		if len(e.Key) > maxBinaryKeyLen {
			return nil, domain.ErrKeyTooLong.WithDetails("binary keys are limited to 65535 bytes")
		}
		size += recordHeaderSize + len(e.Key) + 4 + valueLen(e.Value)
	}

	out := make([]byte, 0, size)
	out = binary.LittleEndian.AppendUint32(out, Magic)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(entries)))

	for _, e := range entries {
		var flags byte
		if e.Encrypted {
			flags |= flagEncrypted
		}
		out = append(out, byte(e.Type()), flags)
		out = binary.LittleEndian.AppendUint16(out, uint16(len(e.Key)))
		out = append(out, e.Key...)
		out = binary.LittleEndian.AppendUint32(out, uint32(valueLen(e.Value)))
		out = appendValue(out, e.Value)
	}
	return out, nil
}

func valueLen(v domain.Value) int {
	if w := scalarWidth(v.Type()); w > 0 {
		return w
	}
	return len(domain.Payload(v))
}

func appendValue(out []byte, v domain.Value) []byte {
	switch x := v.(type) {
	case domain.I32:
		return binary.LittleEndian.AppendUint32(out, uint32(x))
	case domain.U32:
		return binary.LittleEndian.AppendUint32(out, uint32(x))
	case domain.I64:
		return binary.LittleEndian.AppendUint64(out, uint64(x))
	case domain.Float:
		return binary.LittleEndian.AppendUint32(out, math.Float32bits(float32(x)))
	case domain.Bool:
		if x {
			return append(out, 1)
		}
		return append(out, 0)
	case domain.Str:
		return append(out, x...)
	case domain.Blob:
		return append(out, x...)
	default:
		return out
	}
}

func decodeBinary(data []byte, skipErrors bool) ([]domain.Entry, error) {
	if len(data) < HeaderSize {
		return nil, domain.ErrInvalidFormat.WithDetails("binary image shorter than header")
	}
	if magic := binary.LittleEndian.Uint32(data); magic != Magic {
		return nil, domain.ErrInvalidFormat.WithDetails("bad magic")
	}
	count := binary.LittleEndian.Uint32(data[4:])

	// Every record occupies at least its fixed header, so the count can be
	// bounded before allocating.
	rest := data[HeaderSize:]
	if uint64(count)*(recordHeaderSize+4) > uint64(len(rest)) {
		return nil, domain.ErrInvalidFormat.WithDetails("record count exceeds image size")
	}

	entries := make([]domain.Entry, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(rest) < recordHeaderSize {
			return nil, domain.ErrInvalidFormat.WithDetails("truncated record header")
		}
		typ := domain.Type(rest[0])
		flags := rest[1]
		keyLen := int(binary.LittleEndian.Uint16(rest[2:]))
		rest = rest[recordHeaderSize:]

		if len(rest) < keyLen+4 {
			return nil, domain.ErrInvalidFormat.WithDetails("truncated record key")
		}
		key := string(rest[:keyLen])
		valLen := binary.LittleEndian.Uint32(rest[keyLen:])
		rest = rest[keyLen+4:]

		if uint64(valLen) > uint64(len(rest)) {
			return nil, domain.ErrInvalidFormat.WithDetails("truncated record value")
		}
		raw := rest[:valLen]
		rest = rest[valLen:]

		e, err := decodeBinaryValue(key, typ, flags, raw)
		if err != nil {
			if skipErrors {
				continue
			}
			return nil, err
		}
		entries = append(entries, e)
	}

	if len(rest) != 0 {
		return nil, domain.ErrInvalidFormat.WithDetails("trailing bytes after last record")
	}
	return entries, nil
}

func decodeBinaryValue(key string, typ domain.Type, flags byte, raw []byte) (domain.Entry, error) {
	e := domain.Entry{Key: key, Encrypted: flags&flagEncrypted != 0}
	if key == "" {
		return e, entryError(key, "empty key")
	}
	if !typ.Valid() {
		return e, entryError(key, "unknown type tag %d", uint8(typ))
	}
	if flags&^flagEncrypted != 0 {
		return e, entryError(key, "unknown flags %#x", flags)
	}
	if w := scalarWidth(typ); w > 0 {
		if e.Encrypted {
			return e, entryError(key, "%s values cannot be encrypted", typ)
		}
		if len(raw) != w {
			return e, entryError(key, "%s value has %d bytes, want %d", typ, len(raw), w)
		}
	}

	switch typ {
	case domain.TypeI32:
		e.Value = domain.I32(binary.LittleEndian.Uint32(raw))
	case domain.TypeU32:
		e.Value = domain.U32(binary.LittleEndian.Uint32(raw))
	case domain.TypeI64:
		e.Value = domain.I64(binary.LittleEndian.Uint64(raw))
	case domain.TypeFloat:
		e.Value = domain.Float(math.Float32frombits(binary.LittleEndian.Uint32(raw)))
	case domain.TypeBool:
		if raw[0] > 1 {
			return e, entryError(key, "bool byte %d", raw[0])
		}
		e.Value = domain.Bool(raw[0] == 1)
	default:
		v, err := domain.WithPayload(typ, raw)
		if err != nil {
			return e, err
		}
		e.Value = v
	}
	return e, nil
}
