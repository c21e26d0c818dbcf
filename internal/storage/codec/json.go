package codec

import (
	"encoding/base64"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/yndnr/confmesh-go/internal/core/domain"
)

// Text forms of non-finite floats.
//
// The canonical quiet NaN is written as "NaN". Any other NaN carries its
// bit pattern, as in "NaN:0xffc00001".
const (
	floatNaN       = "NaN"
	floatNaNPrefix = "NaN:"
	floatPosInf    = "+Inf"
	floatNegInf    = "-Inf"

	canonicalNaNBits uint32 = 0x7fc00000
)

var prettyOptions = &pretty.Options{
	Width:  80,
	Prefix: "",
	Indent: "  ",
}

func encodeJSON(entries []domain.Entry, indent bool) ([]byte, error) {
	out := make([]byte, 0, 32*len(entries)+2)
	out = append(out, '{')
	for i, e := range entries {
		if i > 0 {
			out = append(out, ',')
		}
		out = appendString(out, e.Key)
		out = append(out, `:{"type":`...)
		out = appendString(out, e.Type().String())
		out = append(out, `,"value":`...)
		out = appendJSONValue(out, e)
		if e.Encrypted {
			out = append(out, `,"encrypted":true`...)
		}
		out = append(out, '}')
	}
	out = append(out, '}')

	if indent {
		return pretty.PrettyOptions(out, prettyOptions), nil
	}
	return out, nil
}

func appendString(out []byte, s string) []byte {
	// json.Marshal of a string cannot fail.
	quoted, _ := json.Marshal(s)
	return append(out, quoted...)
}

func appendJSONValue(out []byte, e domain.Entry) []byte {
	if e.Encrypted {
		return appendString(out, base64.StdEncoding.EncodeToString(domain.Payload(e.Value)))
	}

	switch x := e.Value.(type) {
	case domain.I32:
		return strconv.AppendInt(out, int64(x), 10)
	case domain.U32:
		return strconv.AppendUint(out, uint64(x), 10)
	case domain.I64:
		return strconv.AppendInt(out, int64(x), 10)
	case domain.Float:
		f := float64(x)
		switch {
		case math.IsNaN(f):
			if bits := math.Float32bits(float32(x)); bits != canonicalNaNBits {
				return appendString(out, floatNaNPrefix+"0x"+strconv.FormatUint(uint64(bits), 16))
			}
			return appendString(out, floatNaN)
		case math.IsInf(f, 1):
			return appendString(out, floatPosInf)
		case math.IsInf(f, -1):
			return appendString(out, floatNegInf)
		}
		return strconv.AppendFloat(out, f, 'g', -1, 32)
	case domain.Bool:
		return strconv.AppendBool(out, bool(x))
	case domain.Str:
		return appendString(out, string(x))
	case domain.Blob:
		return appendString(out, base64.StdEncoding.EncodeToString(x))
	default:
		return append(out, "null"...)
	}
}

func decodeJSON(data []byte, skipErrors bool) ([]domain.Entry, error) {
	if !gjson.ValidBytes(data) {
		return nil, domain.ErrInvalidFormat.WithDetails("malformed JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, domain.ErrInvalidFormat.WithDetails("top-level JSON value must be an object")
	}

	var (
		entries []domain.Entry
		failed  error
	)
	doc.ForEach(func(key, value gjson.Result) bool {
		e, err := decodeJSONEntry(key.String(), value)
		if err != nil {
			if skipErrors {
				return true
			}
			failed = err
			return false
		}
		entries = append(entries, e)
		return true
	})
	if failed != nil {
		return nil, failed
	}
	return entries, nil
}

func decodeJSONEntry(key string, obj gjson.Result) (domain.Entry, error) {
	e := domain.Entry{Key: key}
	if key == "" {
		return e, entryError(key, "empty key")
	}
	if !obj.IsObject() {
		return e, entryError(key, "entry must be an object")
	}

	typeField := obj.Get("type")
	if typeField.Type != gjson.String {
		return e, entryError(key, "missing type")
	}
	typ, ok := domain.ParseType(typeField.Str)
	if !ok {
		return e, entryError(key, "unknown type %q", typeField.Str)
	}
	val := obj.Get("value")
	if !val.Exists() {
		return e, entryError(key, "missing value")
	}

	if enc := obj.Get("encrypted"); enc.Exists() {
		if enc.Type != gjson.True && enc.Type != gjson.False {
			return e, entryError(key, "encrypted must be a boolean")
		}
		e.Encrypted = enc.Bool()
	}
	if e.Encrypted {
		if typ != domain.TypeStr && typ != domain.TypeBlob {
			return e, entryError(key, "%s values cannot be encrypted", typ)
		}
		raw, err := decodeBase64(key, val)
		if err != nil {
			return e, err
		}
		e.Value, err = domain.WithPayload(typ, raw)
		return e, err
	}

	v, err := decodeJSONValue(key, typ, val)
	if err != nil {
		return e, err
	}
	e.Value = v
	return e, nil
}

func decodeJSONValue(key string, typ domain.Type, val gjson.Result) (domain.Value, error) {
	switch typ {
	case domain.TypeI32:
		n, err := parseNumber(key, val, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 32) })
		return domain.I32(n), err
	case domain.TypeU32:
		n, err := parseNumber(key, val, func(s string) (uint64, error) { return strconv.ParseUint(s, 10, 32) })
		return domain.U32(n), err
	case domain.TypeI64:
		n, err := parseNumber(key, val, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
		return domain.I64(n), err
	case domain.TypeFloat:
		if val.Type == gjson.String {
			switch val.Str {
			case floatNaN:
				return domain.Float(math.Float32frombits(canonicalNaNBits)), nil
			case floatPosInf, "Inf":
				return domain.Float(float32(math.Inf(1))), nil
			case floatNegInf:
				return domain.Float(float32(math.Inf(-1))), nil
			}
			if strings.HasPrefix(val.Str, floatNaNPrefix) {
				return decodeNaN(key, val.Str[len(floatNaNPrefix):])
			}
			return nil, entryError(key, "float value %q", val.Str)
		}
		f, err := parseNumber(key, val, func(s string) (float64, error) { return strconv.ParseFloat(s, 32) })
		return domain.Float(float32(f)), err
	case domain.TypeBool:
		if val.Type != gjson.True && val.Type != gjson.False {
			return nil, entryError(key, "bool value must be true or false")
		}
		return domain.Bool(val.Bool()), nil
	case domain.TypeStr:
		if val.Type != gjson.String {
			return nil, entryError(key, "str value must be a string")
		}
		return domain.Str(val.Str), nil
	case domain.TypeBlob:
		raw, err := decodeBase64(key, val)
		if err != nil {
			return nil, err
		}
		return domain.Blob(raw), nil
	default:
		return nil, entryError(key, "unknown type %s", typ)
	}
}

func decodeNaN(key, text string) (domain.Value, error) {
	bits, err := strconv.ParseUint(text, 0, 32)
	if err != nil {
		return nil, entryError(key, "NaN bits %q: %v", text, err)
	}
	f := math.Float32frombits(uint32(bits))
	if !math.IsNaN(float64(f)) {
		return nil, entryError(key, "bits %#08x are not a NaN", bits)
	}
	return domain.Float(f), nil
}

// parseNumber parses the raw JSON number text so 64-bit integers keep
// every digit.
func parseNumber[N int64 | uint64 | float64](key string, val gjson.Result, parse func(string) (N, error)) (N, error) {
	if val.Type != gjson.Number {
		return 0, entryError(key, "value must be a number")
	}
	n, err := parse(val.Raw)
	if err != nil {
		return 0, entryError(key, "%v", err)
	}
	return n, nil
}

func decodeBase64(key string, val gjson.Result) ([]byte, error) {
	if val.Type != gjson.String {
		return nil, entryError(key, "value must be a base64 string")
	}
	raw, err := base64.StdEncoding.DecodeString(val.Str)
	if err != nil {
		return nil, entryError(key, "bad base64: %v", err)
	}
	return raw, nil
}
