// Package codec serializes entry sets to and from the confmesh exchange
// formats.
//
// Codecs are stateless and namespace-agnostic: they translate an ordered
// slice of entries to bytes and back. Validation of keys and capacities
// belongs to the caller.
//
// JSON format:
//
//	{"<key>":{"type":"<name>","value":<value>}, ...}
//
// Keys appear in entry order. Floats use the shortest text that parses back
// to the same float32; NaN and infinities are written as the strings "NaN",
// "+Inf" and "-Inf". Blobs and ciphertext are base64 (standard alphabet).
// Entries carrying ciphertext add "encrypted":true.
//
// Binary format (little-endian):
//
//	[magic:4 0x43464742][count:4]
//	[type:1][flags:1][keylen:2][key][vlen:4][value]   (count times)
//
// Flag bit 0 marks an encrypted payload. Scalars use fixed widths: 4 bytes
// for i32, u32 and float (IEEE-754 bits), 8 for i64 and 1 for bool.
package codec
