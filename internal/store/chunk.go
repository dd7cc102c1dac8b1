package store

// Chunk layout constants, as laid out in the file format: every chunk on
// disk is exactly ChunkSize bytes, closing with a big-endian CRC-24
// trailer. The header byte packs a 4-bit flags nibble over a 4-bit
// variant nibble; the next 252 bytes are variant-specific body, so header
// and body together make up the 253 bytes the CRC covers.

const (
	// ChunkSize is the fixed on-disk size of every chunk, in bytes.
	ChunkSize = 256

	// CRCSize is the width of the trailing CRC-24 field, in bytes.
	CRCSize = 3

	// chunkBodySize is the number of bytes covered by the CRC: the
	// header plus the variant body, excluding the trailer itself.
	chunkBodySize = ChunkSize - CRCSize

	// StubDataSize is the maximum field-stream bytes a stub chunk can
	// hold: header(1) + len(1) + data + pad = 253, minus 2 for header/len.
	StubDataSize = chunkBodySize - 2

	// ContinuedDataSize is the maximum field-stream bytes a continued
	// chunk can hold: header(1) + next-offset(8) + data = 253, minus 9.
	ContinuedDataSize = chunkBodySize - 9
)

// Variant identifies what kind of chunk a header byte describes.
type Variant byte

const (
	VariantFree   Variant = 0x00
	VariantDBHead Variant = 0x01
	VariantEntry  Variant = 0x02
)

// Flags are the high-nibble bits of a chunk's header byte.
type Flags byte

const (
	FlagUnderConstruction Flags = 0x80
	FlagContinued         Flags = 0x40

	variantMask = 0x0F
	flagsMask   = 0xF0
)

// header packs flags and variant into a single on-disk header byte.
func header(v Variant, f Flags) byte {
	return byte(f) | (byte(v) & variantMask)
}

// variantOf extracts the chunk variant from a header byte.
func variantOf(h byte) Variant {
	return Variant(h & variantMask)
}

// flagsOf extracts the flag bits from a header byte.
func flagsOf(h byte) Flags {
	return Flags(h & flagsMask)
}

func hasFlag(h byte, f Flags) bool {
	return Flags(h)&f == f
}

// Chunk is the raw on-disk content of a single chunk, as returned by
// ChunkFile.ReadChunk. It is a thin accessor over the bytes, not a
// decoded representation — Variant and Flags just peel the header byte
// apart, the way the layout table in the file format describes it.
type Chunk struct {
	bytes [ChunkSize]byte
}

// Variant reports what kind of chunk this is.
func (c Chunk) Variant() Variant {
	return variantOf(c.bytes[0])
}

// Flags reports the chunk's flag bits.
func (c Chunk) Flags() Flags {
	return flagsOf(c.bytes[0])
}

// HasFlag reports whether f is set on this chunk.
func (c Chunk) HasFlag(f Flags) bool {
	return hasFlag(c.bytes[0], f)
}

// Bytes returns the chunk's full 256 raw bytes.
func (c Chunk) Bytes() [ChunkSize]byte {
	return c.bytes
}
