package errors

// CorruptionError is a specialized error type for on-disk integrity failures:
// a chunk whose CRC-24 does not verify, or a field record that decodes into
// a value violating one of the store's invariants.
type CorruptionError struct {
	*baseError

	// chunkOffset is the absolute byte offset of the chunk that failed to verify.
	chunkOffset int64

	// fieldOffset is the absolute byte offset of the field record being
	// decoded when the corruption was detected, if applicable.
	fieldOffset int64

	// expectedCRC and computedCRC record the mismatch that triggered the error.
	expectedCRC uint32
	computedCRC uint32
}

// NewCorruptionError creates a new corruption-specific error with the
// provided context.
func NewCorruptionError(err error, code ErrorCode, msg string) *CorruptionError {
	return &CorruptionError{baseError: NewBaseError(err, code, msg)}
}

// Override base error methods to return *CorruptionError instead of *baseError.

func (ce *CorruptionError) WithMessage(msg string) *CorruptionError {
	ce.baseError.WithMessage(msg)
	return ce
}

func (ce *CorruptionError) WithCode(code ErrorCode) *CorruptionError {
	ce.baseError.WithCode(code)
	return ce
}

func (ce *CorruptionError) WithDetail(key string, value any) *CorruptionError {
	ce.baseError.WithDetail(key, value)
	return ce
}

// WithChunkOffset records which chunk failed to verify.
func (ce *CorruptionError) WithChunkOffset(offset int64) *CorruptionError {
	ce.chunkOffset = offset
	return ce
}

// WithFieldOffset records which field record was being decoded.
func (ce *CorruptionError) WithFieldOffset(offset int64) *CorruptionError {
	ce.fieldOffset = offset
	return ce
}

// WithCRCMismatch records the expected (zero) and actual digest for a failed CRC check.
func (ce *CorruptionError) WithCRCMismatch(expected, computed uint32) *CorruptionError {
	ce.expectedCRC = expected
	ce.computedCRC = computed
	return ce
}

// ChunkOffset returns the offset of the chunk that failed to verify.
func (ce *CorruptionError) ChunkOffset() int64 {
	return ce.chunkOffset
}

// FieldOffset returns the offset of the field record being decoded.
func (ce *CorruptionError) FieldOffset() int64 {
	return ce.fieldOffset
}

// ExpectedCRC returns the CRC value that would have indicated a valid chunk (always zero).
func (ce *CorruptionError) ExpectedCRC() uint32 {
	return ce.expectedCRC
}

// ComputedCRC returns the CRC value actually computed over the chunk's bytes.
func (ce *CorruptionError) ComputedCRC() uint32 {
	return ce.computedCRC
}

// NewChunkCRCError creates a corruption error for a chunk whose CRC-24 did not verify.
func NewChunkCRCError(chunkOffset int64, computed uint32) *CorruptionError {
	return NewCorruptionError(nil, ErrorCodeCorruption, "chunk failed CRC-24 verification").
		WithChunkOffset(chunkOffset).
		WithCRCMismatch(0, computed)
}

// NewFieldDecodeError creates a corruption error for a field record that
// failed to decode at the given offset.
func NewFieldDecodeError(fieldOffset int64, cause error) *CorruptionError {
	return NewCorruptionError(cause, ErrorCodeCorruption, "field record failed to decode").
		WithFieldOffset(fieldOffset)
}
