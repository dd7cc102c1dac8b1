package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC24VerifyContract(t *testing.T) {
	inputs := [][]byte{
		{},
		{0x00},
		[]byte("Ape Database!"),
		make([]byte, 253),
	}

	for _, in := range inputs {
		crc := digest24(in)
		trailer := encodeCRC24(crc)
		full := append(append([]byte{}, in...), trailer[:]...)
		assert.True(t, verifyCRC24(full))
	}
}

func TestCRC24DetectsCorruption(t *testing.T) {
	data := []byte("a chunk body worth checksumming")
	crc := digest24(data)
	trailer := encodeCRC24(crc)
	full := append(append([]byte{}, data...), trailer[:]...)
	require := assert.New(t)
	require.True(verifyCRC24(full))

	full[0] ^= 0xFF
	require.False(verifyCRC24(full))
}
