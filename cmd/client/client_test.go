package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplay(t *testing.T) {
	capture := []byte{
		0, 2, 'a', 'b',
		0, 1, 'c',
		0, 0,
		0, 1, 'z', // after the end of session
	}
	var out bytes.Buffer
	n, err := replay(&out, bytes.NewReader(capture), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, capture[:9], out.Bytes())
}

func TestReplay_EOFAndTruncation(t *testing.T) {
	var out bytes.Buffer
	n, err := replay(&out, bytes.NewReader([]byte{0, 1, 'a'}), 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []byte{0, 1, 'a'}, out.Bytes())

	_, err = replay(&out, bytes.NewReader([]byte{0, 5, 'a'}), 0)
	assert.Error(t, err)
}
