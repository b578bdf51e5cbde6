package ndjson

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLineSkipsBlanksAndTrims(t *testing.T) {
	r := NewReader(strings.NewReader("  {\"a\":1}  \n\n\n{\"b\":2}\n   \n"))

	first, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(first))

	second, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(second))

	_, err = r.ReadLine()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestReadLineReturnsStableCopies(t *testing.T) {
	r := NewReader(strings.NewReader("first line\nsecond line\n"))

	first, err := r.ReadLine()
	require.NoError(t, err)
	_, err = r.ReadLine()
	require.NoError(t, err)

	assert.Equal(t, "first line", string(first))
}

func TestReadLineHandlesLongLines(t *testing.T) {
	long := strings.Repeat("x", 300*1024)
	r := NewReader(strings.NewReader(long + "\n"))

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Len(t, line, 300*1024)
}

func TestReadLineRejectsOversizedLines(t *testing.T) {
	r := NewReader(strings.NewReader(strings.Repeat("x", 2*1024*1024)))

	_, err := r.ReadLine()
	assert.Error(t, err)
}
