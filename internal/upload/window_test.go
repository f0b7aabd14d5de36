package upload

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindow_DelimiterSplitAcrossPushes(t *testing.T) {
	delim := []byte("\r\n--XYZ")
	w := newWindow(delim, 8)
	var out bytes.Buffer

	found, err := w.push([]byte("abcdefgh\r\n-"), &out)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, "abcd", out.String())
	assert.Len(t, w.held(), len(delim))

	found, err = w.push([]byte("-XYZ--\r\n"), &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "abcdefgh", out.String())
	assert.Empty(t, w.held())
}

func TestWindow_HoldsBackShortInput(t *testing.T) {
	w := newWindow([]byte("\r\n--XYZ"), 8)
	var out bytes.Buffer

	found, err := w.push([]byte("abc"), &out)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, out.Len())
	assert.Equal(t, "abc", string(w.held()))
}

func TestWindow_ManyPushesNeverLoseBytes(t *testing.T) {
	delim := []byte("\r\n--boundary")
	payload := randomPayload(10_000, 99)
	stream := append(append([]byte{}, payload...), delim...)

	w := newWindow(delim, 64)
	var out bytes.Buffer
	found := false
	for i := 0; i < len(stream) && !found; i += 37 {
		end := i + 37
		if end > len(stream) {
			end = len(stream)
		}
		var err error
		found, err = w.push(stream[i:end], &out)
		require.NoError(t, err)
	}
	require.True(t, found)
	assert.True(t, bytes.Equal(payload, out.Bytes()))
}
