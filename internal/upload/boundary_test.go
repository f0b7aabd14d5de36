package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractBoundary(t *testing.T) {
	tests := []struct {
		ct   string
		want string
	}{
		{"multipart/form-data; boundary=----abc123", "----abc123"},
		{`multipart/form-data; boundary="quoted value"`, "quoted value"},
		{"multipart/form-data; charset=utf-8; boundary=xyz", "xyz"},
		{"multipart/form-data; boundary=a:b; foo=bar", "a:b"},
		{"multipart/form-data", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractBoundary(tt.ct), tt.ct)
	}
}

func TestIsMultipart(t *testing.T) {
	assert.True(t, IsMultipart("multipart/form-data; boundary=x"))
	assert.True(t, IsMultipart("Multipart/Form-Data; boundary=x"))
	assert.False(t, IsMultipart("application/json"))
	assert.False(t, IsMultipart(""))
}
