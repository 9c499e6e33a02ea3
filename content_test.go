package remotestore_test

import (
	"testing"

	"github.com/sagarc03/remotestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeContent(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        []byte
		wantType    string
		wantData    string
		wantBinary  bool
	}{
		{
			name:     "default content type",
			body:     []byte("hello"),
			wantType: remotestore.DefaultContentType,
			wantData: "hello",
		},
		{
			name:        "json is compacted",
			contentType: "application/json",
			body:        []byte(`{"foo": "bar",  "n": [1, 2]}`),
			wantType:    "application/json",
			wantData:    `{"foo":"bar","n":[1,2]}`,
		},
		{
			name:        "json with parameters",
			contentType: "application/json; charset=utf-8",
			body:        []byte("[ 1 ]"),
			wantType:    "application/json; charset=utf-8",
			wantData:    "[1]",
		},
		{
			name:        "empty json body",
			contentType: "application/json",
			body:        nil,
			wantType:    "application/json",
			wantData:    "{}",
		},
		{
			name:        "charset binary",
			contentType: "text/plain; charset=binary",
			body:        []byte("looks like text"),
			wantType:    "text/plain; charset=binary",
			wantData:    "looks like text",
			wantBinary:  true,
		},
		{
			name:        "invalid utf8 is binary",
			contentType: "image/png",
			body:        []byte{0x89, 'P', 'N', 'G', 0xff},
			wantType:    "image/png",
			wantData:    string([]byte{0x89, 'P', 'N', 'G', 0xff}),
			wantBinary:  true,
		},
		{
			name:        "unparseable content type kept",
			contentType: "not a type",
			body:        []byte("x"),
			wantType:    "not a type",
			wantData:    "x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := remotestore.NormalizeContent(tt.contentType, tt.body)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, got.ContentType)
			assert.Equal(t, tt.wantData, string(got.Data))
			assert.Equal(t, tt.wantBinary, got.Binary)
		})
	}
}

func TestNormalizeContent_InvalidJSON(t *testing.T) {
	for _, body := range []string{`{"foo":`, " \n", "  "} {
		_, err := remotestore.NormalizeContent("application/json", []byte(body))
		assert.ErrorIs(t, err, remotestore.ErrInvalidContent, "body %q", body)
	}
}
