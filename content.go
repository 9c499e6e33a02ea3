package remotestore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"unicode/utf8"
)

// Content is an upload after normalization.
type Content struct {
	ContentType string
	Data        []byte
	Binary      bool
}

// NormalizeContent applies the storage rules to an upload:
//   - an empty content type becomes DefaultContentType
//   - application/json bodies must parse and are stored compacted; an empty
//     body is stored as {}
//   - a charset=binary parameter or a body that is not UTF-8 marks the content
//     binary
//
// The declared content type is kept verbatim.
func NormalizeContent(contentType string, body []byte) (Content, error) {
	if contentType == "" {
		contentType = DefaultContentType
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, params = "", nil
	}

	if mediaType == "application/json" {
		if len(body) == 0 {
			return Content{ContentType: contentType, Data: []byte("{}")}, nil
		}

		var buf bytes.Buffer
		if err := json.Compact(&buf, body); err != nil {
			return Content{}, fmt.Errorf("normalize content: %w: %w", ErrInvalidContent, err)
		}
		return Content{ContentType: contentType, Data: buf.Bytes()}, nil
	}

	return Content{
		ContentType: contentType,
		Data:        body,
		Binary:      params["charset"] == "binary" || !utf8.Valid(body),
	}, nil
}
