// Package filecodec implements the File Codec (spec §4.2): detecting text
// vs. binary on read, and decoding the two accepted upload formats.
package filecodec

import (
	"encoding/base64"
	"unicode/utf8"

	"github.com/smilyorg/contentsd/internal/apierror"
	"github.com/smilyorg/contentsd/internal/entry"
)

// Encode picks text or base64 for the given bytes, honoring an explicitly
// requested format. When want is nil, the server chooses: valid UTF-8 ->
// text, otherwise base64. When want is FormatText but the bytes are not
// valid UTF-8, it fails BadFormat (§4.2).
func Encode(data []byte, want *entry.Format) (content string, format entry.Format, err error) {
	if want != nil {
		switch *want {
		case entry.FormatText:
			if !utf8.Valid(data) {
				return "", "", apierror.New(apierror.BadFormat, "file is not valid UTF-8 text")
			}
			return string(data), entry.FormatText, nil
		case entry.FormatBase64:
			return base64.StdEncoding.EncodeToString(data), entry.FormatBase64, nil
		default:
			return "", "", apierror.New(apierror.BadFormat, "unknown format %q", *want)
		}
	}

	if utf8.Valid(data) {
		return string(data), entry.FormatText, nil
	}
	return base64.StdEncoding.EncodeToString(data), entry.FormatBase64, nil
}

// Decode turns an upload body's content string back into bytes given its
// declared format.
func Decode(content string, format entry.Format) ([]byte, error) {
	switch format {
	case entry.FormatText:
		return []byte(content), nil
	case entry.FormatBase64:
		data, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return nil, apierror.New(apierror.BadFormat, "invalid base64 content: %v", err)
		}
		return data, nil
	default:
		return nil, apierror.New(apierror.BadFormat, "unknown format %q", format)
	}
}
