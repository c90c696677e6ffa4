package filecodec

import (
	"bytes"
	"testing"

	"github.com/smilyorg/contentsd/internal/entry"
)

func TestEncodeDecodeRoundTripText(t *testing.T) {
	data := []byte("hello, world")
	content, format, err := Encode(data, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if format != entry.FormatText {
		t.Fatalf("format = %q, want text", format)
	}
	got, err := Decode(content, format)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip = %q, want %q", got, data)
	}
}

func TestEncodeDecodeRoundTripBinary(t *testing.T) {
	data := []byte{0xff, 0x00, 0xfe, 0x01, 0x80}
	content, format, err := Encode(data, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if format != entry.FormatBase64 {
		t.Fatalf("format = %q, want base64", format)
	}
	got, err := Decode(content, format)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip = %v, want %v", got, data)
	}
}

func TestEncodeTextRequestedOnNonUTF8Fails(t *testing.T) {
	data := []byte{0xff, 0xfe}
	want := entry.FormatText
	_, _, err := Encode(data, &want)
	if err == nil {
		t.Fatal("expected BadFormat error, got nil")
	}
}

func TestEncodeBase64RequestedExplicitly(t *testing.T) {
	data := []byte("plain text")
	want := entry.FormatBase64
	_, format, err := Encode(data, &want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if format != entry.FormatBase64 {
		t.Fatalf("format = %q, want base64", format)
	}
}

func TestDecodeUnknownFormat(t *testing.T) {
	if _, err := Decode("x", entry.Format("bogus")); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
