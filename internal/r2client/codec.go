package r2client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// ContentTypeZstdJSON is the content type of objects written by EncodeJSON.
const ContentTypeZstdJSON = "application/zstd"

// EncodeJSON marshals v as JSON and compresses it with zstd.
func EncodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	encoder, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("compress: create encoder: %w", err)
	}
	if err := json.NewEncoder(encoder).Encode(v); err != nil {
		_ = encoder.Close()
		return nil, fmt.Errorf("compress: encode: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("compress: close encoder: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeJSON decompresses data written by EncodeJSON into v. The
// decompressed size is capped to guard against corrupt or hostile objects.
func DecodeJSON(data []byte, v any) error {
	decoder, err := zstd.NewReader(bytes.NewReader(data), zstd.WithDecoderMaxMemory(maxObjectBytes*4))
	if err != nil {
		return fmt.Errorf("decompress: create decoder: %w", err)
	}
	defer decoder.Close()

	if err := json.NewDecoder(io.LimitReader(decoder, maxObjectBytes*4)).Decode(v); err != nil {
		return fmt.Errorf("decompress: decode: %w", err)
	}
	return nil
}
