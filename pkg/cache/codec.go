package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/klauspost/compress/flate"
)

var (
	// ErrEncoding indicates a record could not be serialized.
	ErrEncoding = errors.New("cache encoding failed")

	// ErrDecoding indicates a stored blob is not a valid record.
	ErrDecoding = errors.New("cache decoding failed")
)

// maxInflatedSize bounds decompression of a single record.
const maxInflatedSize = 64 << 20

// wireRecord is the decompressed on-disk form:
// {"expired_at": <unix seconds>, "data": <json>}
type wireRecord struct {
	ExpiredAt int64           `json:"expired_at"`
	Data      json.RawMessage `json:"data"`
}

// Encode serializes a record to JSON and compresses it with raw DEFLATE
// at best compression. Expiry is stored with second precision.
func Encode(r *Record) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil record", ErrEncoding)
	}
	if !IsStructured(r.Data) {
		return nil, fmt.Errorf("%w: data must be a JSON object or array", ErrEncoding)
	}

	var js bytes.Buffer
	enc := json.NewEncoder(&js)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(wireRecord{
		ExpiredAt: r.ExpiresAt.Unix(),
		Data:      r.Data,
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	raw := bytes.TrimSuffix(js.Bytes(), []byte("\n"))

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("%w: deflate: %v", ErrEncoding, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: deflate: %v", ErrEncoding, err)
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode. It fails with ErrDecoding when the blob does not
// inflate, is not JSON, lacks an integer "expired_at", or lacks an object or
// array "data".
func Decode(b []byte) (*Record, error) {
	r := flate.NewReader(bytes.NewReader(b))
	defer r.Close()

	raw, err := io.ReadAll(io.LimitReader(r, maxInflatedSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: inflate: %v", ErrDecoding, err)
	}
	if len(raw) > maxInflatedSize {
		return nil, fmt.Errorf("%w: inflated record exceeds %d bytes", ErrDecoding, maxInflatedSize)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecoding, err)
	}

	expRaw, ok := fields["expired_at"]
	if !ok {
		return nil, fmt.Errorf("%w: missing expired_at", ErrDecoding)
	}
	exp, err := strconv.ParseInt(string(bytes.TrimSpace(expRaw)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: expired_at is not an integer", ErrDecoding)
	}

	data, ok := fields["data"]
	if !ok || !IsStructured(data) {
		return nil, fmt.Errorf("%w: data must be a JSON object or array", ErrDecoding)
	}

	return &Record{
		ExpiresAt: time.Unix(exp, 0),
		Data:      data,
	}, nil
}

// IsStructured reports whether raw holds a JSON object or array, the only
// payload shapes the cache stores.
func IsStructured(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return false
	}
	return json.Valid(trimmed)
}
