package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxRequestBodySize caps request bodies. Bulk node uploads are the
// largest payloads.
const MaxRequestBodySize = 4 << 20

// MaxNodeIDLength bounds node identifiers.
const MaxNodeIDLength = 128

// ErrUnsupportedMediaType is returned by DecodeJSON for non-JSON bodies.
var ErrUnsupportedMediaType = errors.New("Content-Type must be application/json")

// ValidateRequestBody limits the body size of POST, PUT and PATCH requests.
func ValidateRequestBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// DecodeJSON strictly decodes a single JSON value from the request body
// into dst. Unknown fields and trailing data are errors.
func DecodeJSON(r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return ErrUnsupportedMediaType
		}
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("request body must hold a single JSON value")
	}
	return nil
}

// ValidateNodeID checks that id is a usable node identifier: non-empty,
// valid UTF-8, at most MaxNodeIDLength bytes, with no control characters
// or slashes.
func ValidateNodeID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("node id cannot be empty")
	}
	if len(id) > MaxNodeIDLength {
		return fmt.Errorf("node id too long (max %d bytes)", MaxNodeIDLength)
	}
	if !utf8.ValidString(id) {
		return errors.New("node id must be valid UTF-8")
	}
	for _, c := range id {
		if unicode.IsControl(c) || c == '/' {
			return errors.New("node id contains invalid characters")
		}
	}
	return nil
}
