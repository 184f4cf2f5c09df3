package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

// InlineStore embeds the file directly in the returned URL as a base64
// data URL. Nothing is persisted, so Delete is a no-op for valid URLs.
type InlineStore struct{}

// NewInlineStore returns an InlineStore.
func NewInlineStore() *InlineStore {
	return &InlineStore{}
}

// Save encodes data as a data URL.
func (s *InlineStore) Save(_ context.Context, _, contentType string, data []byte) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Delete accepts any data URL; there is no stored copy to remove.
func (s *InlineStore) Delete(_ context.Context, url string) error {
	if !strings.HasPrefix(url, "data:") {
		return fmt.Errorf("url %q is not a data url", url)
	}
	return nil
}
