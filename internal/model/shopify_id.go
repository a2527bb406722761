package model

import (
	"bytes"
	"strconv"
	"strings"
)

// ShopifyID accepts a numeric id, a quoted id, or an Admin GraphQL gid
// ("gid://shopify/ProductVariant/123") and keeps only the numeric part.
type ShopifyID string

func (id *ShopifyID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}

	raw := string(b)
	if strings.HasPrefix(raw, `"`) {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			return err
		}
		raw = unquoted
	}

	*id = ShopifyID(NormalizeShopifyID(raw))
	return nil
}

func (id ShopifyID) String() string {
	return string(id)
}

func NormalizeShopifyID(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.LastIndex(raw, "/"); i >= 0 {
		raw = raw[i+1:]
	}
	return raw
}
