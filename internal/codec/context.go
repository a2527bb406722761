// Package codec turns a PurchaseContext into the gateway's free-text UserDefinedField and back.
package codec

import (
	"fmt"
	"strings"

	"payment-relay/internal/apperr"
	"payment-relay/internal/model"

	jsoniter "github.com/json-iterator/go"
)

// MaxUserDefinedFieldLength is the gateway's limit on UserDefinedField.
const MaxUserDefinedFieldLength = 1000

const maxPhoneDigits = 11

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EncodePurchaseContext serializes ctx for the gateway. An over-long product title is cut
// until the blob fits; anything else that does not fit is rejected.
func EncodePurchaseContext(ctx model.PurchaseContext) (string, error) {
	b, err := json.Marshal(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: encode purchase context: %v", apperr.ErrInvalidInput, err)
	}
	if len(b) <= MaxUserDefinedFieldLength {
		return string(b), nil
	}

	// escaping is per rune, so the title's share of the blob is the sum of its runes' encodings
	budget := encodedLen(ctx.ProductTitle) - (len(b) - MaxUserDefinedFieldLength)
	var title strings.Builder
	for _, r := range ctx.ProductTitle {
		n := encodedLen(string(r))
		if n > budget {
			break
		}
		budget -= n
		title.WriteRune(r)
	}
	ctx.ProductTitle = strings.TrimSpace(title.String())

	b, err = json.Marshal(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: encode purchase context: %v", apperr.ErrInvalidInput, err)
	}
	if len(b) > MaxUserDefinedFieldLength {
		return "", fmt.Errorf("%w: purchase context is %d bytes, limit %d", apperr.ErrInvalidInput, len(b), MaxUserDefinedFieldLength)
	}
	return string(b), nil
}

// encodedLen is the JSON-escaped size of s without its surrounding quotes.
func encodedLen(s string) int {
	b, err := json.Marshal(s)
	if err != nil {
		return len(s)
	}
	return len(b) - 2
}

// DecodePurchaseContext never fails: absent or malformed input yields the empty context.
func DecodePurchaseContext(raw string) model.PurchaseContext {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw[0] != '{' {
		return model.PurchaseContext{}
	}

	var ctx model.PurchaseContext
	if err := json.Unmarshal([]byte(raw), &ctx); err != nil {
		return model.PurchaseContext{}
	}
	if ctx.Quantity < 1 {
		ctx.Quantity = 0
	}
	return ctx
}

// NormalizePhone keeps digits only, at most 11 of them.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if b.Len() == maxPhoneDigits {
			break
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
