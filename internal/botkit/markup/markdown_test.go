package markup

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestEscapeForMarkdown(t *testing.T) {
	tests := map[string]string{
		"BTC":                      "BTC",
		"ETH-USD (spot)":           `ETH\-USD \(spot\)`,
		"https://decrypt.co/feed":  `https://decrypt\.co/feed`,
		"50% off! #sale":           `50% off\! \#sale`,
		`a\b`:                      `a\\b`,
		"snake_case *bold* [link]": `snake\_case \*bold\* \[link\]`,
	}

	for in, want := range tests {
		assert.Equal(t, want, EscapeForMarkdown(in))
	}
}

func TestBoldAndCode(t *testing.T) {
	assert.Equal(t, `*Hello\.*`, Bold("Hello."))
	assert.Equal(t, "`a.b_c`", Code("a.b_c"))
	assert.Equal(t, "`x\\`y`", Code("x`y"))
}
