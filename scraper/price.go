package scraper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParseError means price-looking text could not be normalized to a number.
// It is never silently coerced to zero.
type ParseError struct {
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse price %q: %v", e.Text, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// currencyTokenRE matches a currency-prefixed numeric token. Used both for
// pulling the first price out of overlapping selector text (list price, deal
// price and struck-through price often share one container) and as the
// last-resort scan over the whole document.
var currencyTokenRE = regexp.MustCompile(`(?:₹|Rs\.?|INR|\$|£|€)\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)

// bareNumberRE matches a plain numeric token, for selector text that carries
// no currency glyph at all (e.g. .a-price-whole).
var bareNumberRE = regexp.MustCompile(`[0-9][0-9,]*(?:\.[0-9]{1,2})?`)

// currencyReplacer strips every known encoding of the currency glyphs the
// source pages use, plus separators that are not part of the number.
var currencyReplacer = strings.NewReplacer(
	"₹", "",
	"Rs.", "",
	"Rs", "",
	"INR", "",
	"$", "",
	"£", "",
	"€", "",
	",", "",
	" ", " ",
)

// ParsePrice normalizes a price string to a number: currency symbols and
// thousands separators are stripped, then the result is parsed as a decimal.
// Non-numeric residue yields a *ParseError, never zero.
func ParsePrice(text string) (float64, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, &ParseError{Text: text, Err: fmt.Errorf("empty")}
	}

	// Prefer an explicit currency-prefixed token, else the first bare number.
	candidate := ""
	if m := currencyTokenRE.FindStringSubmatch(trimmed); m != nil {
		candidate = m[1]
	} else if m := bareNumberRE.FindString(currencyReplacer.Replace(trimmed)); m != "" {
		candidate = m
	}
	if candidate == "" {
		return 0, &ParseError{Text: text, Err: fmt.Errorf("no numeric token")}
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(candidate, ",", ""), 64)
	if err != nil {
		return 0, &ParseError{Text: text, Err: err}
	}
	if value < 0 {
		return 0, &ParseError{Text: text, Err: fmt.Errorf("negative price")}
	}
	return value, nil
}
