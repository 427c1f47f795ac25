package utils

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// SlugMaxLen bounds generated slugs, including any -N suffix.
const SlugMaxLen = 120

// Slugify lowercases s and collapses every run of non letter, non digit runes into a single dash.
// Letters outside ASCII (Arabic titles) are kept as is.
func Slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			b.WriteRune('-')
			lastDash = true
		}
	}
	return cutSlug(b.String(), SlugMaxLen)
}

// cutSlug trims s to at most n bytes without splitting a rune, then trims dashes.
func cutSlug(s string, n int) string {
	if len(s) > n {
		cut := n
		for cut > 0 && !isRuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return strings.Trim(s, "-")
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// UniqueSlug returns the slug of base, or base-2, base-3, ... until taken reports false.
// fallback is used when base slugifies to the empty string.
func UniqueSlug(base, fallback string, taken func(candidate string) (bool, error)) (string, error) {
	slug := Slugify(base)
	if slug == "" {
		slug = Slugify(fallback)
	}
	if slug == "" {
		slug = "item"
	}

	exists, err := taken(slug)
	if err != nil {
		return "", err
	}
	if !exists {
		return slug, nil
	}

	for i := 2; i < 1000; i++ {
		suffix := fmt.Sprintf("-%d", i)
		candidate := cutSlug(slug, SlugMaxLen-len(suffix)) + suffix
		exists, err = taken(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", errors.New("failed to generate unique slug after many attempts")
}
