// Package semhash computes order- and stopword-insensitive content fingerprints.
// Two texts that differ only in word order, case, punctuation or stopwords hash
// to the same value, which is how duplicate categories are detected.
package semhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// Language selects the stopword list.
type Language string

// Supported languages.
const (
	Spanish Language = "spanish"
	English Language = "english"
)

// Hash is a 64-char lowercase hex SHA-256 digest of normalized text.
type Hash string

// String returns the hex digest.
func (h Hash) String() string { return string(h) }

// Hasher normalizes and hashes text for one language. Safe for concurrent use.
type Hasher struct {
	lang      Language
	stopwords map[string]struct{}
}

var defaultHasher = mustNew(Spanish)

// New returns a Hasher for lang.
func New(lang Language) (*Hasher, error) {
	var words []string
	switch lang {
	case Spanish:
		words = spanishStopwords
	case English:
		words = englishStopwords
	default:
		return nil, fmt.Errorf("unsupported stopword language %q", lang)
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return &Hasher{lang: lang, stopwords: set}, nil
}

func mustNew(lang Language) *Hasher {
	h, err := New(lang)
	if err != nil {
		panic(err)
	}
	return h
}

// FromText hashes text with the default (Spanish) stopword list.
func FromText(text string) Hash {
	return defaultHasher.Hash(text)
}

// Language returns the stopword language.
func (h *Hasher) Language() Language { return h.lang }

// Hash returns the fingerprint of text.
func (h *Hasher) Hash(text string) Hash {
	sum := sha256.Sum256([]byte(h.Normalize(text)))
	return Hash(hex.EncodeToString(sum[:]))
}

// Normalize lowercases, strips punctuation, drops stopwords, sorts tokens and
// joins them with single spaces. Empty input normalizes to "".
func (h *Hasher) Normalize(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, strings.ToLower(text))

	tokens := strings.Fields(cleaned)
	kept := tokens[:0]
	for _, t := range tokens {
		if _, stop := h.stopwords[t]; !stop {
			kept = append(kept, t)
		}
	}
	slices.Sort(kept)
	return strings.Join(kept, " ")
}
