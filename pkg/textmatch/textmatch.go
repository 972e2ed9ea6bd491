// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package textmatch resolves a free-form title back to a known
// candidate through escalating normalization. Model output rarely
// quotes titles verbatim, so matching proceeds from exact comparison
// to progressively looser forms and stops at the first hit.
package textmatch

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Candidate is one matchable item. Names are tried in order, so put
// the preferred alias first.
type Candidate struct {
	ID    string
	Names []string
}

const quoteRunes = "\"'“”‘’『』「」«»"

// Match finds the candidate that want refers to. Levels escalate:
// exact after quote stripping, punctuation-free, substring
// containment, and finally an NFKC case fold. Within a level,
// candidate order decides ties.
func Match(want string, candidates []Candidate) (string, bool) {
	want = stripQuotes(want)
	if want == "" {
		return "", false
	}

	for _, c := range candidates {
		for _, n := range c.Names {
			if stripQuotes(n) == want {
				return c.ID, true
			}
		}
	}

	wantBare := stripPunct(want)
	if wantBare != "" {
		for _, c := range candidates {
			for _, n := range c.Names {
				if stripPunct(stripQuotes(n)) == wantBare {
					return c.ID, true
				}
			}
		}
		for _, c := range candidates {
			for _, n := range c.Names {
				bare := stripPunct(stripQuotes(n))
				if contains(wantBare, bare) || contains(bare, wantBare) {
					return c.ID, true
				}
			}
		}
	}

	wantFold := fold(want)
	if wantFold == "" {
		return "", false
	}
	for _, c := range candidates {
		for _, n := range c.Names {
			if fold(n) == wantFold {
				return c.ID, true
			}
		}
	}
	return "", false
}

// contains requires a minimum length so one stray character cannot
// claim a match.
func contains(haystack, needle string) bool {
	return len([]rune(needle)) >= 2 && strings.Contains(haystack, needle)
}

func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	return strings.Trim(s, quoteRunes)
}

// stripPunct drops punctuation, symbols, and spaces.
func stripPunct(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r) {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// fold applies NFKC normalization, lowercases, and keeps only letters
// and digits.
func fold(s string) string {
	s = norm.NFKC.String(s)
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
