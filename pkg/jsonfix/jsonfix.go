// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package jsonfix extracts JSON from loosely formatted text, such as
// model output that wraps JSON in Markdown fences or truncates it
// mid-structure. Extraction and repair are layered: each layer is
// tried only when the previous one fails to yield valid JSON.
package jsonfix

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)```")
	fencedAny  = regexp.MustCompile("(?s)```\\s*(.*?)```")
	trailComma = regexp.MustCompile(`,\s*([\]}])`)
)

// Parse returns the first JSON value found in s.
func Parse(s string) (any, error) {
	s = strings.TrimSpace(strings.TrimPrefix(s, "\uFEFF"))
	if s == "" {
		return nil, fmt.Errorf("empty response")
	}

	cand := s
	if m := fencedJSON.FindStringSubmatch(s); m != nil {
		cand = strings.TrimSpace(m[1])
	} else if m := fencedAny.FindStringSubmatch(s); m != nil {
		cand = strings.TrimSpace(m[1])
	}

	if v, err := unmarshal(cand); err == nil {
		return v, nil
	}
	if outer := outermost(cand); outer != "" {
		if v, err := unmarshal(outer); err == nil {
			return v, nil
		}
		cand = outer
	}
	if v, err := unmarshal(repair(cand)); err == nil {
		return v, nil
	}
	if rec := recoverTruncated(cand); rec != "" {
		if v, err := unmarshal(rec); err == nil {
			return v, nil
		}
	}
	return nil, fmt.Errorf("no parseable JSON in response: %s", excerpt(s))
}

// ParseInto parses like Parse and decodes the result into out.
func ParseInto(s string, out any) error {
	v, err := Parse(s)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func unmarshal(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	switch v.(type) {
	case map[string]any, []any:
		return v, nil
	}
	return nil, fmt.Errorf("not a JSON object or array")
}

// outermost cuts the widest region of the bracket kind that opens
// first, so a truncated array is not mistaken for its first object.
func outermost(s string) string {
	arr := strings.IndexByte(s, '[')
	obj := strings.IndexByte(s, '{')
	open, closer := arr, byte(']')
	if arr < 0 || (obj >= 0 && obj < arr) {
		open, closer = obj, '}'
	}
	if open < 0 {
		return ""
	}
	end := strings.LastIndexByte(s, closer)
	if end <= open {
		return ""
	}
	return s[open : end+1]
}

// repair fixes the common breakages: trailing commas, an unterminated
// string, and unclosed brackets.
func repair(s string) string {
	s = trailComma.ReplaceAllString(s, "$1")
	inStr, stack := scan(s)
	if inStr {
		s += `"`
	}
	s = strings.TrimRight(s, " \t\r\n")
	s = strings.TrimSuffix(s, ",")
	for i := len(stack) - 1; i >= 0; i-- {
		switch stack[i] {
		case '[':
			s += "]"
		case '{':
			s += "}"
		}
	}
	return s
}

// recoverTruncated cuts a truncated array of objects back to its last
// complete element and closes it.
func recoverTruncated(s string) string {
	open := strings.IndexByte(s, '[')
	if open < 0 {
		return ""
	}
	last := -1
	depth := 0
	inStr := false
	esc := false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 1 && c == '}' {
				last = i
			}
		}
	}
	if last < 0 {
		return ""
	}
	return s[open:last+1] + "]"
}

// scan reports whether s ends inside a string and which brackets are
// still open, outermost first.
func scan(s string) (inStr bool, stack []byte) {
	esc := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '[', '{':
			stack = append(stack, c)
		case ']', '}':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return inStr, stack
}

func excerpt(s string) string {
	const max = 200
	r := []rune(s)
	if len(r) > max {
		return string(r[:max]) + "..."
	}
	return s
}
