// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package jsonfix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirect(t *testing.T) {
	v, err := Parse(`[{"a": 1}]`)
	require.NoError(t, err)
	arr, ok := v.([]any)
	require.True(t, ok)
	assert.Len(t, arr, 1)
}

func TestParseFencedBlock(t *testing.T) {
	in := "好的，以下是结果：\n```json\n[{\"outline\": \"开场\"}]\n```\n希望有帮助。"
	var out []map[string]string
	require.NoError(t, ParseInto(in, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "开场", out[0]["outline"])
}

func TestParseUnlabeledFence(t *testing.T) {
	in := "```\n{\"k\": \"v\"}\n```"
	v, err := Parse(in)
	require.NoError(t, err)
	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "v", m["k"])
}

func TestParseSurroundingProse(t *testing.T) {
	in := `根据您的要求，结果如下 [{"id": "1"}, {"id": "2"}] 以上。`
	var out []map[string]string
	require.NoError(t, ParseInto(in, &out))
	assert.Len(t, out, 2)
}

func TestParseTrailingComma(t *testing.T) {
	in := `[{"id": "1", "score": 0.8,}, {"id": "2", "score": 0.6},]`
	var out []map[string]any
	require.NoError(t, ParseInto(in, &out))
	require.Len(t, out, 2)
	assert.Equal(t, 0.6, out[1]["score"])
}

func TestParseUnclosedBrackets(t *testing.T) {
	in := `[{"id": "1", "reason": "good"`
	var out []map[string]string
	require.NoError(t, ParseInto(in, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "good", out[0]["reason"])
}

func TestParseTruncatedMidString(t *testing.T) {
	// Second element is cut off inside a string value; the string and
	// brackets are closed and both elements survive.
	in := `[{"id": "1", "title": "完整"}, {"id": "2", "title": "被截`
	var out []map[string]string
	require.NoError(t, ParseInto(in, &out))
	require.Len(t, out, 2)
	assert.Equal(t, "完整", out[0]["title"])
}

func TestParseTruncatedMidElement(t *testing.T) {
	// Cut off right after a key; only the complete element survives.
	in := `[{"id": "1", "title": "完整"}, {"id": "2", "title":`
	var out []map[string]string
	require.NoError(t, ParseInto(in, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "完整", out[0]["title"])
}

func TestParseBOM(t *testing.T) {
	_, err := Parse("\uFEFF{\"a\": 1}")
	assert.NoError(t, err)
}

func TestParsePlainTextFails(t *testing.T) {
	_, err := Parse("抱歉，我无法处理这个请求。")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no parseable JSON")
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse("   ")
	assert.Error(t, err)
}
