// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package textmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clips = []Candidate{
	{ID: "1", Names: []string{"投资理财的三个误区", "关于投资的讨论"}},
	{ID: "2", Names: []string{"职场新人生存指南！", "职场经验分享"}},
	{ID: "3", Names: []string{"Live Coding 初体验", "直播写代码"}},
}

func TestMatchExact(t *testing.T) {
	id, ok := Match("投资理财的三个误区", clips)
	require.True(t, ok)
	assert.Equal(t, "1", id)
}

func TestMatchQuoted(t *testing.T) {
	id, ok := Match("《职场新人生存指南！》", clips)
	// CJK book quotes are not in the strip set but punctuation-free
	// comparison removes them.
	require.True(t, ok)
	assert.Equal(t, "2", id)

	id, ok = Match("“投资理财的三个误区”", clips)
	require.True(t, ok)
	assert.Equal(t, "1", id)
}

func TestMatchPunctuationFree(t *testing.T) {
	id, ok := Match("职场新人生存指南", clips)
	require.True(t, ok)
	assert.Equal(t, "2", id)
}

func TestMatchSecondaryName(t *testing.T) {
	id, ok := Match("职场经验分享", clips)
	require.True(t, ok)
	assert.Equal(t, "2", id)
}

func TestMatchSubstring(t *testing.T) {
	id, ok := Match("投资理财的三个误区（完整版）", clips)
	require.True(t, ok)
	assert.Equal(t, "1", id)
}

func TestMatchCaseFold(t *testing.T) {
	id, ok := Match("live coding 初体验", clips)
	require.True(t, ok)
	assert.Equal(t, "3", id)
}

func TestMatchOrderWithinLevel(t *testing.T) {
	cands := []Candidate{
		{ID: "a", Names: []string{"同名标题"}},
		{ID: "b", Names: []string{"同名标题"}},
	}
	id, ok := Match("同名标题", cands)
	require.True(t, ok)
	assert.Equal(t, "a", id)
}

func TestMatchMiss(t *testing.T) {
	_, ok := Match("完全无关的内容", clips)
	assert.False(t, ok)

	_, ok = Match("", clips)
	assert.False(t, ok)
}

func TestMatchIDFallback(t *testing.T) {
	cands := []Candidate{{ID: "7", Names: []string{"某个标题", "7"}}}
	id, ok := Match("7", cands)
	require.True(t, ok)
	assert.Equal(t, "7", id)
}
