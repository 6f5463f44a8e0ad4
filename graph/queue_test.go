// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgeQueueDropNewestKeepsOldest(t *testing.T) {
	q := newEdgeQueue(2, DropNewest)

	first := testBuffer(t, 160)
	second := testBuffer(t, 160)
	third := testBuffer(t, 160)

	assert.False(t, q.push(first))
	assert.False(t, q.push(second))
	assert.True(t, q.push(third), "full queue drops the incoming buffer")

	assert.Equal(t, 2, q.len())
	assert.Same(t, first, q.pop())
	assert.Same(t, second, q.pop())
	assert.Nil(t, q.pop())
}

func TestEdgeQueueDropOldestEvictsHead(t *testing.T) {
	q := newEdgeQueue(2, DropOldest)

	first := testBuffer(t, 160)
	second := testBuffer(t, 160)
	third := testBuffer(t, 160)

	require.False(t, q.push(first))
	require.False(t, q.push(second))
	assert.True(t, q.push(third), "eviction still counts as a drop")

	assert.Equal(t, 2, q.len())
	assert.Same(t, second, q.pop())
	assert.Same(t, third, q.pop())
}

func TestParseOverflowPolicy(t *testing.T) {
	p, err := ParseOverflowPolicy("drop-oldest")
	require.NoError(t, err)
	assert.Equal(t, DropOldest, p)

	p, err = ParseOverflowPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DropNewest, p, "empty string selects the default")

	_, err = ParseOverflowPolicy("block")
	assert.Error(t, err)
}
