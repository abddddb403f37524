package tui

import (
	"bytes"
	"testing"

	"github.com/aretw0/detent/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStackMarkdown(t *testing.T) {
	snaps := []*domain.Snapshot{
		{ID: "a", Name: "list", State: domain.Presented(0), Detents: domain.ResolvedDetents{400}, Children: []string{"b"}},
		{ID: "b", Name: "details", State: domain.Presented(1), Detents: domain.ResolvedDetents{300, 800}, Parent: "a"},
	}

	md := StackMarkdown(snaps, "b")
	assert.Contains(t, md, "| list | presented(0) | [400] | - | details |")
	assert.Contains(t, md, "| **details** ⬆ | presented(1) | [300 800] | list |  |")

	assert.Contains(t, StackMarkdown(nil, ""), "No sheets mounted")
}

func TestRenderer(t *testing.T) {
	out, err := NewRenderer()("# Sheets\n")
	require.NoError(t, err)
	assert.Contains(t, out, "Sheets")

	var buf bytes.Buffer
	PrintBanner(&buf)
	assert.NotEmpty(t, buf.String())
}
