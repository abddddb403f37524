package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/detent/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// StackMarkdown renders sheets as a markdown table, marking the topmost one.
func StackMarkdown(snaps []*domain.Snapshot, topmost string) string {
	var sb strings.Builder
	sb.WriteString("# Sheets\n\n")
	if len(snaps) == 0 {
		sb.WriteString("_No sheets mounted._\n")
		return sb.String()
	}

	sb.WriteString("| Sheet | State | Detents | Parent | Children |\n")
	sb.WriteString("|---|---|---|---|---|\n")

	names := make(map[string]string, len(snaps))
	for _, s := range snaps {
		names[s.ID] = label(s)
	}
	ref := func(id string) string {
		if n, ok := names[id]; ok {
			return n
		}
		return id
	}

	for _, s := range snaps {
		name := names[s.ID]
		if s.ID == topmost {
			name = "**" + name + "** ⬆"
		}
		children := make([]string, len(s.Children))
		for i, c := range s.Children {
			children[i] = ref(c)
		}
		parent := "-"
		if s.Parent != "" {
			parent = ref(s.Parent)
		}
		fmt.Fprintf(&sb, "| %s | %s | %v | %s | %s |\n", name, s.State, []float64(s.Detents), parent, strings.Join(children, ", "))
	}
	return sb.String()
}

func label(s *domain.Snapshot) string {
	if s.Name != "" {
		return s.Name
	}
	if len(s.ID) > 8 {
		return s.ID[:8]
	}
	return s.ID
}
