package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/detent/pkg/domain"
)

// StackOverlay highlights sheets on the generated chart.
type StackOverlay struct {
	Topmost string
}

// GenerateMermaid produces a Mermaid flowchart of the presentation stack.
// Each edge points from a sheet to the sheet presented on top of it.
// Shapes encode the lifecycle:
// - Root sheets: ([Stadium])
// - Stacked sheets: [Rectangle]
// - Not presented (idle, dismissed): [/Parallelogram/]
func GenerateMermaid(snaps []*domain.Snapshot, overlay *StackOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph BT\n")

	var live, resting []string
	for _, snap := range snaps {
		safeID := sanitizeMermaidID(snap.ID)

		opener, closer := "[", "]"
		switch {
		case !snap.Live:
			opener, closer = "[/", "/]"
		case snap.Parent == "":
			opener, closer = "([", "])"
		}

		label := snap.Name
		if label == "" {
			label = shortID(snap.ID)
		}
		label = strings.ReplaceAll(label, "\"", "'")
		sb.WriteString(fmt.Sprintf("    %s%s\"%s <br/> %s <br/> %s\"%s\n", safeID, opener, label, snap.State, formatDetents(snap.Detents), closer))

		if snap.Live {
			live = append(live, safeID)
		} else {
			resting = append(resting, safeID)
		}
	}

	for _, snap := range snaps {
		for _, child := range snap.Children {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", sanitizeMermaidID(child), sanitizeMermaidID(snap.ID)))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef live fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef resting fill:#eeeeee,stroke:#9e9e9e,stroke-dasharray:3 3,color:#000;\n")
		sb.WriteString("    classDef topmost fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		for _, id := range live {
			sb.WriteString(fmt.Sprintf("    class %s live;\n", id))
		}
		for _, id := range resting {
			sb.WriteString(fmt.Sprintf("    class %s resting;\n", id))
		}
		if overlay.Topmost != "" {
			sb.WriteString(fmt.Sprintf("    class %s topmost;\n", sanitizeMermaidID(overlay.Topmost)))
		}
	}

	return sb.String()
}

func formatDetents(d domain.ResolvedDetents) string {
	parts := make([]string, len(d))
	for i, h := range d {
		parts[i] = fmt.Sprintf("%g", h)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return "s_" + s
}
