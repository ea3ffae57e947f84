package ioi

import (
	"fmt"
	"strings"
)

// DOT renders the circuit as a Graphviz digraph: one node per
// classified head per role, grouped into five fixed clusters, no
// edges. A head holding two roles appears in both clusters under a
// role-prefixed node ID. Output is byte-identical across calls.
func (c *Circuit) DOT() string {
	var sb strings.Builder

	sb.WriteString("digraph IOICircuit {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  labelloc=\"t\";\n")
	sb.WriteString(fmt.Sprintf("  label=\"IOI circuit (%s)\";\n", escapeDOTLabel(string(c.Model))))
	sb.WriteString("  node [shape=box, style=filled];\n")

	for _, role := range AllRoles() {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("  subgraph cluster_%s {\n", role))
		sb.WriteString(fmt.Sprintf("    label=\"%s\";\n", role.DisplayName()))
		sb.WriteString("    color=gray50;\n")
		for _, h := range c.HeadsFor(role) {
			sb.WriteString(fmt.Sprintf("    \"%s_%s\" [label=\"%s\", fillcolor=%s];\n",
				rolePrefix(role), h.Ref(), h.Ref(), roleColor(role)))
		}
		sb.WriteString("  }\n")
	}

	sb.WriteString("}\n")
	return sb.String()
}

// rolePrefix keeps node IDs distinct when a head appears in two roles.
func rolePrefix(role Role) string {
	switch role {
	case RoleNameMover:
		return "nm"
	case RoleSInhibition:
		return "si"
	case RoleDuplicateToken:
		return "dt"
	case RolePreviousToken:
		return "pt"
	case RoleBackupNameMover:
		return "bnm"
	default:
		return "x"
	}
}

// roleColor gives each cluster a distinct fill.
func roleColor(role Role) string {
	switch role {
	case RoleNameMover:
		return "lightcoral"
	case RoleSInhibition:
		return "lightskyblue"
	case RoleDuplicateToken:
		return "palegreen"
	case RolePreviousToken:
		return "khaki"
	case RoleBackupNameMover:
		return "plum"
	default:
		return "white"
	}
}

// escapeDOTLabel escapes characters that would break label strings.
func escapeDOTLabel(label string) string {
	replacer := strings.NewReplacer(
		"\"", "\\\"",
		"\n", "\\n",
		"\\", "\\\\",
	)
	return replacer.Replace(label)
}
