package layout

import (
	"strings"

	"github.com/strataviz/strataflow/pkg/tree"
)

// Lineage-encoded ids like "root_feature_splitting_low" are only parsed here,
// and only for externally supplied nodes that carry no explicit parent link.
// Everything else in the engine treats ids as opaque keys.

// resolveParentID returns the node's explicit parent link when present and
// falls back to id parsing otherwise.
func resolveParentID(tr *tree.Tree, n *tree.Node) string {
	if n.ParentID != "" {
		return n.ParentID
	}
	if n.Stage == 0 {
		return ""
	}
	return parseLegacyParentID(tr, n.ID)
}

// parseLegacyParentID strips underscore-separated suffix segments until the
// remaining prefix names an existing node. The longest matching prefix wins,
// so "root_a_b" resolves to "root_a" when both "root" and "root_a" exist.
// Returns "" when no prefix resolves.
func parseLegacyParentID(tr *tree.Tree, id string) string {
	for i := strings.LastIndexByte(id, '_'); i > 0; i = strings.LastIndexByte(id[:i], '_') {
		if _, ok := tr.Node(id[:i]); ok {
			return id[:i]
		}
	}
	return ""
}
