package graphio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/strataviz/strataflow/pkg/tree"
)

// FromTree converts a live tree to its serialization format. Splits are
// emitted in node insertion order, which guarantees every split's target
// node exists by the time the split is replayed.
func FromTree(t *tree.Tree) Tree {
	var out Tree
	for _, n := range t.Nodes() {
		if n.IsLeaf() {
			continue
		}
		out.Splits = append(out.Splits, Split{
			NodeID:    n.ID,
			StageType: n.StageType,
			Rule:      ruleFromSplit(n.Rule),
		})
	}
	return out
}

// ToTree rebuilds a tree by replaying serialized splits against a catalog.
// The catalog must define every stage type the splits reference, in the
// same shape as when the tree was exported. Returns the first replay error
// wrapped with the offending split's node id.
func ToTree(doc Tree, catalog *tree.Catalog) (*tree.Tree, error) {
	t := tree.New(catalog)
	for _, s := range doc.Splits {
		if err := replaySplit(t, s); err != nil {
			return nil, fmt.Errorf("split %s: %w", s.NodeID, err)
		}
	}
	return t, nil
}

func replaySplit(t *tree.Tree, s Split) error {
	switch s.Rule.Kind {
	case RuleKindRange, RuleKindPattern:
		return t.AddStage(s.NodeID, s.StageType, s.Rule.Thresholds)
	case RuleKindExpression:
		branches := make([]tree.ExpressionBranch, len(s.Rule.Branches))
		for i, b := range s.Rule.Branches {
			branches[i] = tree.ExpressionBranch{
				Condition:   b.Condition,
				Suffix:      b.Suffix,
				Description: b.Description,
			}
		}
		rule, err := tree.NewExpressionRule(branches, s.Rule.DefaultSuffix)
		if err != nil {
			return err
		}
		return t.AddExpressionStage(s.NodeID, s.StageType, rule)
	default:
		return fmt.Errorf("unknown rule kind %q", s.Rule.Kind)
	}
}

// MarshalTree converts a tree to JSON bytes.
func MarshalTree(t *tree.Tree) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeTreeTo(t, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalTree rebuilds a tree from JSON bytes against a catalog.
func UnmarshalTree(data []byte, catalog *tree.Catalog) (*tree.Tree, error) {
	return readTreeFrom(bytes.NewReader(data), catalog)
}

// WriteTree writes a tree as JSON to an io.Writer.
func WriteTree(t *tree.Tree, w io.Writer) error {
	return writeTreeTo(t, w)
}

// WriteTreeFile writes a tree to a JSON file.
// The file is created with 0644 permissions.
func WriteTreeFile(t *tree.Tree, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return writeTreeTo(t, f)
}

// ReadTree decodes a JSON tree from an io.Reader and replays it against a
// catalog.
func ReadTree(r io.Reader, catalog *tree.Catalog) (*tree.Tree, error) {
	return readTreeFrom(r, catalog)
}

// ReadTreeFile reads a JSON file and returns the rebuilt tree.
func ReadTreeFile(path string, catalog *tree.Catalog) (*tree.Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return readTreeFrom(f, catalog)
}

func writeTreeTo(t *tree.Tree, w io.Writer) error {
	out := FromTree(t)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

func readTreeFrom(r io.Reader, catalog *tree.Catalog) (*tree.Tree, error) {
	var doc Tree
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return ToTree(doc, catalog)
}
