package suite

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pilacorp/go-ethr-vc/credential/common/jsonmap"
	"github.com/pilacorp/go-ethr-vc/credential/common/model"
	"github.com/pilacorp/go-ethr-vc/credential/common/processor"
)

// PathSeparator joins the keys of nested subject attributes.
const PathSeparator = "."

// Fixed positions of the BBS+ message vector.
const (
	MessageIndexConfig   = 0
	MessageIndexEnvelope = 1
	FirstLeafIndex       = 2
)

// Leaf is one disclosable attribute of a credential subject.
type Leaf struct {
	Path  string
	Value any
}

// MessageVector is the ordered list of messages a BBS+ signature covers:
// proof config, envelope, then one message per subject leaf.
type MessageVector struct {
	Config   []byte
	Envelope []byte
	Leaves   []Leaf
	encoded  [][]byte
}

// Messages returns all messages in signing order.
func (v *MessageVector) Messages() [][]byte {
	out := make([][]byte, 0, FirstLeafIndex+len(v.encoded))
	out = append(out, v.Config, v.Envelope)
	return append(out, v.encoded...)
}

// Len returns the number of messages.
func (v *MessageVector) Len() int {
	return FirstLeafIndex + len(v.encoded)
}

// BuildMessages computes the message vector of doc (without proof) under the
// proof configuration config.
func BuildMessages(c processor.Canonicalizer, doc jsonmap.JSONMap, config model.Proof) (*MessageVector, error) {
	configMap, err := config.Config().ToMap()
	if err != nil {
		return nil, err
	}
	if ctx, ok := doc["@context"]; ok {
		configMap["@context"] = ctx
	}

	configBytes, err := c.Canonicalize(configMap)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize proof config: %w", err)
	}

	envelope, err := doc.Without(jsonmap.FieldSubject, jsonmap.FieldProof)
	if err != nil {
		return nil, err
	}
	envelopeBytes, err := c.Canonicalize(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize envelope: %w", err)
	}

	var leaves []Leaf
	if subject, ok := doc[jsonmap.FieldSubject]; ok {
		if leaves, err = FlattenSubject(subject); err != nil {
			return nil, err
		}
	}

	encoded := make([][]byte, len(leaves))
	for i, leaf := range leaves {
		if encoded[i], err = EncodeLeaf(leaf); err != nil {
			return nil, err
		}
	}

	return &MessageVector{Config: configBytes, Envelope: envelopeBytes, Leaves: leaves, encoded: encoded}, nil
}

// EncodeLeaf canonicalizes a leaf as the JSON array [path, value].
func EncodeLeaf(leaf Leaf) ([]byte, error) {
	b, err := processor.CanonicalizeValue([]any{leaf.Path, leaf.Value})
	if err != nil {
		return nil, fmt.Errorf("failed to encode attribute %q: %w", leaf.Path, err)
	}
	return b, nil
}

// FlattenSubject flattens a credential subject into leaves ordered by path.
// Nested objects become dot paths; arrays, scalars and empty objects are
// leaves. Keys that are empty or contain the separator are rejected.
func FlattenSubject(subject any) ([]Leaf, error) {
	root, ok := subject.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("credentialSubject must be a single object, got %T", subject)
	}

	var leaves []Leaf
	if err := flatten("", root, &leaves); err != nil {
		return nil, err
	}

	sort.Slice(leaves, func(i, j int) bool { return leaves[i].Path < leaves[j].Path })
	return leaves, nil
}

func flatten(prefix string, obj map[string]any, leaves *[]Leaf) error {
	for key, value := range obj {
		if key == "" || strings.Contains(key, PathSeparator) {
			return fmt.Errorf("invalid credentialSubject key %q under %q", key, prefix)
		}

		path := key
		if prefix != "" {
			path = prefix + PathSeparator + key
		}

		if nested, ok := value.(map[string]any); ok && len(nested) > 0 {
			if err := flatten(path, nested, leaves); err != nil {
				return err
			}
			continue
		}

		*leaves = append(*leaves, Leaf{Path: path, Value: value})
	}
	return nil
}

// BuildSubject reassembles a credential subject from leaves.
func BuildSubject(leaves []Leaf) map[string]any {
	root := make(map[string]any)
	for _, leaf := range leaves {
		keys := strings.Split(leaf.Path, PathSeparator)
		node := root
		for _, key := range keys[:len(keys)-1] {
			child, ok := node[key].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[key] = child
			}
			node = child
		}
		node[keys[len(keys)-1]] = leaf.Value
	}
	return root
}
