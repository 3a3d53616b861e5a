package merge

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

// recognizedKeys are the schema-known front-matter fields. Conflicts on
// these are always surfaced. Unrecognized keys pass through the same
// three-way rule, but their conflicts are resolved toward the server copy
// without being reported; see DESIGN.md.
var recognizedKeys = map[string]bool{
	"title":       true,
	"slug":        true,
	"summary":     true,
	"description": true,
	"status":      true,
	"tags":        true,
	"labels":      true,
	"author":      true,
	"date":        true,
	"draft":       true,
	"updated":     true,
}

// updatedKey is the last-modified timestamp. Both sides rewrite it on
// every save, so a both-changed case takes the newer value instead of
// reporting a conflict.
const updatedKey = "updated"

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// fieldSet is an ordered front-matter mapping. Values keep their parsed
// yaml nodes so styles survive a round trip; canon holds the canonical
// serialization used for equality checks.
type fieldSet struct {
	keys  []string
	nodes map[string]*yaml.Node
	canon map[string]string
}

func newFieldSet() *fieldSet {
	return &fieldSet{
		nodes: make(map[string]*yaml.Node),
		canon: make(map[string]string),
	}
}

func (f *fieldSet) has(key string) bool {
	_, ok := f.nodes[key]
	return ok
}

func (f *fieldSet) set(key string, node *yaml.Node) {
	if node == nil {
		return
	}
	if !f.has(key) {
		f.keys = append(f.keys, key)
	}
	f.nodes[key] = node
	f.canon[key] = canonicalNode(node)
}

func (f *fieldSet) empty() bool { return len(f.keys) == 0 }

// splitDocument separates a markdown post into front matter fields and
// body. A document without a front-matter block yields an empty field set.
func splitDocument(src []byte) (*fieldSet, []byte, error) {
	fields := newFieldSet()
	if len(src) == 0 {
		return fields, nil, nil
	}

	var node yaml.Node
	body, err := frontmatter.Parse(bytes.NewReader(src), &node)
	if err != nil {
		return nil, nil, &ValidationError{Reason: "malformed front matter", Err: err}
	}

	content := &node
	if content.Kind == yaml.DocumentNode && len(content.Content) > 0 {
		content = content.Content[0]
	}
	if content.Kind == 0 || content.Tag == "!!null" {
		// no front matter block at all
		return fields, body, nil
	}
	if content.Kind != yaml.MappingNode {
		return nil, nil, &ValidationError{Reason: "front matter must be a mapping"}
	}

	for i := 0; i+1 < len(content.Content); i += 2 {
		key := content.Content[i].Value
		if fields.has(key) {
			continue
		}
		fields.set(key, content.Content[i+1])
	}
	return fields, body, nil
}

// mergeFields applies the three-way rule to every key in base ∪ server ∪
// client. A key changed on exactly one side (including deletion) takes
// that side; changed on both sides to the same value keeps it; changed on
// both sides to different values is a conflict carrying both candidates.
func mergeFields(base, server, client *fieldSet) (*fieldSet, []FieldConflict) {
	merged := newFieldSet()
	var conflicts []FieldConflict

	for _, key := range fieldOrder(base, server, client) {
		sv, sOK := server.canon[key]
		cv, cOK := client.canon[key]
		bv, bOK := base.canon[key]

		serverChanged := fieldChanged(sOK, sv, bOK, bv)
		clientChanged := fieldChanged(cOK, cv, bOK, bv)

		switch {
		case sOK && cOK && sv == cv:
			merged.set(key, server.nodes[key])

		case !clientChanged:
			if sOK {
				merged.set(key, server.nodes[key])
			}

		case !serverChanged:
			if cOK {
				merged.set(key, client.nodes[key])
			}

		case !sOK && !cOK:
			// deleted on both sides

		case key == updatedKey:
			merged.set(key, newerTimestamp(server.nodes[key], client.nodes[key]))

		default:
			if recognizedKeys[key] {
				conflicts = append(conflicts, FieldConflict{
					Key:    key,
					Base:   bv,
					Server: sv,
					Client: cv,
				})
			}
			// keep the server candidate in the merged content; for
			// surfaced conflicts the file is reported, not committed
			if sOK {
				merged.set(key, server.nodes[key])
			}
		}
	}
	return merged, conflicts
}

// fieldOrder returns the union of keys: server order first, then
// client-only keys, then base-only keys (still needed so double
// deletions resolve explicitly).
func fieldOrder(base, server, client *fieldSet) []string {
	seen := make(map[string]bool)
	var order []string
	appendKeys := func(keys []string) {
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				order = append(order, k)
			}
		}
	}
	appendKeys(server.keys)
	appendKeys(client.keys)
	appendKeys(base.keys)
	return order
}

func fieldChanged(present bool, value string, inBase bool, baseValue string) bool {
	if present != inBase {
		return true
	}
	if !present {
		return false
	}
	return value != baseValue
}

// renderDocument reassembles front matter and body into a markdown post.
func renderDocument(fields *fieldSet, body []byte) ([]byte, error) {
	if fields.empty() {
		return body, nil
	}

	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, key := range fields.keys {
		mapping.Content = append(mapping.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			fields.nodes[key],
		)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(mapping); err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}

	var out bytes.Buffer
	out.WriteString("---\n")
	out.Write(buf.Bytes())
	out.WriteString("---\n")
	out.Write(body)
	return out.Bytes(), nil
}

func canonicalNode(node *yaml.Node) string {
	b, err := yaml.Marshal(node)
	if err != nil {
		return node.Value
	}
	return strings.TrimSpace(string(b))
}

// newerTimestamp picks the later of two timestamp nodes, falling back to
// the server side when either does not parse.
func newerTimestamp(server, client *yaml.Node) *yaml.Node {
	if server == nil {
		return client
	}
	if client == nil {
		return server
	}
	st, sErr := parseTimeNode(server)
	ct, cErr := parseTimeNode(client)
	if sErr != nil || cErr != nil {
		return server
	}
	if ct.After(st) {
		return client
	}
	return server
}

func parseTimeNode(node *yaml.Node) (time.Time, error) {
	value := strings.TrimSpace(node.Value)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", value)
}
