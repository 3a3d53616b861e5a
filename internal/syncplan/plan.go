// Package syncplan classifies every path known to the client, the server
// or the base commit into a per-path sync action. The plan is advisory:
// conflict candidates are confirmed or resolved later by the merge engine
// at commit time.
package syncplan

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/markpress/markpress/internal/manifest"
)

// Action is a planned per-path operation.
type Action string

const (
	ActionNoop     Action = "noop"
	ActionDownload Action = "download"
	ActionUpload   Action = "upload"
	ActionConflict Action = "conflict-candidate"
	ActionDelete   Action = "delete"
)

// Item is one planned action with a human-readable reason.
type Item struct {
	Path   string `json:"path"`
	Action Action `json:"action"`
	Reason string `json:"reason"`
}

// Build diffs the client, server and base manifests into a plan, one item
// per path in the union of the three. A deletion is only planned when the
// surviving side made no changes since base; delete-versus-edit is always
// a conflict candidate, never a silent delete.
func Build(client, server, base []manifest.Entry) []Item {
	clientMap := manifest.AsMap(client)
	serverMap := manifest.AsMap(server)
	baseMap := manifest.AsMap(base)

	paths := mapset.NewThreadUnsafeSet[string]()
	for p := range clientMap {
		paths.Add(p)
	}
	for p := range serverMap {
		paths.Add(p)
	}
	for p := range baseMap {
		paths.Add(p)
	}

	items := make([]Item, 0, paths.Cardinality())
	for path := range paths.Iter() {
		items = append(items, classify(path, clientMap, serverMap, baseMap))
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })
	return items
}

func classify(path string, client, server, base map[string]manifest.Entry) Item {
	c, onClient := client[path]
	s, onServer := server[path]
	b, inBase := base[path]

	clientChanged := changedSinceBase(onClient, c.Hash, inBase, b.Hash)
	serverChanged := changedSinceBase(onServer, s.Hash, inBase, b.Hash)

	switch {
	case onClient && onServer && c.Hash == s.Hash:
		// both sides already hold identical content, regardless of base
		return Item{Path: path, Action: ActionNoop, Reason: "client and server content identical"}

	case !clientChanged && !serverChanged:
		return Item{Path: path, Action: ActionNoop, Reason: "unchanged on both sides"}

	case serverChanged && !clientChanged:
		if !onServer {
			return Item{Path: path, Action: ActionDelete, Reason: "removed on server, unchanged on client"}
		}
		return Item{Path: path, Action: ActionDownload, Reason: "changed on server, unchanged on client"}

	case clientChanged && !serverChanged:
		if !onClient {
			return Item{Path: path, Action: ActionDelete, Reason: "removed on client, unchanged on server"}
		}
		if !inBase {
			return Item{Path: path, Action: ActionUpload, Reason: "new on client"}
		}
		return Item{Path: path, Action: ActionUpload, Reason: "changed on client, unchanged on server"}

	default:
		// both sides diverged from base
		switch {
		case !onClient && !onServer:
			return Item{Path: path, Action: ActionNoop, Reason: "removed on both sides"}
		case !onClient:
			return Item{Path: path, Action: ActionConflict, Reason: "removed on client but edited on server"}
		case !onServer:
			return Item{Path: path, Action: ActionConflict, Reason: "removed on server but edited on client"}
		default:
			return Item{Path: path, Action: ActionConflict, Reason: "edited on both sides since base"}
		}
	}
}

func changedSinceBase(present bool, hash string, inBase bool, baseHash string) bool {
	if !present && !inBase {
		return false
	}
	if present != inBase {
		return true
	}
	return hash != baseHash
}
