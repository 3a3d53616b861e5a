package syncplan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markpress/markpress/internal/manifest"
)

func entry(path, hash string) manifest.Entry {
	return manifest.Entry{Path: path, Hash: hash, Size: int64(len(hash))}
}

func planFor(t *testing.T, client, server, base []manifest.Entry) map[string]Item {
	t.Helper()
	items := Build(client, server, base)
	byPath := make(map[string]Item, len(items))
	for _, it := range items {
		byPath[it.Path] = it
	}
	return byPath
}

func TestBuild_Classification(t *testing.T) {
	base := []manifest.Entry{
		entry("noop.md", "h1"),
		entry("download.md", "h2"),
		entry("upload.md", "h3"),
		entry("conflict.md", "h4"),
		entry("server-deleted.md", "h5"),
		entry("client-deleted.md", "h6"),
	}
	server := []manifest.Entry{
		entry("noop.md", "h1"),
		entry("download.md", "h2-server"),
		entry("upload.md", "h3"),
		entry("conflict.md", "h4-server"),
		entry("client-deleted.md", "h6"),
		entry("server-new.md", "h7"),
	}
	client := []manifest.Entry{
		entry("noop.md", "h1"),
		entry("download.md", "h2"),
		entry("upload.md", "h3-client"),
		entry("conflict.md", "h4-client"),
		entry("server-deleted.md", "h5"),
		entry("client-new.md", "h8"),
	}

	plan := planFor(t, client, server, base)

	assert.Equal(t, ActionNoop, plan["noop.md"].Action)
	assert.Equal(t, ActionDownload, plan["download.md"].Action)
	assert.Equal(t, ActionUpload, plan["upload.md"].Action)
	assert.Equal(t, ActionConflict, plan["conflict.md"].Action)
	assert.Equal(t, ActionDelete, plan["server-deleted.md"].Action)
	assert.Equal(t, ActionDelete, plan["client-deleted.md"].Action)
	assert.Equal(t, ActionDownload, plan["server-new.md"].Action)
	assert.Equal(t, ActionUpload, plan["client-new.md"].Action)
}

func TestBuild_DeleteVersusEditIsConflict(t *testing.T) {
	base := []manifest.Entry{entry("a.md", "h1"), entry("b.md", "h2")}

	// server deleted a.md while client edited it
	plan := planFor(t,
		[]manifest.Entry{entry("a.md", "h1-edit"), entry("b.md", "h2")},
		[]manifest.Entry{entry("b.md", "h2")},
		base,
	)
	require.Equal(t, ActionConflict, plan["a.md"].Action)
	assert.Contains(t, plan["a.md"].Reason, "removed on server")

	// client deleted b.md while server edited it
	plan = planFor(t,
		[]manifest.Entry{entry("a.md", "h1")},
		[]manifest.Entry{entry("a.md", "h1"), entry("b.md", "h2-edit")},
		base,
	)
	require.Equal(t, ActionConflict, plan["b.md"].Action)
	assert.Contains(t, plan["b.md"].Reason, "removed on client")
}

func TestBuild_IdenticalContentIsNoopEvenWithoutBase(t *testing.T) {
	// round-trip: client uploads content the server already has
	plan := planFor(t,
		[]manifest.Entry{entry("same.md", "h1")},
		[]manifest.Entry{entry("same.md", "h1")},
		nil,
	)
	assert.Equal(t, ActionNoop, plan["same.md"].Action)
}

func TestBuild_BothSidesConvergedIsNoop(t *testing.T) {
	// both edited to the same content: no spurious conflict
	plan := planFor(t,
		[]manifest.Entry{entry("a.md", "h-new")},
		[]manifest.Entry{entry("a.md", "h-new")},
		[]manifest.Entry{entry("a.md", "h-old")},
	)
	assert.Equal(t, ActionNoop, plan["a.md"].Action)
}

func TestBuild_DeletedEverywhereIsNoop(t *testing.T) {
	plan := planFor(t, nil, nil, []manifest.Entry{entry("gone.md", "h1")})
	assert.Equal(t, ActionNoop, plan["gone.md"].Action)
}

func TestBuild_Deterministic(t *testing.T) {
	client := []manifest.Entry{entry("b.md", "h2"), entry("a.md", "h1")}
	server := []manifest.Entry{entry("a.md", "h1"), entry("c.md", "h3")}

	first := Build(client, server, nil)
	second := Build(client, server, nil)
	require.Equal(t, first, second)

	for i := 1; i < len(first); i++ {
		assert.Less(t, first[i-1].Path, first[i].Path)
	}
}
