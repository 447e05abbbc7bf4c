package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"bandstand/api/internal/mutation"
)

func TestProcessEmptyBatch(t *testing.T) {
	m := seededStore()
	p := NewProcessor(newTestEngine(m))

	for _, batch := range [][]mutation.Envelope{nil, {}} {
		txid, err := p.Process(context.Background(), testCaller, batch)
		if !errors.Is(err, ErrEmptyBatch) {
			t.Fatalf("expected ErrEmptyBatch, got %v", err)
		}
		if txid != "" {
			t.Fatalf("no transaction id should be allocated, got %q", txid)
		}
	}
	if len(m.nodes) != 0 {
		t.Fatal("empty batch must not write")
	}
}

func TestProcessAppliesInOrder(t *testing.T) {
	m := seededStore()
	p := NewProcessor(newTestEngine(m))

	batch := []mutation.Envelope{
		insertEnvelope(map[string]any{
			"id": int64(500), "title": "Setlist", "author_id": int64(1),
			"content_type_id": typeVideo,
			"metadata":        map[string]any{"kind": "selfHosted", "videoUrl": "https://cdn/v.mp4"},
		}),
		{
			Kind: mutation.KindUpdate, Collection: mutation.CollectionContent, Key: "500",
			Value: map[string]any{"title": "Setlist (final)"},
		},
	}

	txid, err := p.Process(context.Background(), testCaller, batch)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if txid == "" {
		t.Fatal("expected a transaction id")
	}
	if got := m.nodes[500].Title; got != "Setlist (final)" {
		t.Fatalf("update should see the key inserted earlier in the batch, title=%q", got)
	}
}

func TestProcessAutoIDsSkipClientSuppliedIDs(t *testing.T) {
	m := seededStore()
	p := NewProcessor(newTestEngine(m))

	video := func(title string) map[string]any {
		return map[string]any{
			"title": title, "author_id": int64(1), "content_type_id": typeVideo,
			"metadata": map[string]any{"kind": "selfHosted", "videoUrl": "https://cdn/v.mp4"},
		}
	}

	// A client-chosen id sitting exactly where the next auto id would land.
	withID := video("Claimed slot")
	withID["id"] = m.nextID + 1

	batch := []mutation.Envelope{
		insertEnvelope(withID),
		insertEnvelope(video("After the claim")),
	}

	if _, err := p.Process(context.Background(), testCaller, batch); err != nil {
		t.Fatalf("auto-id insert after a client-supplied id must not collide: %v", err)
	}

	titles := map[string]bool{}
	for _, node := range m.nodes {
		titles[node.Title] = true
	}
	if !titles["Claimed slot"] || !titles["After the claim"] {
		t.Fatalf("both inserts should land, got %v", titles)
	}
}

func TestProcessStopsAtFirstFailureWithoutRollback(t *testing.T) {
	m := seededStore()
	addParent(t, m, 42)
	p := NewProcessor(newTestEngine(m))

	batch := []mutation.Envelope{
		insertEnvelope(reactionValue(1, 42, "upvote", nil)),
		insertEnvelope(reactionValue(1, 42, "upvote", nil)), // duplicate, fails
		insertEnvelope(reactionValue(1, 42, "emoji", map[string]any{"emoji": "🔥"})),
	}

	_, err := p.Process(context.Background(), testCaller, batch)
	if !errors.Is(err, ErrDuplicateReaction) {
		t.Fatalf("expected ErrDuplicateReaction, got %v", err)
	}

	// The first upvote stays committed; the emoji after the failure never ran.
	if got := countReactions(m, 1, 42); got != 1 {
		t.Fatalf("expected the pre-failure insert to survive alone, got %d reactions", got)
	}
}

func TestProcessEndToEndUpvote(t *testing.T) {
	m := seededStore()
	addParent(t, m, 42)
	p := NewProcessor(newTestEngine(m))

	batch := []mutation.Envelope{insertEnvelope(map[string]any{
		"title":           "Upvote",
		"author_id":       int64(1),
		"content_type_id": typeReaction,
		"parent_id":       int64(42),
		"metadata":        map[string]any{"kind": "upvote"},
		"access_type":     "public",
		"tenant_id":       int64(1),
	})}

	txid, err := p.Process(context.Background(), testCaller, batch)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if txid == "" {
		t.Fatal("expected transaction id")
	}

	if got := countReactions(m, 1, 42); got != 1 {
		t.Fatalf("expected one reaction node, got %d", got)
	}
	node, err := m.FindReactionByKind(context.Background(), 1, 42, "upvote")
	if err != nil || node == nil {
		t.Fatalf("upvote node missing: %v %v", node, err)
	}
	var metadata map[string]any
	if err := json.Unmarshal(node.Metadata, &metadata); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if metadata["kind"] != "upvote" {
		t.Fatalf("metadata.kind = %v", metadata["kind"])
	}
}
