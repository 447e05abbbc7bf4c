package contenttype

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name     string
		family   Family
		metadata map[string]any
		wantErr  bool
		field    string
	}{
		{name: "text comment", family: FamilyComment, metadata: map[string]any{"kind": "text"}},
		{name: "reply comment", family: FamilyComment, metadata: map[string]any{"kind": "reply"}},
		{name: "image comment with url", family: FamilyComment, metadata: map[string]any{"kind": "image", "imageUrl": "https://cdn.example/a.png"}},
		{name: "image comment missing url", family: FamilyComment, metadata: map[string]any{"kind": "image"}, wantErr: true, field: "imageUrl"},
		{name: "embed comment missing url", family: FamilyComment, metadata: map[string]any{"kind": "embed"}, wantErr: true, field: "embedUrl"},
		{name: "embed comment optional description", family: FamilyComment, metadata: map[string]any{"kind": "embed", "embedUrl": "https://x", "description": "a clip"}},
		{name: "emoji reaction", family: FamilyReaction, metadata: map[string]any{"kind": "emoji", "emoji": "🔥"}},
		{name: "emoji reaction missing emoji", family: FamilyReaction, metadata: map[string]any{"kind": "emoji"}, wantErr: true, field: "emoji"},
		{name: "upvote has no extras", family: FamilyReaction, metadata: map[string]any{"kind": "upvote"}},
		{name: "downvote has no extras", family: FamilyReaction, metadata: map[string]any{"kind": "downvote"}},
		{name: "unknown reaction kind", family: FamilyReaction, metadata: map[string]any{"kind": "heart"}, wantErr: true, field: "kind"},
		{name: "missing kind", family: FamilyComment, metadata: map[string]any{}, wantErr: true, field: "kind"},
		{name: "kind not a string", family: FamilyComment, metadata: map[string]any{"kind": 4}, wantErr: true, field: "kind"},
		{name: "self-hosted video", family: FamilyVideo, metadata: map[string]any{"kind": "selfHosted", "videoUrl": "https://cdn/v.mp4"}},
		{name: "youtube video missing id", family: FamilyVideo, metadata: map[string]any{"kind": "youtube"}, wantErr: true, field: "videoId"},
		{name: "spotify music", family: FamilyMusic, metadata: map[string]any{"kind": "spotify", "embedUrl": "https://open.spotify.com/x"}},
		{name: "merch price numeric", family: FamilyMerch, metadata: map[string]any{"kind": "selfHosted", "price": 19.99}},
		{name: "merch price not numeric", family: FamilyMerch, metadata: map[string]any{"kind": "selfHosted", "price": "cheap"}, wantErr: true, field: "price"},
		{name: "press article", family: FamilyPress, metadata: map[string]any{"kind": "article", "body": "long read"}},
		{name: "unknown family", family: Family("poetry"), metadata: map[string]any{"kind": "haiku"}, wantErr: true, field: "kind"},
		{name: "empty required string rejected", family: FamilyComment, metadata: map[string]any{"kind": "image", "imageUrl": "  "}, wantErr: true, field: "imageUrl"},
		{name: "mistyped optional rejected", family: FamilyComment, metadata: map[string]any{"kind": "embed", "embedUrl": "https://x", "description": 7}, wantErr: true, field: "description"},
		{name: "extra fields pass through", family: FamilyComment, metadata: map[string]any{"kind": "text", "clientTag": "abc"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.family, tc.metadata)
			if !tc.wantErr {
				if err != nil {
					t.Fatalf("Validate returned %v, want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate returned %v, want *ValidationError", err)
			}
			found := false
			for _, issue := range verr.Issues {
				if issue.Field == tc.field {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected issue on field %q, got %+v", tc.field, verr.Issues)
			}
		})
	}
}

func TestKind(t *testing.T) {
	if got := Kind(map[string]any{"kind": "upvote"}); got != "upvote" {
		t.Fatalf("Kind = %q", got)
	}
	if got := Kind(map[string]any{"kind": 3}); got != "" {
		t.Fatalf("Kind on non-string = %q, want empty", got)
	}
}

func TestSchema(t *testing.T) {
	doc, err := Schema(FamilyReaction)
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	oneOf, ok := doc["oneOf"].([]any)
	if !ok || len(oneOf) != 3 {
		t.Fatalf("reaction schema should have 3 variants, got %v", doc["oneOf"])
	}

	if _, err := Schema(Family("poetry")); err == nil {
		t.Fatal("expected error for unknown family")
	}
}

func TestFamilies(t *testing.T) {
	names := Families()
	if len(names) != 6 {
		t.Fatalf("expected 6 families, got %v", names)
	}
	if _, ok := ParseFamily("reaction"); !ok {
		t.Fatal("reaction should parse")
	}
	if _, ok := ParseFamily("poetry"); ok {
		t.Fatal("poetry should not parse")
	}
}
