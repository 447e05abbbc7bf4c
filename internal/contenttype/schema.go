// Package contenttype defines the tagged metadata variants for each content
// family and validates metadata payloads against them. It is pure data
// validation: no storage, no side effects.
package contenttype

import (
	"fmt"
	"strings"
)

// Family identifies a top-level content family. Every content type row maps
// to exactly one family, and every family has a closed set of kinds.
type Family string

const (
	FamilyVideo    Family = "video"
	FamilyMusic    Family = "music"
	FamilyPress    Family = "press"
	FamilyMerch    Family = "merch"
	FamilyComment  Family = "comment"
	FamilyReaction Family = "reaction"
)

// Reaction kinds, referenced by the consistency rules for dedup/replace.
const (
	KindEmoji    = "emoji"
	KindUpvote   = "upvote"
	KindDownvote = "downvote"
)

type fieldType string

const (
	fieldString fieldType = "string"
	fieldNumber fieldType = "number"
)

type field struct {
	Name string
	Type fieldType
}

// variant describes one kind within a family: which metadata fields it
// requires and which it accepts optionally.
type variant struct {
	Required []field
	Optional []field
}

var families = map[Family]map[string]variant{
	FamilyComment: {
		"text":  {Optional: []field{{"format", fieldString}}},
		"image": {Required: []field{{"imageUrl", fieldString}}, Optional: []field{{"caption", fieldString}}},
		"embed": {Required: []field{{"embedUrl", fieldString}}, Optional: []field{{"description", fieldString}}},
		"reply": {Optional: []field{{"format", fieldString}}},
	},
	FamilyReaction: {
		KindEmoji:    {Required: []field{{"emoji", fieldString}}},
		KindUpvote:   {},
		KindDownvote: {},
	},
	FamilyVideo: {
		"selfHosted": {Required: []field{{"videoUrl", fieldString}}, Optional: []field{{"posterUrl", fieldString}}},
		"youtube":    {Required: []field{{"videoId", fieldString}}},
		"vimeo":      {Required: []field{{"videoId", fieldString}}},
	},
	FamilyMusic: {
		"selfHosted": {Required: []field{{"audioUrl", fieldString}}, Optional: []field{{"coverUrl", fieldString}}},
		"spotify":    {Required: []field{{"embedUrl", fieldString}}},
		"bandcamp":   {Required: []field{{"embedUrl", fieldString}}},
	},
	FamilyPress: {
		"article":  {Required: []field{{"body", fieldString}}, Optional: []field{{"excerpt", fieldString}}},
		"external": {Required: []field{{"articleUrl", fieldString}}, Optional: []field{{"source", fieldString}}},
	},
	FamilyMerch: {
		"selfHosted": {Required: []field{{"price", fieldNumber}}, Optional: []field{{"imageUrl", fieldString}, {"currency", fieldString}}},
		"external":   {Required: []field{{"productUrl", fieldString}}, Optional: []field{{"imageUrl", fieldString}}},
	},
}

// Issue is a single field-level validation problem.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports why a metadata payload does not match the variant
// selected by its kind.
type ValidationError struct {
	Family Family  `json:"family"`
	Kind   string  `json:"kind"`
	Issues []Issue `json:"issues"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.Field+": "+issue.Message)
	}
	return fmt.Sprintf("invalid %s metadata (kind=%s): %s", e.Family, e.Kind, strings.Join(parts, "; "))
}

// ParseFamily returns the Family for a stored family name.
func ParseFamily(name string) (Family, bool) {
	f := Family(name)
	_, ok := families[f]
	return f, ok
}

// Kind extracts the kind discriminator from a metadata payload.
func Kind(metadata map[string]any) string {
	kind, _ := metadata["kind"].(string)
	return kind
}

// Validate checks a metadata payload against the variant selected by its
// "kind" field. An unknown family or kind fails, as does a missing or
// mistyped required field. Fields outside the variant's declared set are
// allowed through: the payload column is open, only the variant's own
// contract is enforced.
func Validate(family Family, metadata map[string]any) error {
	variants, ok := families[family]
	if !ok {
		return &ValidationError{Family: family, Kind: Kind(metadata), Issues: []Issue{
			{Field: "kind", Message: "unknown content family"},
		}}
	}

	kind := Kind(metadata)
	if kind == "" {
		return &ValidationError{Family: family, Kind: kind, Issues: []Issue{
			{Field: "kind", Message: "required"},
		}}
	}

	spec, ok := variants[kind]
	if !ok {
		return &ValidationError{Family: family, Kind: kind, Issues: []Issue{
			{Field: "kind", Message: fmt.Sprintf("unknown kind for %s", family)},
		}}
	}

	var issues []Issue
	for _, required := range spec.Required {
		value, present := metadata[required.Name]
		if !present {
			issues = append(issues, Issue{Field: required.Name, Message: "required"})
			continue
		}
		if issue, ok := checkType(required, value); !ok {
			issues = append(issues, issue)
		}
	}
	for _, optional := range spec.Optional {
		value, present := metadata[optional.Name]
		if !present {
			continue
		}
		if issue, ok := checkType(optional, value); !ok {
			issues = append(issues, issue)
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Family: family, Kind: kind, Issues: issues}
	}
	return nil
}

func checkType(f field, value any) (Issue, bool) {
	switch f.Type {
	case fieldString:
		s, ok := value.(string)
		if !ok {
			return Issue{Field: f.Name, Message: "must be a string"}, false
		}
		if strings.TrimSpace(s) == "" {
			return Issue{Field: f.Name, Message: "must not be empty"}, false
		}
	case fieldNumber:
		switch value.(type) {
		case float64, int, int64:
		default:
			return Issue{Field: f.Name, Message: "must be a number"}, false
		}
	}
	return Issue{}, true
}
