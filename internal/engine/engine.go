// Package engine applies validated mutations to the content store while
// enforcing cross-entity consistency rules: reaction dedup/replace, cascade
// cleanup of access grants, orphan re-parenting, and remove authorization.
package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"bandstand/api/internal/contenttype"
	"bandstand/api/internal/mutation"
	"bandstand/api/internal/rbac"
	"bandstand/api/internal/store"
)

// Caller is the resolved identity a mutation batch runs under. Credential
// verification happens upstream; the engine only consumes id, role, and
// tenant scope.
type Caller struct {
	ID       int64
	Name     string
	Role     rbac.Role
	TenantID int64
}

// Store is the slice of the data layer the rules engine needs. Each call is
// an independently atomic write; the engine takes no locks of its own.
type Store interface {
	GetContentNode(ctx context.Context, id int64) (store.ContentNode, error)
	ContentNodeExists(ctx context.Context, id int64) (bool, error)
	InsertContentNode(ctx context.Context, node store.ContentNode) (int64, error)
	UpdateContentNode(ctx context.Context, id int64, patch store.ContentNodePatch) (bool, error)
	DeleteContentNode(ctx context.Context, id int64) error
	FindReactionByKind(ctx context.Context, authorID, parentID int64, kind string) (*store.ContentNode, error)
	FindEmojiReaction(ctx context.Context, authorID, parentID int64, emoji string) (*store.ContentNode, error)
	DeleteContentAccessByContent(ctx context.Context, contentID int64) error
	DetachChildren(ctx context.Context, parentID int64) error

	GetContentType(ctx context.Context, id int64) (store.ContentType, error)
	InsertContentType(ctx context.Context, ct store.ContentType) (int64, error)
	UpdateContentType(ctx context.Context, id int64, name, family *string) (bool, error)
	DeleteContentType(ctx context.Context, id int64) (bool, error)
}

// ChangeKind tags an observer notification.
type ChangeKind string

const (
	ChangeInserted ChangeKind = "inserted"
	ChangeUpdated  ChangeKind = "updated"
	ChangeRemoved  ChangeKind = "removed"
)

// Engine applies one mutation at a time. OnContentChange, when set, is
// invoked after each successful content-node write (used by the app layer
// to keep the search index in step); it must not block.
type Engine struct {
	store Store

	OnContentChange func(kind ChangeKind, node store.ContentNode)

	familyMu sync.RWMutex
	families map[int64]contenttype.Family
}

func New(dataStore Store) *Engine {
	return &Engine{
		store:    dataStore,
		families: make(map[int64]contenttype.Family),
	}
}

// Apply runs one validated envelope against the store under the caller's
// authority. Errors are returned synchronously; nothing is retried here.
func (e *Engine) Apply(ctx context.Context, caller Caller, env mutation.Envelope) error {
	switch env.Collection {
	case mutation.CollectionContent:
		return e.applyContent(ctx, caller, env)
	case mutation.CollectionContentTypes:
		return e.applyContentType(ctx, env)
	default:
		return &UnknownCollectionError{Collection: env.Collection}
	}
}

// ---- content collection ----

// nodeInput is the decoded value payload of a content mutation. Pointer
// fields distinguish "absent" from zero so updates only touch supplied
// attributes.
type nodeInput struct {
	ID            *int64         `json:"id"`
	Title         *string        `json:"title"`
	AuthorID      *int64         `json:"author_id"`
	ContentTypeID *int64         `json:"content_type_id"`
	ParentID      *int64         `json:"parent_id"`
	AccessType    *string        `json:"access_type"`
	TenantID      *int64         `json:"tenant_id"`
	Metadata      map[string]any `json:"metadata"`
}

func decodeNodeInput(value map[string]any) (nodeInput, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nodeInput{}, fmt.Errorf("encode mutation value: %w", err)
	}
	var input nodeInput
	if err := json.Unmarshal(raw, &input); err != nil {
		return nodeInput{}, fmt.Errorf("%w: %v", ErrValueRequired, err)
	}
	return input, nil
}

func (e *Engine) applyContent(ctx context.Context, caller Caller, env mutation.Envelope) error {
	switch env.Kind {
	case mutation.KindInsert:
		return e.insertContent(ctx, caller, env)
	case mutation.KindUpdate:
		return e.updateContent(ctx, env)
	case mutation.KindRemove:
		return e.removeContent(ctx, caller, env)
	default:
		return &UnknownOperationError{Kind: env.Kind}
	}
}

func (e *Engine) insertContent(ctx context.Context, caller Caller, env mutation.Envelope) error {
	if env.Value == nil {
		return ErrValueRequired
	}
	input, err := decodeNodeInput(env.Value)
	if err != nil {
		return err
	}
	if input.AuthorID == nil {
		return fmt.Errorf("%w: author_id", ErrValueRequired)
	}
	if input.ContentTypeID == nil {
		return fmt.Errorf("%w: content_type_id", ErrValueRequired)
	}

	family, err := e.resolveFamily(ctx, *input.ContentTypeID)
	if err != nil {
		return err
	}
	if err := contenttype.Validate(family, input.Metadata); err != nil {
		return err
	}

	if input.ParentID != nil {
		exists, err := e.store.ContentNodeExists(ctx, *input.ParentID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %d", ErrParentNotFound, *input.ParentID)
		}
	}

	kind := contenttype.Kind(input.Metadata)
	if family == contenttype.FamilyReaction && input.ParentID != nil && kind != "" {
		if err := e.checkReaction(ctx, *input.AuthorID, *input.ParentID, kind, input.Metadata); err != nil {
			return err
		}
	}

	node := store.ContentNode{
		AuthorID:      *input.AuthorID,
		ContentTypeID: *input.ContentTypeID,
		ParentID:      input.ParentID,
		AccessType:    "public",
		TenantID:      caller.TenantID,
	}
	if input.ID != nil {
		node.ID = *input.ID
	}
	if input.Title != nil {
		node.Title = *input.Title
	}
	if input.AccessType != nil {
		node.AccessType = *input.AccessType
	}
	if input.TenantID != nil {
		node.TenantID = *input.TenantID
	}
	if input.Metadata != nil {
		raw, err := json.Marshal(input.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		node.Metadata = raw
	}

	id, err := e.store.InsertContentNode(ctx, node)
	if err != nil {
		return err
	}
	node.ID = id
	e.notify(ChangeInserted, node)
	return nil
}

// checkReaction enforces the per-(author, parent) reaction constraints.
// Upvote and downvote are deduplicated as a pair: a duplicate of the same
// kind fails, while the opposite kind is deleted first (switch semantics).
// Emoji reactions are deduplicated on the specific emoji value. The two
// vote lookups are deliberately independent queries.
func (e *Engine) checkReaction(ctx context.Context, authorID, parentID int64, kind string, metadata map[string]any) error {
	switch kind {
	case contenttype.KindUpvote, contenttype.KindDownvote:
		existingUp, err := e.store.FindReactionByKind(ctx, authorID, parentID, contenttype.KindUpvote)
		if err != nil {
			return err
		}
		existingDown, err := e.store.FindReactionByKind(ctx, authorID, parentID, contenttype.KindDownvote)
		if err != nil {
			return err
		}

		same, opposite := existingUp, existingDown
		if kind == contenttype.KindDownvote {
			same, opposite = existingDown, existingUp
		}
		if same != nil {
			return fmt.Errorf("%w: %s on content %d", ErrDuplicateReaction, kind, parentID)
		}
		if opposite != nil {
			if err := e.store.DeleteContentNode(ctx, opposite.ID); err != nil {
				return err
			}
			e.notify(ChangeRemoved, *opposite)
		}
	case contenttype.KindEmoji:
		emoji, _ := metadata["emoji"].(string)
		existing, err := e.store.FindEmojiReaction(ctx, authorID, parentID, emoji)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: emoji %q on content %d", ErrDuplicateReaction, emoji, parentID)
		}
	}
	return nil
}

// updateContent overwrites the supplied attributes on an existing node.
// Reaction and metadata invariants are intentionally not re-checked on
// update; callers switching a node's kind through update bypass the insert
// rules. Kept as-is rather than silently tightened.
func (e *Engine) updateContent(ctx context.Context, env mutation.Envelope) error {
	id, err := parseKey(env.Key)
	if err != nil {
		return err
	}
	if env.Value == nil {
		return ErrValueRequired
	}
	input, err := decodeNodeInput(env.Value)
	if err != nil {
		return err
	}

	patch := store.ContentNodePatch{
		Title:         input.Title,
		AuthorID:      input.AuthorID,
		ContentTypeID: input.ContentTypeID,
		AccessType:    input.AccessType,
		TenantID:      input.TenantID,
	}
	if raw, present := env.Value["parent_id"]; present && raw == nil {
		patch.ClearParent = true
	} else {
		patch.ParentID = input.ParentID
	}
	if input.Metadata != nil {
		raw, err := json.Marshal(input.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		patch.Metadata = raw
	}

	updated, err := e.store.UpdateContentNode(ctx, id, patch)
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("%w: content %d", ErrNotFound, id)
	}

	if e.OnContentChange != nil {
		node, err := e.store.GetContentNode(ctx, id)
		if err == nil {
			e.notify(ChangeUpdated, node)
		}
	}
	return nil
}

// removeContent deletes a node after authorization: the author or an
// elevated role. Access grants are dropped first and children are detached
// (not deleted) so they survive as top-level content. The three steps run
// unconditionally once authorization passes; there is no rollback between
// them.
func (e *Engine) removeContent(ctx context.Context, caller Caller, env mutation.Envelope) error {
	id, err := parseKey(env.Key)
	if err != nil {
		return err
	}

	node, err := e.store.GetContentNode(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: content %d", ErrNotFound, id)
	}
	if err != nil {
		return err
	}

	if node.AuthorID != caller.ID && !rbac.Elevated(caller.Role) {
		return fmt.Errorf("%w: content %d", ErrPermissionDenied, id)
	}

	if err := e.store.DeleteContentAccessByContent(ctx, id); err != nil {
		return err
	}
	if err := e.store.DetachChildren(ctx, id); err != nil {
		return err
	}
	if err := e.store.DeleteContentNode(ctx, id); err != nil {
		return err
	}
	e.notify(ChangeRemoved, node)
	return nil
}

// ---- content_types collection ----

type contentTypeInput struct {
	ID     *int64  `json:"id"`
	Name   *string `json:"name"`
	Family *string `json:"family"`
}

func (e *Engine) applyContentType(ctx context.Context, env mutation.Envelope) error {
	switch env.Kind {
	case mutation.KindInsert:
		if env.Value == nil {
			return ErrValueRequired
		}
		input, err := decodeContentTypeInput(env.Value)
		if err != nil {
			return err
		}
		ct := store.ContentType{}
		if input.ID != nil {
			ct.ID = *input.ID
		}
		if input.Name != nil {
			ct.Name = *input.Name
		}
		if input.Family != nil {
			ct.Family = *input.Family
		}
		id, err := e.store.InsertContentType(ctx, ct)
		if err != nil {
			return err
		}
		e.invalidateFamily(id)
		return nil

	case mutation.KindUpdate:
		id, err := parseKey(env.Key)
		if err != nil {
			return err
		}
		if env.Value == nil {
			return ErrValueRequired
		}
		input, err := decodeContentTypeInput(env.Value)
		if err != nil {
			return err
		}
		updated, err := e.store.UpdateContentType(ctx, id, input.Name, input.Family)
		if err != nil {
			return err
		}
		if !updated {
			return fmt.Errorf("%w: content type %d", ErrNotFound, id)
		}
		e.invalidateFamily(id)
		return nil

	case mutation.KindRemove:
		id, err := parseKey(env.Key)
		if err != nil {
			return err
		}
		deleted, err := e.store.DeleteContentType(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("%w: content type %d", ErrNotFound, id)
		}
		e.invalidateFamily(id)
		return nil

	default:
		return &UnknownOperationError{Kind: env.Kind}
	}
}

func decodeContentTypeInput(value map[string]any) (contentTypeInput, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return contentTypeInput{}, fmt.Errorf("encode mutation value: %w", err)
	}
	var input contentTypeInput
	if err := json.Unmarshal(raw, &input); err != nil {
		return contentTypeInput{}, fmt.Errorf("%w: %v", ErrValueRequired, err)
	}
	return input, nil
}

// ---- helpers ----

func parseKey(key string) (int64, error) {
	if key == "" {
		return 0, ErrKeyRequired
	}
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return id, nil
}

// resolveFamily maps a content type id to its metadata family, memoized per
// engine instance and invalidated on content_types mutations.
func (e *Engine) resolveFamily(ctx context.Context, contentTypeID int64) (contenttype.Family, error) {
	e.familyMu.RLock()
	family, ok := e.families[contentTypeID]
	e.familyMu.RUnlock()
	if ok {
		return family, nil
	}

	ct, err := e.store.GetContentType(ctx, contentTypeID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %d", ErrContentTypeNotFound, contentTypeID)
	}
	if err != nil {
		return "", err
	}

	family = contenttype.Family(ct.Family)
	e.familyMu.Lock()
	e.families[contentTypeID] = family
	e.familyMu.Unlock()
	return family, nil
}

func (e *Engine) invalidateFamily(contentTypeID int64) {
	e.familyMu.Lock()
	delete(e.families, contentTypeID)
	e.familyMu.Unlock()
}

func (e *Engine) notify(kind ChangeKind, node store.ContentNode) {
	if e.OnContentChange != nil {
		e.OnContentChange(kind, node)
	}
}
