package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"bandstand/api/internal/auth"
	"bandstand/api/internal/authpw"
	"bandstand/api/internal/config"
	"bandstand/api/internal/contenttype"
	"bandstand/api/internal/engine"
	"bandstand/api/internal/media"
	"bandstand/api/internal/mutation"
	"bandstand/api/internal/rbac"
	"bandstand/api/internal/search"
	"bandstand/api/internal/session"
	"bandstand/api/internal/store"
	"bandstand/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       int64
	UserName     string
	Role         string
	TenantID     int64
	JTI          string
	ExpiresAt    time.Time
}

// dataStore is the slice of the Postgres layer the app service reads from
// directly. Writes go through the mutation engine.
type dataStore interface {
	EnsureUserByName(context.Context, string) (store.User, error)
	GetUserByID(context.Context, int64) (store.User, error)
	GetContentNode(context.Context, int64) (store.ContentNode, error)
	ListChildren(context.Context, int64) ([]store.ContentNode, error)
	ListContentAccess(context.Context, int64) ([]store.ContentAccess, error)
	GetContentType(context.Context, int64) (store.ContentType, error)
	Ping(ctx context.Context) error
}

type sessionStore interface {
	SaveRefreshSession(context.Context, string, session.TokenData, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
}

// mailer is the outbound-mail surface; satisfied by *email.Service.
type mailer interface {
	IsConfigured() bool
	SendVerificationEmail(to, name, verifyURL string) error
	SendPasswordResetEmail(to, name, resetURL string) error
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	engine    *engine.Engine
	processor *engine.Processor
	search    *search.Service
	authpw    *authpw.Service
	media     *media.Service
	mail      mailer
}

func New(cfg config.Config, dataStore dataStore, sessions sessionStore, eng *engine.Engine, searchSvc *search.Service, authSvc *authpw.Service, mediaSvc *media.Service, mailSvc mailer) *Service {
	s := &Service{
		cfg:       cfg,
		store:     dataStore,
		sessions:  sessions,
		engine:    eng,
		processor: engine.NewProcessor(eng),
		search:    searchSvc,
		authpw:    authSvc,
		media:     mediaSvc,
		mail:      mailSvc,
	}
	if searchSvc != nil {
		eng.OnContentChange = s.onContentChange
	}
	return s
}

// onContentChange keeps the search index in step with the content table.
// Indexing is fire-and-forget inside the search service; a failed lookup
// here just skips the index update.
func (s *Service) onContentChange(kind engine.ChangeKind, node store.ContentNode) {
	id := strconv.FormatInt(node.ID, 10)
	if kind == engine.ChangeRemoved {
		s.search.DeleteContent(id)
		return
	}

	family := ""
	if ct, err := s.store.GetContentType(context.Background(), node.ContentTypeID); err == nil {
		family = ct.Family
	}
	s.search.IndexContent(search.ContentRecord{
		ID:         id,
		Title:      node.Title,
		Family:     family,
		Kind:       metadataKind(node.Metadata),
		TenantID:   node.TenantID,
		AccessType: node.AccessType,
	})
}

func metadataKind(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var metadata map[string]any
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return ""
	}
	return contenttype.Kind(metadata)
}

// ---- sessions ----

func (s *Service) Login(ctx context.Context, name string) (Session, error) {
	userName := name
	if userName == "" {
		userName = "User"
	}

	user, err := s.store.EnsureUserByName(ctx, userName)
	if err != nil {
		return Session{}, err
	}

	return s.issueSession(ctx, user)
}

// CreateSession issues tokens for an already-authenticated user id.
func (s *Service) CreateSession(ctx context.Context, userID int64) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:    user.ID,
		Name:   user.Name,
		Role:   user.Role,
		Tenant: user.TenantID,
		JTI:    jti,
		Exp:    expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), session.TokenData{
		UserID:   user.ID,
		Name:     user.Name,
		Role:     user.Role,
		TenantID: user.TenantID,
	}, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.Name,
		Role:         user.Role,
		TenantID:     user.TenantID,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Name,
		Role:      user.Role,
		TenantID:  user.TenantID,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

// ---- outbound mail ----

// SMTPConfigured reports whether verification and reset mail can be sent.
// When it returns false the auth handlers fall back to returning tokens in
// the response body for local development.
func (s *Service) SMTPConfigured() bool {
	return s.mail != nil && s.mail.IsConfigured()
}

func (s *Service) SendVerificationEmail(to, name, token string) {
	if !s.SMTPConfigured() {
		return
	}
	verifyURL := fmt.Sprintf("%s/verify-email?token=%s", s.cfg.AppBaseURL, token)
	if err := s.mail.SendVerificationEmail(to, name, verifyURL); err != nil {
		log.Printf("WARNING: verification mail to %s failed: %v", to, err)
	}
}

func (s *Service) SendPasswordResetEmail(to, token string) {
	if !s.SMTPConfigured() {
		return
	}
	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.cfg.AppBaseURL, token)
	if err := s.mail.SendPasswordResetEmail(to, "", resetURL); err != nil {
		log.Printf("WARNING: reset mail to %s failed: %v", to, err)
	}
}

// ---- mutations ----

// ApplyMutations decodes and runs an ordered batch under the session's
// identity. On success the response carries the batch transaction id.
func (s *Service) ApplyMutations(ctx context.Context, sess Session, raw []json.RawMessage) (map[string]any, error) {
	batch, err := mutation.ParseBatch(raw)
	if err != nil {
		return nil, err
	}

	caller := engine.Caller{
		ID:       sess.UserID,
		Name:     sess.UserName,
		Role:     rbac.Normalize(sess.Role),
		TenantID: sess.TenantID,
	}

	txid, err := s.processor.Process(ctx, caller, batch)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"success": true,
		"txid":    txid,
	}, nil
}

// ---- reads ----

func (s *Service) GetContent(ctx context.Context, id int64) (map[string]any, error) {
	node, err := s.store.GetContentNode(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("content %d not found", id), nil)
	}
	if err != nil {
		return nil, err
	}

	grants, err := s.store.ListContentAccess(ctx, id)
	if err != nil {
		return nil, err
	}

	rules := make([]string, 0, len(grants))
	for _, grant := range grants {
		rules = append(rules, grant.Rule)
	}

	return map[string]any{
		"content": contentPayload(node),
		"access":  rules,
	}, nil
}

func (s *Service) GetContentChildren(ctx context.Context, id int64) (map[string]any, error) {
	node, err := s.store.GetContentNode(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("content %d not found", id), nil)
	}
	if err != nil {
		return nil, err
	}

	children, err := s.store.ListChildren(ctx, node.ID)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(children))
	for _, child := range children {
		items = append(items, contentPayload(child))
	}

	return map[string]any{"children": items}, nil
}

func contentPayload(node store.ContentNode) map[string]any {
	payload := map[string]any{
		"id":            node.ID,
		"title":         node.Title,
		"authorId":      node.AuthorID,
		"contentTypeId": node.ContentTypeID,
		"accessType":    node.AccessType,
		"tenantId":      node.TenantID,
		"createdAt":     node.CreatedAt,
		"updatedAt":     node.UpdatedAt,
	}
	if node.ParentID != nil {
		payload["parentId"] = *node.ParentID
	}
	if len(node.Metadata) > 0 {
		payload["metadata"] = json.RawMessage(node.Metadata)
	}
	return payload
}

// ---- search ----

func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

// ---- schemas ----

func (s *Service) SchemaFamilies() map[string]any {
	return map[string]any{"families": contenttype.Families()}
}

func (s *Service) SchemaForFamily(family string) (map[string]any, error) {
	parsed, ok := contenttype.ParseFamily(family)
	if !ok {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("unknown content family %q", family), nil)
	}
	return contenttype.Schema(parsed)
}

// ---- media ----

// MediaConfigured reports whether object storage is wired.
func (s *Service) MediaConfigured() bool {
	return s.media != nil
}

func (s *Service) UploadMedia(ctx context.Context, sess Session, filename, contentType string, size int64, body io.Reader) (map[string]any, error) {
	if s.media == nil {
		return nil, domainError(http.StatusServiceUnavailable, "MEDIA_UNAVAILABLE", "Media storage not configured", nil)
	}
	url, err := s.media.Upload(ctx, sess.TenantID, filename, contentType, size, body)
	if err != nil {
		return nil, err
	}
	return map[string]any{"url": url}, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
