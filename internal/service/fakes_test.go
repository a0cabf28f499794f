package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sakif/voicepost/internal/apperror"
	"github.com/sakif/voicepost/internal/llm"
	"github.com/sakif/voicepost/internal/model"
	"github.com/sakif/voicepost/internal/repository"
	"github.com/sakif/voicepost/internal/social"
)

// In-memory fakes for the repository and client interfaces. Each stores
// copies so a test cannot mutate state through a returned pointer.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- users ---

type fakeUserRepo struct {
	users     map[string]*model.User
	nextID    int
	createErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.Conflict("user", user.Email)
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	out := *u
	return &out, nil
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

// --- tokens ---

type tokenKey struct {
	userID   string
	platform model.Platform
}

type fakeTokenRepo struct {
	mu        sync.Mutex
	tokens    map[tokenKey]model.SocialToken
	upserts   int
	upsertErr error
	listErr   error
}

func newFakeTokenRepo(tokens ...model.SocialToken) *fakeTokenRepo {
	f := &fakeTokenRepo{tokens: make(map[tokenKey]model.SocialToken)}
	for _, t := range tokens {
		f.tokens[tokenKey{t.UserID, t.Platform}] = t
	}
	return f
}

func (f *fakeTokenRepo) UpsertToken(_ context.Context, t *model.SocialToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts++
	f.tokens[tokenKey{t.UserID, t.Platform}] = *t
	return nil
}

func (f *fakeTokenRepo) GetToken(_ context.Context, userID string, p model.Platform) (*model.SocialToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[tokenKey{userID, p}]
	if !ok {
		return nil, apperror.NotFound(string(p)+" token", userID)
	}
	return &t, nil
}

func (f *fakeTokenRepo) ListTokens(_ context.Context, userID string) ([]model.SocialToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.SocialToken
	for _, p := range model.Platforms {
		if t, ok := f.tokens[tokenKey{userID, p}]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTokenRepo) DeleteToken(_ context.Context, userID string, p model.Platform) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := tokenKey{userID, p}
	if _, ok := f.tokens[k]; !ok {
		return apperror.NotFound(string(p)+" token", userID)
	}
	delete(f.tokens, k)
	return nil
}

func (f *fakeTokenRepo) ListUsersWithTokens(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for k := range f.tokens {
		if !seen[k.userID] {
			seen[k.userID] = true
			out = append(out, k.userID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// --- scheduled posts ---

type fakeScheduledRepo struct {
	posts     map[string]*model.ScheduledPost
	order     []string
	nextID    int
	markErr   map[string]error
	recordErr error
}

func newFakeScheduledRepo() *fakeScheduledRepo {
	return &fakeScheduledRepo{
		posts:   make(map[string]*model.ScheduledPost),
		markErr: make(map[string]error),
	}
}

func (f *fakeScheduledRepo) CreateScheduledPost(_ context.Context, p *model.ScheduledPost) error {
	f.nextID++
	p.ID = fmt.Sprintf("sched-%d", f.nextID)
	stored := *p
	f.posts[p.ID] = &stored
	f.order = append(f.order, p.ID)
	return nil
}

func (f *fakeScheduledRepo) GetScheduledPost(_ context.Context, id string) (*model.ScheduledPost, error) {
	p, ok := f.posts[id]
	if !ok {
		return nil, apperror.NotFound("scheduled post", id)
	}
	out := *p
	return &out, nil
}

func (f *fakeScheduledRepo) ListScheduledPosts(_ context.Context, userID string, _ repository.ListOptions) ([]model.ScheduledPost, error) {
	var out []model.ScheduledPost
	for _, id := range f.order {
		if p, ok := f.posts[id]; ok && p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeScheduledRepo) DeleteScheduledPost(_ context.Context, id string) error {
	if _, ok := f.posts[id]; !ok {
		return apperror.NotFound("scheduled post", id)
	}
	delete(f.posts, id)
	return nil
}

func (f *fakeScheduledRepo) ListDuePosts(_ context.Context, now time.Time) ([]model.ScheduledPost, error) {
	var out []model.ScheduledPost
	for _, id := range f.order {
		p, ok := f.posts[id]
		if ok && !p.Posted && !p.ScheduledFor.After(now) {
			out = append(out, *p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	return out, nil
}

func (f *fakeScheduledRepo) MarkPosted(_ context.Context, id, platformPostID string) error {
	if err := f.markErr[id]; err != nil {
		return err
	}
	p, ok := f.posts[id]
	if !ok {
		return apperror.NotFound("scheduled post", id)
	}
	p.Posted = true
	p.PlatformPostID = platformPostID
	p.LastError = ""
	return nil
}

func (f *fakeScheduledRepo) RecordPublishError(_ context.Context, id, message string) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	p, ok := f.posts[id]
	if !ok {
		return apperror.NotFound("scheduled post", id)
	}
	p.LastError = message
	return nil
}

// --- saved posts ---

type fakeSavedRepo struct {
	posts  map[string]*model.SavedPost
	nextID int
	opts   repository.ListOptions
}

func newFakeSavedRepo() *fakeSavedRepo {
	return &fakeSavedRepo{posts: make(map[string]*model.SavedPost)}
}

func (f *fakeSavedRepo) CreateSavedPost(_ context.Context, p *model.SavedPost) error {
	f.nextID++
	p.ID = fmt.Sprintf("saved-%d", f.nextID)
	stored := *p
	f.posts[p.ID] = &stored
	return nil
}

func (f *fakeSavedRepo) GetSavedPost(_ context.Context, id string) (*model.SavedPost, error) {
	p, ok := f.posts[id]
	if !ok {
		return nil, apperror.NotFound("saved post", id)
	}
	out := *p
	return &out, nil
}

func (f *fakeSavedRepo) ListSavedPosts(_ context.Context, userID string, opts repository.ListOptions) ([]model.SavedPost, error) {
	f.opts = opts
	var out []model.SavedPost
	for _, p := range f.posts {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeSavedRepo) UpdateSavedPost(_ context.Context, p *model.SavedPost) error {
	if _, ok := f.posts[p.ID]; !ok {
		return apperror.NotFound("saved post", p.ID)
	}
	stored := *p
	f.posts[p.ID] = &stored
	return nil
}

func (f *fakeSavedRepo) DeleteSavedPost(_ context.Context, id string) error {
	if _, ok := f.posts[id]; !ok {
		return apperror.NotFound("saved post", id)
	}
	delete(f.posts, id)
	return nil
}

// --- metrics store ---

type metricKey struct {
	platform model.Platform
	postID   string
}

type fakeMetricRepo struct {
	mu         sync.Mutex
	metrics    map[metricKey]model.PostMetric
	categories map[string]model.Category
	nextID     int
	failPostID string
	filter     repository.MetricFilter
}

func newFakeMetricRepo() *fakeMetricRepo {
	return &fakeMetricRepo{
		metrics:    make(map[metricKey]model.PostMetric),
		categories: make(map[string]model.Category),
	}
}

func (f *fakeMetricRepo) UpsertMetric(_ context.Context, m *model.PostMetric) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.PlatformPostID == f.failPostID {
		return fmt.Errorf("disk full")
	}
	k := metricKey{m.Platform, m.PlatformPostID}
	if existing, ok := f.metrics[k]; ok {
		m.ID = existing.ID
	} else {
		f.nextID++
		m.ID = fmt.Sprintf("metric-%d", f.nextID)
	}
	f.metrics[k] = *m
	return nil
}

func (f *fakeMetricRepo) UpsertCategory(_ context.Context, cp *model.CategorizedPost) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.categories[cp.PostMetricsID] = cp.Category
	return nil
}

func (f *fakeMetricRepo) ListMetrics(_ context.Context, userID string, filter repository.MetricFilter) ([]model.MetricWithCategory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = filter
	var out []model.MetricWithCategory
	for _, m := range f.metrics {
		if m.UserID == userID {
			out = append(out, model.MetricWithCategory{PostMetric: m, Category: f.categories[m.ID]})
		}
	}
	return out, nil
}

// --- platform clients and credentials ---

type fakeClient struct {
	platform model.Platform

	mu        sync.Mutex
	published []string
	tokens    []string
	publishFn func(content string) (string, error)

	recent   []social.RemotePost
	fetchErr error
}

func (f *fakeClient) Platform() model.Platform { return f.platform }

func (f *fakeClient) Publish(_ context.Context, accessToken, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, accessToken)
	if f.publishFn != nil {
		id, err := f.publishFn(content)
		if err != nil {
			return "", err
		}
		f.published = append(f.published, content)
		return id, nil
	}
	f.published = append(f.published, content)
	return fmt.Sprintf("%s-%d", f.platform, len(f.published)), nil
}

func (f *fakeClient) RecentPosts(_ context.Context, _ string) ([]social.RemotePost, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.recent, nil
}

// staticCreds hands out a token named after (user, platform) unless the
// pair is listed in missing.
type staticCreds struct {
	missing map[tokenKey]bool
}

func (c staticCreds) Valid(_ context.Context, userID string, p model.Platform) (*model.SocialToken, error) {
	if c.missing[tokenKey{userID, p}] {
		return nil, apperror.NotFound(string(p)+" token", userID)
	}
	return &model.SocialToken{UserID: userID, Platform: p, AccessToken: userID + "-" + string(p)}, nil
}

type fakeRefresher struct {
	platform model.Platform
	calls    int
	err      error
}

func (f *fakeRefresher) Platform() model.Platform { return f.platform }

func (f *fakeRefresher) Refresh(_ context.Context, cur *model.SocialToken) (*model.SocialToken, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &model.SocialToken{
		UserID:      cur.UserID,
		Platform:    cur.Platform,
		AccessToken: "refreshed",
		TokenType:   "Bearer",
		ExpiresAt:   time.Now().Add(2 * time.Hour),
	}, nil
}

type fakeConnector struct {
	fakeRefresher
	callback   social.CallbackResult
	initiateTo string
	got        social.Callback
}

func (f *fakeConnector) Initiate(userID, returnTo string) (social.Authorization, error) {
	f.initiateTo = returnTo
	return social.Authorization{URL: "https://provider.example/authorize?user=" + userID, Nonce: "n", Verifier: "v"}, nil
}

func (f *fakeConnector) HandleCallback(_ context.Context, cb social.Callback) (social.CallbackResult, error) {
	f.got = cb
	return f.callback, nil
}

// --- llm, mail, speech ---

type fakeProvider struct {
	reply    string
	err      error
	calls    int
	system   string
	messages []llm.Message
}

func (f *fakeProvider) Complete(_ context.Context, system string, messages []llm.Message) (string, error) {
	f.calls++
	f.system = system
	f.messages = messages
	return f.reply, f.err
}

type fakeMailer struct {
	enabled bool
	err     error
	to      string
	html    string
	text    string
}

func (f *fakeMailer) Enabled() bool { return f.enabled }

func (f *fakeMailer) SendMail(_ context.Context, to, _, htmlBody, textBody string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.to, f.html, f.text = to, htmlBody, textBody
	return "msg-1", nil
}

type fakeSTT struct {
	text     string
	err      error
	filename string
	audio    []byte
}

func (f *fakeSTT) Transcribe(_ context.Context, filename string, audio io.Reader) (string, error) {
	f.filename = filename
	f.audio, _ = io.ReadAll(audio)
	return f.text, f.err
}
