package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	"github.com/abelbrown/rabbitbrain/internal/brain"
	"github.com/abelbrown/rabbitbrain/internal/metrics"
	"github.com/abelbrown/rabbitbrain/internal/model"
	"github.com/abelbrown/rabbitbrain/internal/xapi"
)

type fakeSource struct {
	primary  model.Post
	fetchErr error
	search   func(query string, opts xapi.SearchOptions) ([]model.Post, error)
	calls    atomic.Int32
}

func (f *fakeSource) FetchByID(ctx context.Context, id string) (model.Post, error) {
	f.calls.Add(1)
	if f.fetchErr != nil {
		return model.Post{}, f.fetchErr
	}
	if id != f.primary.ID {
		return model.Post{}, xapi.ErrNotFound
	}
	return f.primary, nil
}

func (f *fakeSource) Search(ctx context.Context, query string, opts xapi.SearchOptions) ([]model.Post, error) {
	f.calls.Add(1)
	if f.search == nil {
		return nil, nil
	}
	return f.search(query, opts)
}

func mkPost(id, handle, body string, likes, reposts int) model.Post {
	return model.Post{
		ID:                id,
		Text:              body,
		AuthorHandle:      handle,
		AuthorDisplayName: strings.ToUpper(handle),
		Engagement:        model.Metrics{Likes: likes, Reposts: reposts},
		Permalink:         model.Permalink(handle, id),
	}
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(src PostSource, opts ...Option) *Engine {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewEngine(src, brain.NewClassifier(nil), opts...)
}

func TestAnalyzeEndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t)

	primary := mkPost("100", "alice", "We are shipping new AI agents for workflow automation @bob @alice", 200, 100)
	primary.FollowerCount = 5000
	primary.Verified = true

	src := &fakeSource{
		primary: primary,
		search: func(query string, opts xapi.SearchOptions) ([]model.Post, error) {
			if strings.HasPrefix(query, "from:alice") {
				return []model.Post{
					primary,
					mkPost("101", "alice", "Agents need better workflow tooling", 50, 25),
					mkPost("102", "alice", "Shipping automation for agents this week", 10, 5),
				}, nil
			}
			return []model.Post{
				mkPost("201", "bob", "New agents make workflow automation boring", 40, 10),
				mkPost("101", "alice", "Agents need better workflow tooling", 50, 25),
				mkPost("202", "carol", "Lunch photos", 1000, 1000),
			}, nil
		},
	}

	m := metrics.New()
	res, err := newTestEngine(src, WithMetrics(m)).Analyze(context.Background(), "https://x.com/alice/status/100?s=20")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if res.Version != AnalyzeVersion || res.AnalyzedAt != fixedNow.UnixMilli() {
		t.Errorf("version/time = %q/%d", res.Version, res.AnalyzedAt)
	}
	if res.PrimaryPost.Handle != "alice" || res.PrimaryPost.Permalink != "https://x.com/alice/status/100" {
		t.Errorf("PrimaryPost = %+v", res.PrimaryPost)
	}

	bobCount := 0
	for _, p := range res.Recommendations.SimilarPeople {
		if strings.EqualFold(p.Handle, "bob") {
			bobCount++
		}
		if strings.EqualFold(p.Handle, "alice") {
			t.Errorf("author recommended to follow themselves: %+v", p)
		}
	}
	if bobCount != 1 {
		t.Errorf("bob appears %d times in %+v, want once", bobCount, res.Recommendations.SimilarPeople)
	}

	topics := res.Recommendations.TopicsToFollow
	if len(topics) == 0 || topics[0].Topic != res.Analysis.Topic {
		t.Errorf("first topic = %+v, want classifier topic %q", topics, res.Analysis.Topic)
	}
	if len(topics) > 5 {
		t.Errorf("got %d topics, want at most 5", len(topics))
	}
	if res.Analysis.Topic != "AI Agents" || res.Analysis.Confidence != 0.45 {
		t.Errorf("Analysis = %+v", res.Analysis)
	}

	if !res.Recommendations.Creator.ShouldFollow {
		t.Errorf("Creator = %+v, want follow", res.Recommendations.Creator)
	}

	wantRelated := []string{
		"Agents need better workflow tooling",
		"New agents make workflow automation boring",
		"Shipping automation for agents this week",
	}
	if diff := cmp.Diff(wantRelated, res.Internal.RelatedTexts); diff != "" {
		t.Errorf("related texts mismatch (-want +got):\n%s", diff)
	}

	if !strings.Contains(res.FollowActions.AuthorFollowURL, "screen_name=alice") {
		t.Errorf("AuthorFollowURL = %q", res.FollowActions.AuthorFollowURL)
	}
	if got := testutil.ToFloat64(m.Runs.WithLabelValues("analyze", "ok")); got != 1 {
		t.Errorf("runs_total{analyze,ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ClassifierOutcomes.WithLabelValues(brain.StageNoKey)); got != 1 {
		t.Errorf("classifier_outcomes_total{no_key} = %v, want 1", got)
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	primary := mkPost("1", "alice", "Rust compilers are getting faster with incremental builds", 0, 0)
	src := &fakeSource{
		primary: primary,
		search: func(query string, opts xapi.SearchOptions) ([]model.Post, error) {
			return []model.Post{
				mkPost("2", "bob", "incremental builds for rust compilers", 5, 5),
				mkPost("3", "carol", "rust compilers and incremental linking", 5, 5),
			}, nil
		},
	}
	e := newTestEngine(src)

	first, err := e.Analyze(context.Background(), "https://x.com/alice/status/1")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	second, err := e.Analyze(context.Background(), "https://x.com/alice/status/1")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated Analyze differs:\n%s", diff)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		fetchErr error
		search   error
		want     Code
	}{
		{name: "invalid url", url: "https://example.com/foo", want: CodeInvalidURL},
		{name: "not found", url: "https://x.com/a/status/999", want: CodeNotFound},
		{name: "upstream fetch", url: "https://x.com/a/status/1", fetchErr: &xapi.UpstreamError{StatusCode: 503}, want: CodeUpstream},
		{name: "missing token", url: "https://x.com/a/status/1", fetchErr: xapi.ErrMissingToken, want: CodeUpstream},
		{name: "upstream search", url: "https://x.com/a/status/1", search: &xapi.UpstreamError{StatusCode: 429}, want: CodeUpstream},
		{name: "unexpected", url: "https://x.com/a/status/1", fetchErr: errors.New("disk on fire"), want: CodeInternalError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := &fakeSource{
				primary:  mkPost("1", "a", "hello compilers", 0, 0),
				fetchErr: tc.fetchErr,
				search: func(string, xapi.SearchOptions) ([]model.Post, error) {
					return nil, tc.search
				},
			}
			_, err := newTestEngine(src).Analyze(context.Background(), tc.url)
			if got := CodeOf(err); got != tc.want {
				t.Errorf("CodeOf(%v) = %s, want %s", err, got, tc.want)
			}
			if tc.want == CodeInvalidURL && src.calls.Load() != 0 {
				t.Errorf("invalid URL reached upstream %d times", src.calls.Load())
			}
		})
	}
}

func TestAnalyzeAgainstFakeXAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/tweets/7" {
			fmt.Fprint(w, `{"data": {"id": "7", "text": "Benchmark results for compilers", "author_id": "u1"},
			               "includes": {"users": [{"id": "u1", "username": "dana", "name": "Dana"}]}}`)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "over capacity")
	}))
	defer server.Close()

	client := xapi.NewClient(xapi.Config{Token: "t", BaseURL: server.URL, PageDelay: -1})
	_, err := newTestEngine(client).Analyze(context.Background(), "https://twitter.com/dana/status/7")

	var aerr *Error
	if !errors.As(err, &aerr) || aerr.Code != CodeUpstream {
		t.Fatalf("err = %v, want X_UPSTREAM_ERROR", err)
	}
	var upstream *xapi.UpstreamError
	if !errors.As(err, &upstream) || upstream.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("cause = %v, want 503 UpstreamError", err)
	}
}

func TestDiscoverArticles(t *testing.T) {
	var posts []model.Post
	for i := 0; i < 10; i++ {
		p := mkPost(fmt.Sprint(i), fmt.Sprintf("user%d", i), "rust", i, 0)
		p.URLs = []string{fmt.Sprintf("https://site%d.dev/rust", i)}
		posts = append(posts, p)
	}

	var gotQuery string
	var gotOpts xapi.SearchOptions
	src := &fakeSource{search: func(query string, opts xapi.SearchOptions) ([]model.Post, error) {
		gotQuery, gotOpts = query, opts
		return append(posts, posts[0]), nil
	}}

	res, err := newTestEngine(src).Discover(context.Background(), "  rust ")
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if gotQuery != "(rust) -is:retweet -is:reply lang:en" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotOpts.Pages != DiscoveryPages || gotOpts.SortOrder != xapi.SortRelevancy {
		t.Errorf("opts = %+v", gotOpts)
	}
	if res.Internal.CandidatePostCount != 10 {
		t.Errorf("CandidatePostCount = %d, want 10 after dedupe", res.Internal.CandidatePostCount)
	}
	if res.Topic != "Rust" || res.Internal.RawTopic != "rust" || res.Version != DiscoverVersion {
		t.Errorf("result header = %q/%q/%q", res.Topic, res.Internal.RawTopic, res.Version)
	}
	if res.FollowActions.Topic.Query != "rust" {
		t.Errorf("follow query = %q, want rust", res.FollowActions.Topic.Query)
	}

	articles := res.Results.Articles
	if len(articles) != 8 {
		t.Fatalf("got %d articles, want the top 8", len(articles))
	}
	for i, a := range articles {
		if a.Count != 1 {
			t.Errorf("%s count = %d, want 1", a.URL, a.Count)
		}
		if want := fmt.Sprintf("https://site%d.dev/rust", 9-i); a.URL != want {
			t.Errorf("articles[%d] = %s, want %s", i, a.URL, want)
		}
	}
	if len(res.Results.Posts) != 8 || len(res.Results.Users) != 8 {
		t.Errorf("posts/users = %d/%d, want 8/8", len(res.Results.Posts), len(res.Results.Users))
	}
}

func TestDiscoverEmptyTopic(t *testing.T) {
	src := &fakeSource{}
	_, err := newTestEngine(src).Discover(context.Background(), "   ")
	if CodeOf(err) != CodeInvalidTopic {
		t.Errorf("err = %v, want INVALID_TOPIC", err)
	}
	if src.calls.Load() != 0 {
		t.Error("empty topic reached upstream")
	}
}

func TestShare(t *testing.T) {
	src := &fakeSource{primary: mkPost("5", "erin", "just sharing", 0, 0)}
	res, err := newTestEngine(src).Share(context.Background(), "https://x.com/erin/status/5")
	if err != nil {
		t.Fatalf("Share failed: %v", err)
	}
	if res.Topic != SharedTopic || res.PrimaryPost.ID != "5" || res.SharedAt != fixedNow.UnixMilli() {
		t.Errorf("ShareResult = %+v", res)
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1 (fetch only)", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Code]int{
		CodeInvalidURL:    400,
		CodeInvalidTopic:  400,
		CodeNotFound:      404,
		CodeRateLimit:     429,
		CodeUpstream:      503,
		CodeInternalError: 500,
	}
	for code, want := range tests {
		if got := HTTPStatus(code); got != want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", code, got, want)
		}
	}
	if CodeOf(nil) != CodeInternalError {
		t.Error("CodeOf(nil) should fall back to INTERNAL_ERROR")
	}
}
