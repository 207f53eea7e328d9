// Package analysis runs the analyze, discover and share pipelines.
//
// Analyze: URL -> primary post -> related posts -> classifier ->
// recommendations. Discover: topic -> two pages of search -> rankings.
// Share: URL -> primary post only. Failures surface as *Error carrying a
// stable Code; classifier trouble is never a failure.
package analysis

import (
	"context"
	"strings"
	"time"

	"github.com/abelbrown/rabbitbrain/internal/brain"
	"github.com/abelbrown/rabbitbrain/internal/logging"
	"github.com/abelbrown/rabbitbrain/internal/metrics"
	"github.com/abelbrown/rabbitbrain/internal/model"
	"github.com/abelbrown/rabbitbrain/internal/recommend"
	"github.com/abelbrown/rabbitbrain/internal/related"
	"github.com/abelbrown/rabbitbrain/internal/text"
	"github.com/abelbrown/rabbitbrain/internal/xapi"
)

// DiscoveryPages is how many search pages a discovery reads.
const DiscoveryPages = 2

// PostSource retrieves posts. *xapi.Client satisfies it.
type PostSource interface {
	related.Searcher
	FetchByID(ctx context.Context, id string) (model.Post, error)
}

// Classifier labels a post. *brain.Classifier satisfies it.
type Classifier interface {
	Classify(ctx context.Context, primary model.Post, related []model.Post) brain.Classification
}

// Engine wires retrieval, classification and ranking together. It holds
// no per-request state and is safe for concurrent use.
type Engine struct {
	posts      PostSource
	classifier Classifier
	metrics    *metrics.Metrics
	now        func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithMetrics records pipeline metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine. A nil classifier always uses the local
// heuristic.
func NewEngine(posts PostSource, classifier Classifier, opts ...Option) *Engine {
	if classifier == nil {
		classifier = brain.NewClassifier(nil)
	}
	e := &Engine{posts: posts, classifier: classifier, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze fetches the post at rawURL and builds its analysis.
func (e *Engine) Analyze(ctx context.Context, rawURL string) (res *AnalyzeResult, err error) {
	defer func() { e.record("analyze", err) }()

	primary, err := e.fetchPrimary(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	relatedPosts, err := related.Find(ctx, e.posts, primary)
	if err != nil {
		return nil, fromUpstream(err)
	}
	analyzedAt := e.now().UnixMilli()

	cls := e.classifier.Classify(ctx, primary, relatedPosts)
	if e.metrics != nil {
		e.metrics.ClassifierOutcomes.WithLabelValues(cls.Stage).Inc()
		e.metrics.CandidatePosts.WithLabelValues("analyze").Observe(float64(len(relatedPosts)))
	}

	people := recommend.MergePeople(
		recommend.SimilarPeople(primary, relatedPosts, recommend.DefaultPeopleLimit),
		recommend.MentionFallback(primary, recommend.DefaultPeopleLimit),
		recommend.DefaultPeopleLimit,
	)
	topics := recommend.EnsureTopic(
		recommend.TopicsToFollow(primary, relatedPosts, recommend.DefaultTopicLimit),
		cls.Topic,
		recommend.DefaultTopicLimit,
	)
	creator := recommend.CreatorAnalysis(primary, relatedPosts)

	relatedTexts := model.Texts(relatedPosts)

	logging.Info("analysis complete",
		"post", primary.ID, "author", primary.AuthorHandle, "related", len(relatedPosts),
		"topic", cls.Topic, "stage", cls.Stage)

	return &AnalyzeResult{
		Version:       AnalyzeVersion,
		SourceURL:     rawURL,
		AnalyzedAt:    analyzedAt,
		PrimaryPost:   toPrimary(primary),
		Analysis:      cls,
		FollowActions: BuildFollowActions(primary.AuthorHandle, cls.Topic),
		Recommendations: Recommendations{
			SimilarPeople:  people,
			TopicsToFollow: topics,
			Creator:        creator,
		},
		Internal: AnalyzeInternal{
			PostID:       primary.ID,
			AuthorHandle: primary.AuthorHandle,
			PrimaryText:  primary.Text,
			RelatedTexts: relatedTexts,
		},
	}, nil
}

// Discover searches for topic and ranks the users, posts and articles
// found. Only an empty topic is rejected here; length limits belong to
// the caller.
func (e *Engine) Discover(ctx context.Context, topic string) (res *DiscoveryResult, err error) {
	defer func() { e.record("discover", err) }()

	rawTopic := strings.TrimSpace(topic)
	if rawTopic == "" {
		return nil, Errorf(CodeInvalidTopic, "Missing topic")
	}

	query := DiscoveryQuery(rawTopic)
	found, err := e.posts.Search(ctx, query, xapi.SearchOptions{Pages: DiscoveryPages, SortOrder: xapi.SortRelevancy})
	if err != nil {
		return nil, fromUpstream(err)
	}
	posts := model.Dedupe(found)
	if e.metrics != nil {
		e.metrics.CandidatePosts.WithLabelValues("discover").Observe(float64(len(posts)))
	}

	displayTopic := text.NormalizeTopic(rawTopic)
	result := &DiscoveryResult{
		Version:      DiscoverVersion,
		Topic:        displayTopic,
		Query:        query,
		DiscoveredAt: e.now().UnixMilli(),
		FollowActions: DiscoveryFollowActions{
			Topic: TopicAction{Topic: displayTopic, Query: rawTopic, URL: SearchURL(rawTopic)},
		},
		Results: DiscoveryResults{
			Users:    recommend.RankUsers(posts, rawTopic, recommend.DefaultDiscoveryLimit),
			Posts:    recommend.RankPosts(posts, recommend.DefaultDiscoveryLimit),
			Articles: recommend.RankArticles(posts, rawTopic, recommend.DefaultDiscoveryLimit),
		},
		Internal: DiscoveryInternal{RawTopic: rawTopic, CandidatePostCount: len(posts)},
	}

	logging.Info("discovery complete",
		"topic", rawTopic, "posts", len(posts), "users", len(result.Results.Users),
		"articles", len(result.Results.Articles))
	return result, nil
}

// Share fetches the post at rawURL without analyzing it.
func (e *Engine) Share(ctx context.Context, rawURL string) (res *ShareResult, err error) {
	defer func() { e.record("share", err) }()

	primary, err := e.fetchPrimary(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return &ShareResult{
		Version:     ShareVersion,
		SourceURL:   rawURL,
		SharedAt:    e.now().UnixMilli(),
		Topic:       SharedTopic,
		PrimaryPost: toPrimary(primary),
	}, nil
}

// DiscoveryQuery is the search query used for a discovery topic.
func DiscoveryQuery(topic string) string {
	return "(" + topic + ") -is:retweet -is:reply lang:en"
}

func (e *Engine) fetchPrimary(ctx context.Context, rawURL string) (model.Post, error) {
	id, ok := text.ExtractPostID(rawURL)
	if !ok {
		return model.Post{}, Errorf(CodeInvalidURL, "Invalid X post URL")
	}
	post, err := e.posts.FetchByID(ctx, id)
	if err != nil {
		return model.Post{}, fromUpstream(err)
	}
	return post, nil
}

func (e *Engine) record(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(CodeOf(err))
		logging.Warn(kind+" failed", "code", outcome, "error", err)
	}
	if e.metrics != nil {
		e.metrics.Runs.WithLabelValues(kind, outcome).Inc()
	}
}

func toPrimary(p model.Post) PrimaryPost {
	return PrimaryPost{
		ID:              p.ID,
		Handle:          p.AuthorHandle,
		Name:            p.AuthorDisplayName,
		ProfileImageURL: p.ProfileImageURL,
		Verified:        p.Verified,
		Text:            p.Text,
		Permalink:       p.Permalink,
	}
}
