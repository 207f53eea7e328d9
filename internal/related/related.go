// Package related assembles the posts that give context to a primary post:
// what its author has been saying recently and what others say about the
// same keywords.
package related

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/rabbitbrain/internal/logging"
	"github.com/abelbrown/rabbitbrain/internal/model"
	"github.com/abelbrown/rabbitbrain/internal/text"
	"github.com/abelbrown/rabbitbrain/internal/xapi"
)

// Tunables. These were fitted by hand and have no deeper derivation.
const (
	QueryTerms   = 4  // keywords used to build the topic query
	MinOverlap   = 2  // overlap required for posts by other authors
	Limit        = 10 // posts returned
	likesWeight  = 30.0
	repostWeight = 20.0
)

// Searcher is the retrieval contract the assembler needs.
type Searcher interface {
	Search(ctx context.Context, query string, opts xapi.SearchOptions) ([]model.Post, error)
}

// Queries holds the two searches issued for a primary post.
type Queries struct {
	Author string
	Topic  string
}

// BuildQueries derives the author-scoped and topic-scoped queries. With no
// usable keywords the author handle stands in for the token query.
func BuildQueries(primary model.Post) Queries {
	tokenQuery := primary.AuthorHandle
	if kw := text.ExtractKeywords(primary.Text, QueryTerms); len(kw) > 0 {
		tokenQuery = "(" + strings.Join(kw, " OR ") + ")"
	}
	return Queries{
		Author: "from:" + primary.AuthorHandle + " " + tokenQuery + " -is:retweet -is:reply",
		Topic:  tokenQuery + " -is:retweet -is:reply lang:en",
	}
}

// Find runs both searches concurrently and returns at most Limit related
// posts, best first. Either search failing fails the whole call.
func Find(ctx context.Context, s Searcher, primary model.Post) ([]model.Post, error) {
	q := BuildQueries(primary)

	var authorPosts, topicPosts []model.Post
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		authorPosts, err = s.Search(gctx, q.Author, xapi.SearchOptions{Pages: 1, SortOrder: xapi.SortRecency})
		return err
	})
	g.Go(func() error {
		var err error
		topicPosts, err = s.Search(gctx, q.Topic, xapi.SearchOptions{Pages: 1, SortOrder: xapi.SortRelevancy})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	combined := make([]model.Post, 0, len(authorPosts)+len(topicPosts))
	combined = append(combined, authorPosts...)
	combined = append(combined, topicPosts...)

	posts := Rank(primary, model.Dedupe(combined))
	logging.Debug("related posts assembled",
		"post", primary.ID, "author_results", len(authorPosts), "topic_results", len(topicPosts), "kept", len(posts))
	return posts, nil
}

type scored struct {
	post  model.Post
	score float64
}

// Rank filters candidates against primary and orders the survivors by
// overlap plus engagement. Same-author posts are kept regardless of
// overlap; the primary itself is always dropped. Ties keep input order.
func Rank(primary model.Post, candidates []model.Post) []model.Post {
	var kept []scored
	for _, p := range candidates {
		if p.ID == primary.ID {
			continue
		}
		overlap := text.OverlapScore(primary.Text, p.Text)
		if !p.SameAuthor(primary.AuthorHandle) && overlap < MinOverlap {
			continue
		}
		kept = append(kept, scored{
			post:  p,
			score: float64(overlap) + float64(p.Engagement.Likes)/likesWeight + float64(p.Engagement.Reposts)/repostWeight,
		})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].score > kept[j].score
	})
	if len(kept) > Limit {
		kept = kept[:Limit]
	}

	out := make([]model.Post, len(kept))
	for i, s := range kept {
		out[i] = s.post
	}
	return out
}
