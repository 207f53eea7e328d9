package recommend

import (
	"fmt"
	"math"
	"strings"

	"github.com/abelbrown/rabbitbrain/internal/model"
	"github.com/abelbrown/rabbitbrain/internal/text"
)

// Discovery tunables. Post scores are log-damped so one viral post cannot
// drown out steady engagement.
const (
	likeWeight    = 8.0
	repostWeight  = 12.0
	replyWeight   = 5.0
	quoteWeight   = 6.0
	userPostBonus = 4.0
	userFollowers = 6.0
	userVerified  = 8.0
	articleBonus  = 5.0
)

// RankedPost is a discovered post with its score.
type RankedPost struct {
	ID              string        `json:"id"`
	Permalink       string        `json:"permalink"`
	Handle          string        `json:"handle"`
	Name            string        `json:"name"`
	ProfileImageURL string        `json:"profileImageUrl,omitempty"`
	Verified        bool          `json:"verified"`
	Text            string        `json:"text"`
	Engagement      model.Metrics `json:"engagement"`
	Score           float64       `json:"score"`
}

// EvidencePost is one of a discovered user's best posts.
type EvidencePost struct {
	ID         string        `json:"id"`
	Permalink  string        `json:"permalink"`
	Text       string        `json:"text"`
	Engagement model.Metrics `json:"engagement"`
	Score      float64       `json:"score"`
}

// RankedUser is a discovered account.
type RankedUser struct {
	Handle          string         `json:"handle"`
	Name            string         `json:"name"`
	ProfileImageURL string         `json:"profileImageUrl,omitempty"`
	Verified        bool           `json:"verified"`
	FollowerCount   int            `json:"followerCount"`
	Score           float64        `json:"score"`
	PostCount       int            `json:"postCount"`
	MetricsTotal    model.Metrics  `json:"metricsTotal"`
	EvidencePosts   []EvidencePost `json:"evidencePosts"`
	Reason          string         `json:"reason"`
}

// RankedArticle is an off-platform link shared by discovered posts.
type RankedArticle struct {
	URL    string  `json:"url"`
	Domain string  `json:"domain"`
	Count  int     `json:"count"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// ScorePost is the log-damped engagement score of a post, rounded to two
// decimals.
func ScorePost(m model.Metrics) float64 {
	s := math.Log10(1+float64(m.Likes))*likeWeight +
		math.Log10(1+float64(m.Reposts))*repostWeight +
		math.Log10(1+float64(m.Replies))*replyWeight +
		math.Log10(1+float64(m.Quotes))*quoteWeight
	return round2(s)
}

// RankPosts returns the best posts by ScorePost.
func RankPosts(posts []model.Post, limit int) []RankedPost {
	items := make([]*RankedPost, 0, len(posts))
	for _, p := range posts {
		items = append(items, &RankedPost{
			ID:              p.ID,
			Permalink:       p.Permalink,
			Handle:          p.AuthorHandle,
			Name:            p.AuthorDisplayName,
			ProfileImageURL: p.ProfileImageURL,
			Verified:        p.Verified,
			Text:            p.Text,
			Engagement:      p.Engagement,
			Score:           ScorePost(p.Engagement),
		})
	}

	ranked := sortedByScore(items, func(r *RankedPost) float64 { return r.Score }, limit)
	out := make([]RankedPost, len(ranked))
	for i, r := range ranked {
		out[i] = *r
	}
	return out
}

type userAgg struct {
	user       RankedUser
	engagement float64
}

func (u *userAgg) pushEvidence(e EvidencePost) {
	ev := append(u.user.EvidencePosts, e)
	sortedEv := sortedByScore(pointers(ev), func(p *EvidencePost) float64 { return p.Score }, EvidenceLimit)
	u.user.EvidencePosts = values(sortedEv)
}

// RankUsers groups posts by author and ranks authors by summed post score,
// post count, reach and verification. topic only feeds the reason text.
func RankUsers(posts []model.Post, topic string, limit int) []RankedUser {
	table := newOrdered[userAgg]()
	for _, p := range posts {
		if !p.HasKnownAuthor() {
			continue
		}
		agg := table.get(strings.ToLower(p.AuthorHandle), func() *userAgg {
			return &userAgg{user: RankedUser{
				Handle:          p.AuthorHandle,
				Name:            p.AuthorDisplayName,
				ProfileImageURL: p.ProfileImageURL,
			}}
		})

		score := ScorePost(p.Engagement)
		agg.user.PostCount++
		agg.engagement += score
		agg.user.MetricsTotal = agg.user.MetricsTotal.Add(p.Engagement)
		agg.pushEvidence(EvidencePost{
			ID:         p.ID,
			Permalink:  p.Permalink,
			Text:       p.Text,
			Engagement: p.Engagement,
			Score:      score,
		})
		if p.FollowerCount > agg.user.FollowerCount {
			agg.user.FollowerCount = p.FollowerCount
		}
		if agg.user.ProfileImageURL == "" {
			agg.user.ProfileImageURL = p.ProfileImageURL
		}
		agg.user.Verified = agg.user.Verified || p.Verified
	}

	for _, agg := range table.items {
		followers := math.Max(10, float64(agg.user.FollowerCount))
		score := agg.engagement +
			float64(agg.user.PostCount)*userPostBonus +
			math.Log10(followers)*userFollowers
		if agg.user.Verified {
			score += userVerified
		}
		agg.user.Score = round2(score)
		agg.user.Reason = fmt.Sprintf("High engagement across %d posts about %q.", agg.user.PostCount, topic)
	}

	ranked := sortedByScore(table.items, func(a *userAgg) float64 { return a.user.Score }, limit)
	out := make([]RankedUser, len(ranked))
	for i, agg := range ranked {
		out[i] = agg.user
	}
	return out
}

type articleAgg struct {
	url    string
	domain string
	count  int
	score  float64
}

// RankArticles ranks off-platform URLs attached to posts by the summed
// score of the posts linking them plus a bonus per reference.
func RankArticles(posts []model.Post, topic string, limit int) []RankedArticle {
	table := newOrdered[articleAgg]()
	for _, p := range posts {
		score := ScorePost(p.Engagement)
		for _, u := range p.URLs {
			if !text.IsLikelyArticleURL(u) {
				continue
			}
			agg := table.get(u, func() *articleAgg {
				return &articleAgg{url: u, domain: text.Hostname(u)}
			})
			agg.count++
			agg.score += score
		}
	}

	items := make([]*RankedArticle, 0, len(table.items))
	for _, agg := range table.items {
		items = append(items, &RankedArticle{
			URL:    agg.url,
			Domain: agg.domain,
			Count:  agg.count,
			Score:  round2(agg.score + float64(agg.count)*articleBonus),
			Reason: fmt.Sprintf("Linked by %d posts found for %q.", agg.count, topic),
		})
	}

	ranked := sortedByScore(items, func(a *RankedArticle) float64 { return a.Score }, limit)
	return values(ranked)
}

func pointers[T any](in []T) []*T {
	out := make([]*T, len(in))
	for i := range in {
		out[i] = &in[i]
	}
	return out
}

func values[T any](in []*T) []T {
	out := make([]T, len(in))
	for i, p := range in {
		out[i] = *p
	}
	return out
}
