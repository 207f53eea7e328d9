package recommend

import (
	"math"

	"github.com/abelbrown/rabbitbrain/internal/model"
)

// Creator tunables.
const (
	creatorLikesDivisor  = 15.0
	creatorRepostDivisor = 8.0
	creatorFollowerScale = 8.0
	creatorVerifiedBonus = 10.0
	maxImpact            = 100.0

	// FollowThreshold is the impact score at which following is advised.
	FollowThreshold = 25.0
)

// CreatorAnalysis scores the primary author from engagement on the primary
// post plus their related posts, their reach and verification.
func CreatorAnalysis(primary model.Post, related []model.Post) Creator {
	likes := primary.Engagement.Likes
	reposts := primary.Engagement.Reposts
	for _, p := range related {
		if p.AuthorHandle != "" && p.SameAuthor(primary.AuthorHandle) {
			likes += p.Engagement.Likes
			reposts += p.Engagement.Reposts
		}
	}

	followers := float64(primary.FollowerCount)
	if followers < 10 {
		followers = 10
	}

	score := float64(likes)/creatorLikesDivisor +
		float64(reposts)/creatorRepostDivisor +
		math.Log10(followers)*creatorFollowerScale
	if primary.Verified {
		score += creatorVerifiedBonus
	}
	score = math.Min(maxImpact, round2(score))

	c := Creator{
		Handle:       primary.AuthorHandle,
		ImpactScore:  score,
		ShouldFollow: score >= FollowThreshold,
	}
	if c.ShouldFollow {
		c.Reason = "Creator shows sustained engagement on this topic and is worth following."
	} else {
		c.Reason = "Creator impact is currently moderate; monitor topic evolution before following."
	}
	return c
}
