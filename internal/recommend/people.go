package recommend

import (
	"strings"

	"github.com/abelbrown/rabbitbrain/internal/model"
	"github.com/abelbrown/rabbitbrain/internal/text"
)

// Similar-people tunables.
const (
	primaryTerms        = 12
	candidateTerms      = 10
	sharedTokenWeight   = 2.0
	peopleLikesDivisor  = 80.0
	peopleRepostDivisor = 50.0
	minPeopleOverlap    = 2
	minPeopleScore      = 4.0
	maxSharedTokens     = 3
	reasonTokens        = 2
)

const mentionReason = "Mentioned directly in the post as a likely relevant account."

type personAgg struct {
	handle  string
	name    string
	score   float64
	overlap int
	tokens  []string
}

func (p *personAgg) addTokens(shared []string) {
	for _, tok := range shared {
		if len(p.tokens) >= maxSharedTokens {
			return
		}
		dup := false
		for _, have := range p.tokens {
			if have == tok {
				dup = true
				break
			}
		}
		if !dup {
			p.tokens = append(p.tokens, tok)
		}
	}
}

// SimilarPeople ranks authors of related posts that keep writing about the
// primary post's keywords. The primary's own author and unresolved authors
// are never recommended.
func SimilarPeople(primary model.Post, related []model.Post, limit int) []Person {
	primarySet := text.KeywordSet(primary.Text, primaryTerms)
	table := newOrdered[personAgg]()

	for _, p := range related {
		if !p.HasKnownAuthor() || p.SameAuthor(primary.AuthorHandle) {
			continue
		}
		shared := text.Shared(text.ExtractKeywords(p.Text, candidateTerms), primarySet)
		if len(shared) == 0 {
			continue
		}

		agg := table.get(strings.ToLower(p.AuthorHandle), func() *personAgg {
			return &personAgg{handle: p.AuthorHandle, name: p.AuthorDisplayName}
		})
		agg.score += float64(len(shared))*sharedTokenWeight +
			float64(p.Engagement.Likes)/peopleLikesDivisor +
			float64(p.Engagement.Reposts)/peopleRepostDivisor
		agg.overlap += len(shared)
		agg.addTokens(shared)
	}

	var eligible []*personAgg
	for _, agg := range table.items {
		if agg.overlap >= minPeopleOverlap && agg.score >= minPeopleScore {
			eligible = append(eligible, agg)
		}
	}

	ranked := sortedByScore(eligible, func(a *personAgg) float64 { return a.score }, limit)
	out := make([]Person, 0, len(ranked))
	for _, agg := range ranked {
		out = append(out, Person{
			Handle: agg.handle,
			Name:   agg.name,
			Score:  round2(agg.score),
			Reason: peopleReason(agg.tokens),
		})
	}
	return out
}

func peopleReason(tokens []string) string {
	if len(tokens) > reasonTokens {
		tokens = tokens[:reasonTokens]
	}
	if len(tokens) == 0 {
		return "Posts repeatedly about this topic."
	}
	return "Posts repeatedly about " + strings.Join(tokens, " and ") + "."
}

// MentionFallback turns @handles in the primary post's text into
// low-confidence candidates, skipping the author's own handle.
func MentionFallback(primary model.Post, limit int) []Person {
	var out []Person
	for _, handle := range text.ExtractMentions(primary.Text) {
		if strings.EqualFold(handle, primary.AuthorHandle) {
			continue
		}
		if len(out) >= limit {
			break
		}
		out = append(out, Person{Handle: handle, Name: handle, Score: 1, Reason: mentionReason})
	}
	return out
}

// MergePeople appends fallback candidates whose handle is not already in
// ranked and caps the result at limit. Ranked candidates keep precedence.
func MergePeople(ranked, fallback []Person, limit int) []Person {
	out := make([]Person, 0, len(ranked)+len(fallback))
	out = append(out, ranked...)
	for _, cand := range fallback {
		present := false
		for _, have := range out {
			if strings.EqualFold(have.Handle, cand.Handle) {
				present = true
				break
			}
		}
		if !present {
			out = append(out, cand)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
