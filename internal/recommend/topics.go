package recommend

import (
	"fmt"
	"strings"

	"github.com/abelbrown/rabbitbrain/internal/model"
	"github.com/abelbrown/rabbitbrain/internal/text"
)

// Topic tunables.
const (
	topicKeywordTerms = 6
	hashtagWeight     = 2.0
	keywordWeight     = 1.0
	minTopicCount     = 2
	minTopicScore     = 3.0

	// ClassifierTopicScore is the score given to the classifier's topic when
	// it has to be prepended to the list.
	ClassifierTopicScore = 5.0
)

type topicAgg struct {
	topic string
	score float64
	count int
}

// TopicsToFollow ranks topics seen across the primary post and its related
// posts. Hashtags always count. Keywords of related posts count only when
// the primary post shares them.
func TopicsToFollow(primary model.Post, related []model.Post, limit int) []Topic {
	primarySet := text.KeywordSet(primary.Text, primaryTerms)
	table := newOrdered[topicAgg]()

	bump := func(label string, weight float64) {
		topic := text.NormalizeTopic(label)
		if topic == text.GeneralTopic {
			return
		}
		agg := table.get(topic, func() *topicAgg { return &topicAgg{topic: topic} })
		agg.score += weight
		agg.count++
	}

	all := make([]model.Post, 0, len(related)+1)
	all = append(all, primary)
	all = append(all, related...)

	for _, p := range all {
		for _, tag := range p.Hashtags {
			bump(strings.TrimPrefix(tag, "#"), hashtagWeight)
		}
		isPrimary := p.ID == primary.ID
		for _, kw := range text.ExtractKeywords(p.Text, topicKeywordTerms) {
			if !isPrimary {
				if _, ok := primarySet[kw]; !ok {
					continue
				}
			}
			bump(kw, keywordWeight)
		}
	}

	var eligible []*topicAgg
	for _, agg := range table.items {
		if agg.count >= minTopicCount || agg.score >= minTopicScore {
			eligible = append(eligible, agg)
		}
	}

	ranked := sortedByScore(eligible, func(a *topicAgg) float64 { return a.score }, limit)
	out := make([]Topic, 0, len(ranked))
	for _, agg := range ranked {
		out = append(out, Topic{
			Topic:  agg.topic,
			Score:  round2(agg.score),
			Reason: fmt.Sprintf("Seen %d times in primary and related posts.", agg.count),
		})
	}
	return out
}

// EnsureTopic puts topic at the front of topics unless it is already listed
// (case-insensitive), then caps the list at limit.
func EnsureTopic(topics []Topic, topic string, limit int) []Topic {
	out := make([]Topic, 0, len(topics)+1)
	present := false
	for _, t := range topics {
		if strings.EqualFold(t.Topic, topic) {
			present = true
			break
		}
	}
	if !present {
		out = append(out, Topic{
			Topic:  topic,
			Score:  ClassifierTopicScore,
			Reason: "Primary post's core topic from classifier output.",
		})
	}
	out = append(out, topics...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
