package text

import (
	"regexp"
	"strings"
)

// GeneralTopic is returned when no usable topic can be derived.
const GeneralTopic = "General Learning"

var nonAlnumMixedPattern = regexp.MustCompile(`[^a-zA-Z0-9\s]`)

// NormalizeTopic strips punctuation, keeps the first two words and title
// cases them. Empty input yields GeneralTopic.
func NormalizeTopic(raw string) string {
	cleaned := nonAlnumMixedPattern.ReplaceAllString(raw, " ")
	words := strings.Fields(cleaned)
	if len(words) == 0 {
		return GeneralTopic
	}
	if len(words) > 2 {
		words = words[:2]
	}
	for i, w := range words {
		words[i] = titleWord(w)
	}
	return strings.Join(words, " ")
}

func titleWord(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
}

type topicRule struct {
	topic    string
	patterns []*regexp.Regexp
}

func rule(topic string, patterns ...string) topicRule {
	r := topicRule{topic: topic}
	for _, p := range patterns {
		r.patterns = append(r.patterns, regexp.MustCompile(`(?i)`+p))
	}
	return r
}

// topicRules are checked in order; the first rule with any matching
// pattern names the topic.
var topicRules = []topicRule{
	rule("AI Agents", `\bagent(s)?\b`, `workflow`, `autonom`),
	rule("Prompt Engineering", `\bprompt(s)?\b`, `instruction`, `context window`),
	rule("Model Evaluation", `benchmark`, `eval(s|uation)?`, `leaderboard`),
	rule("Product Strategy", `go-to-market`, `positioning`, `strategy`),
	rule("Developer Tools", `sdk`, `framework`, `library`, `tooling`),
	rule("Growth Marketing", `funnel`, `acquisition`, `retention`, `conversion`),
}

// FallbackTopic labels s without a model: first matching topic rule, else
// the top two keywords, else GeneralTopic.
func FallbackTopic(s string) string {
	for _, r := range topicRules {
		for _, p := range r.patterns {
			if p.MatchString(s) {
				return r.topic
			}
		}
	}

	tokens := ExtractKeywords(s, 2)
	if len(tokens) == 0 {
		return GeneralTopic
	}
	return NormalizeTopic(strings.Join(tokens, " "))
}

// FallbackSummary is the one-sentence summary paired with a fallback topic.
func FallbackSummary(topic string) string {
	return "This post is mainly about " + strings.ToLower(topic) +
		" and practical takeaways from current discussion on X."
}
