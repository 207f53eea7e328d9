package brain

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"

	"github.com/abelbrown/rabbitbrain/internal/logging"
	"github.com/abelbrown/rabbitbrain/internal/model"
	"github.com/abelbrown/rabbitbrain/internal/text"
)

// fallbackSuffix marks the model label of heuristic results.
const fallbackSuffix = "-fallback"

// Stages a classification can end in.
const (
	StageModel         = "model"
	StageNoKey         = "no_key"
	StageRequestFailed = "request_failed"
	StageUnparsable    = "unparsable"
)

// Confidence reported for each fallback stage and the default when the
// model omits one.
const (
	confidenceNoKey         = 0.45
	confidenceRequestFailed = 0.5
	confidenceUnparsable    = 0.55
	confidenceDefault       = 0.72

	contextPosts = 8
)

const classifierPrompt = `Analyze the primary X post and related context.
Return JSON with keys:
{"topic": string, "summary": string, "confidence": number}
Rules:
- topic must be one or two words, title case.
- summary must be one sentence for app integrators.
- confidence must be 0..1`

// Classification is a topic label for a post and its context.
type Classification struct {
	Topic      string  `json:"topic"`
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
	ModelLabel string  `json:"modelLabel"`

	// Stage records how the result was produced. Not serialized.
	Stage string `json:"-"`
}

// Degraded reports whether the local heuristic produced the result.
// Decoded results carry no stage, so the model label decides.
func (c Classification) Degraded() bool {
	if c.Stage == "" {
		return strings.HasSuffix(c.ModelLabel, fallbackSuffix)
	}
	return c.Stage != StageModel
}

// Classifier labels posts with a model, degrading to keyword heuristics
// whenever the model is unconfigured, unreachable or incoherent. It never
// returns an error.
type Classifier struct {
	provider Provider
	model    string
}

// NewClassifier wraps p. A nil p always uses the heuristic with the
// default model label.
func NewClassifier(p Provider) *Classifier {
	c := &Classifier{provider: p, model: DefaultGrokModel}
	if p != nil && p.Model() != "" {
		c.model = p.Model()
	}
	return c
}

type classifierInput struct {
	PrimaryPost  string   `json:"primaryPost"`
	RelatedPosts []string `json:"relatedPosts"`
}

type classifierOutput struct {
	Topic      *string  `json:"topic"`
	Summary    *string  `json:"summary"`
	AppAbout   *string  `json:"appAbout"`
	Confidence *float64 `json:"confidence"`
}

// Classify labels primary in the context of related.
func (c *Classifier) Classify(ctx context.Context, primary model.Post, related []model.Post) Classification {
	relatedTexts := model.Texts(related)
	allText := strings.Join(append([]string{primary.Text}, relatedTexts...), "\n\n")

	fallbackTopic := text.FallbackTopic(allText)
	fallbackSummary := text.FallbackSummary(fallbackTopic)
	fallback := func(stage string, confidence float64) Classification {
		return Classification{
			Topic:      fallbackTopic,
			Summary:    fallbackSummary,
			Confidence: confidence,
			ModelLabel: c.model + fallbackSuffix,
			Stage:      stage,
		}
	}

	if c.provider == nil || !c.provider.Available() {
		return fallback(StageNoKey, confidenceNoKey)
	}

	if len(relatedTexts) > contextPosts {
		relatedTexts = relatedTexts[:contextPosts]
	}
	if relatedTexts == nil {
		relatedTexts = []string{}
	}
	input, err := json.Marshal(classifierInput{PrimaryPost: primary.Text, RelatedPosts: relatedTexts})
	if err != nil {
		return fallback(StageRequestFailed, confidenceRequestFailed)
	}

	resp, err := c.provider.Generate(ctx, Request{
		SystemPrompt: classifierPrompt,
		UserPrompt:   string(input),
		Temperature:  0.1,
		JSONMode:     true,
	})
	if err != nil {
		if errors.Is(err, ErrMalformedResponse) {
			logging.Warn("classifier degraded", "provider", c.provider.Name(), "stage", StageUnparsable, "error", err)
			return fallback(StageUnparsable, confidenceUnparsable)
		}
		logging.Warn("classifier degraded", "provider", c.provider.Name(), "stage", StageRequestFailed, "error", err)
		return fallback(StageRequestFailed, confidenceRequestFailed)
	}

	out, err := parseOutput(resp.Content)
	if err != nil {
		logging.Warn("classifier degraded", "provider", c.provider.Name(), "stage", StageUnparsable, "error", err)
		return fallback(StageUnparsable, confidenceUnparsable)
	}

	topic := fallbackTopic
	if out.Topic != nil {
		topic = text.NormalizeTopic(*out.Topic)
	}

	summary := fallbackSummary
	switch {
	case out.Summary != nil && strings.TrimSpace(*out.Summary) != "":
		summary = strings.TrimSpace(*out.Summary)
	case out.AppAbout != nil && strings.TrimSpace(*out.AppAbout) != "":
		summary = strings.TrimSpace(*out.AppAbout)
	}

	confidence := confidenceDefault
	if out.Confidence != nil {
		confidence = clamp01(*out.Confidence)
	}

	return Classification{
		Topic:      topic,
		Summary:    summary,
		Confidence: confidence,
		ModelLabel: c.model,
		Stage:      StageModel,
	}
}

func parseOutput(content string) (classifierOutput, error) {
	var out classifierOutput
	content = strings.TrimSpace(content)
	if content == "" {
		return out, errors.New("missing content")
	}
	if !strings.HasPrefix(content, "{") {
		return out, errors.New("content is not a JSON object")
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return out, err
	}
	return out, nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
