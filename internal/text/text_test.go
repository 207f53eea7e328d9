package text

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want []string
	}{
		{
			name: "insertion order on ties",
			in:   "We are shipping new AI agents for workflow automation",
			max:  8,
			want: []string{"shipping", "agents", "workflow", "automation"},
		},
		{
			name: "frequency first",
			in:   "python rust golang golang rust RUST",
			max:  10,
			want: []string{"rust", "golang", "python"},
		},
		{
			name: "capped",
			in:   "alpha bravo charlie delta",
			max:  2,
			want: []string{"alpha", "bravo"},
		},
		{
			name: "urls and punctuation stripped",
			in:   "Read https://example.com/very-long-path now: compilers, compilers!",
			max:  5,
			want: []string{"compilers", "read"},
		},
		{
			name: "empty",
			in:   "",
			max:  5,
			want: nil,
		},
		{
			name: "zero max",
			in:   "compilers",
			max:  0,
			want: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractKeywords(tc.in, tc.max)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ExtractKeywords(%q, %d) mismatch (-want +got):\n%s", tc.in, tc.max, diff)
			}
		})
	}
}

func TestExtractKeywordsProperties(t *testing.T) {
	input := "The quick brown fox jumps over the lazy dog while https://t.co/xyz THIS that WITH tooling tooling"
	for _, n := range []int{1, 3, 20} {
		got := ExtractKeywords(input, n)
		if len(got) > n {
			t.Errorf("len(ExtractKeywords(_, %d)) = %d", n, len(got))
		}
		for _, tok := range got {
			if len(tok) < 4 {
				t.Errorf("token %q shorter than 4 characters", tok)
			}
			if IsStopword(tok) {
				t.Errorf("stopword %q returned", tok)
			}
		}
	}

	upper := ExtractKeywords(strings.ToUpper(input), 20)
	lower := ExtractKeywords(strings.ToLower(input), 20)
	if diff := cmp.Diff(lower, upper); diff != "" {
		t.Errorf("keywords depend on case (-lower +upper):\n%s", diff)
	}
}

func TestOverlapScore(t *testing.T) {
	a := "Rust compilers are getting faster with incremental builds"
	b := "Incremental builds make rust compilers feel instant"
	c := "Gardening tips for tomatoes"

	if got := OverlapScore(a, b); got != 4 {
		t.Errorf("OverlapScore(a, b) = %d, want 4", got)
	}
	if OverlapScore(a, b) != OverlapScore(b, a) {
		t.Error("OverlapScore is not symmetric")
	}
	if got := OverlapScore(a, c); got != 0 {
		t.Errorf("OverlapScore(a, c) = %d, want 0", got)
	}
	if got, want := OverlapScore(a, a), len(ExtractKeywords(a, OverlapTerms)); got != want {
		t.Errorf("OverlapScore(a, a) = %d, want %d", got, want)
	}
	if got := OverlapScore("", a); got != 0 {
		t.Errorf("OverlapScore with empty text = %d, want 0", got)
	}
}

func TestNormalizeTopic(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", GeneralTopic},
		{"!!!", GeneralTopic},
		{"prompt engineering techniques", "Prompt Engineering"},
		{"  ai   AGENTS ", "Ai Agents"},
		{"#rustLang", "Rustlang"},
		{"go-to-market", "Go To"},
	}
	for _, tc := range tests {
		if got := NormalizeTopic(tc.in); got != tc.want {
			t.Errorf("NormalizeTopic(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFallbackTopic(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"We are shipping new AI agents for workflow automation", "AI Agents"},
		{"Prompts that survive long context windows", "Prompt Engineering"},
		{"New benchmark numbers are out", "Model Evaluation"},
		{"Our positioning against incumbents", "Product Strategy"},
		{"A tiny SDK for edge functions", "Developer Tools"},
		{"Fixing the signup funnel", "Growth Marketing"},
		{"quantum computing quantum chips", "Quantum Computing"},
		{"the and for", GeneralTopic},
	}
	for _, tc := range tests {
		if got := FallbackTopic(tc.in); got != tc.want {
			t.Errorf("FallbackTopic(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFallbackSummary(t *testing.T) {
	got := FallbackSummary("AI Agents")
	if !strings.Contains(got, "ai agents") {
		t.Errorf("FallbackSummary = %q, want lowercased topic", got)
	}
}

func TestExtractMentions(t *testing.T) {
	got := ExtractMentions("thanks @alice and @bob_2, cc @alice again")
	want := []string{"alice", "bob_2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ExtractMentions mismatch (-want +got):\n%s", diff)
	}
	if got := ExtractMentions("no handles here"); len(got) != 0 {
		t.Errorf("ExtractMentions = %v, want empty", got)
	}
}

func TestExtractPostID(t *testing.T) {
	tests := []struct {
		in     string
		wantID string
		wantOK bool
	}{
		{"https://x.com/someone/status/1234567890", "1234567890", true},
		{"  https://twitter.com/a_b/status/99?s=20  ", "99", true},
		{"https://X.COM/User/STATUS/5", "5", true},
		{"https://x.com/someone", "", false},
		{"not a url", "", false},
	}
	for _, tc := range tests {
		id, ok := ExtractPostID(tc.in)
		if id != tc.wantID || ok != tc.wantOK {
			t.Errorf("ExtractPostID(%q) = (%q, %v), want (%q, %v)", tc.in, id, ok, tc.wantID, tc.wantOK)
		}
	}
}

func TestHostnameAndArticleURL(t *testing.T) {
	if got := Hostname("https://www.Example.com/a?b=c"); got != "example.com" {
		t.Errorf("Hostname = %q, want example.com", got)
	}
	if got := Hostname("::not-a-url"); got != "" {
		t.Errorf("Hostname of garbage = %q, want empty", got)
	}

	tests := []struct {
		in   string
		want bool
	}{
		{"https://blog.rust-lang.org/2024/post", true},
		{"https://x.com/someone/status/1", false},
		{"https://twitter.com/someone", false},
		{"https://api.x.com/2/tweets", false},
		{"not a url", false},
	}
	for _, tc := range tests {
		if got := IsLikelyArticleURL(tc.in); got != tc.want {
			t.Errorf("IsLikelyArticleURL(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
