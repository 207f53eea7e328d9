// Package ui renders pipeline results for the terminal.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/abelbrown/rabbitbrain/internal/analysis"
	"github.com/abelbrown/rabbitbrain/internal/model"
	"github.com/abelbrown/rabbitbrain/internal/store"
)

const (
	maxTextWidth  = 100
	maxSnippetLen = 140
)

// RenderAnalysis formats an analysis result.
func RenderAnalysis(res *analysis.AnalyzeResult) string {
	var b strings.Builder

	p := res.PrimaryPost
	b.WriteString(Banner.Render(res.Analysis.Topic))
	b.WriteString(" ")
	b.WriteString(Dim.Render(fmt.Sprintf("confidence %.2f · %s", res.Analysis.Confidence, res.Analysis.ModelLabel)))
	b.WriteString("\n")
	if res.Analysis.Degraded() {
		b.WriteString(Warning.Render("classifier unavailable, topic from keywords"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(author(p.Handle, p.Name, p.Verified))
	b.WriteString("\n")
	b.WriteString(Body.Width(maxTextWidth).Render(p.Text))
	b.WriteString("\n")
	b.WriteString(Muted.Render(p.Permalink))
	b.WriteString("\n")

	if res.Analysis.Summary != "" {
		b.WriteString(Title.Render("Summary"))
		b.WriteString("\n")
		b.WriteString(Body.Width(maxTextWidth).Render(res.Analysis.Summary))
		b.WriteString("\n")
	}

	rec := res.Recommendations
	b.WriteString(Title.Render("Creator"))
	b.WriteString("\n")
	verdict := "skip"
	if rec.Creator.ShouldFollow {
		verdict = "follow"
	}
	fmt.Fprintf(&b, "  %s %s %s\n", Handle.Render("@"+rec.Creator.Handle), Score.Render(fmt.Sprintf("%.2f", rec.Creator.ImpactScore)), Badge.Render(verdict))
	b.WriteString("  " + Muted.Render(rec.Creator.Reason) + "\n")

	if len(rec.SimilarPeople) > 0 {
		b.WriteString(Title.Render("Similar people"))
		b.WriteString("\n")
		for _, person := range rec.SimilarPeople {
			fmt.Fprintf(&b, "  %s %s\n", Handle.Render("@"+person.Handle), Score.Render(fmt.Sprintf("%.2f", person.Score)))
			b.WriteString("    " + Muted.Render(person.Reason) + "\n")
		}
	}

	if len(rec.TopicsToFollow) > 0 {
		b.WriteString(Title.Render("Topics to follow"))
		b.WriteString("\n")
		for _, t := range rec.TopicsToFollow {
			fmt.Fprintf(&b, "  %s %s %s\n", t.Topic, Score.Render(fmt.Sprintf("%.2f", t.Score)), Muted.Render(t.Reason))
		}
	}

	fa := res.FollowActions
	b.WriteString(Title.Render("Follow"))
	b.WriteString("\n")
	b.WriteString("  topic   " + Muted.Render(fa.TopicSearchURL) + "\n")
	b.WriteString("  author  " + Muted.Render(fa.AuthorFollowURL) + "\n")
	b.WriteString("  both    " + Muted.Render(fa.AuthorTopicSearchURL) + "\n")

	return b.String()
}

// RenderDiscovery formats a discovery result.
func RenderDiscovery(res *analysis.DiscoveryResult) string {
	var b strings.Builder

	b.WriteString(Banner.Render(res.Topic))
	b.WriteString(" ")
	b.WriteString(Dim.Render(fmt.Sprintf("%s posts scanned", humanize.Comma(int64(res.Internal.CandidatePostCount)))))
	b.WriteString("\n")

	r := res.Results
	if len(r.Users) == 0 && len(r.Posts) == 0 && len(r.Articles) == 0 {
		b.WriteString(Muted.Render("No results."))
		b.WriteString("\n")
		return b.String()
	}

	if len(r.Users) > 0 {
		b.WriteString(Title.Render("People"))
		b.WriteString("\n")
		for i, u := range r.Users {
			fmt.Fprintf(&b, "%2d. %s %s %s\n", i+1, author(u.Handle, u.Name, u.Verified),
				Score.Render(fmt.Sprintf("%.2f", u.Score)),
				Dim.Render(humanize.Comma(int64(u.FollowerCount))+" followers"))
			b.WriteString("    " + Muted.Render(u.Reason) + "\n")
		}
	}

	if len(r.Posts) > 0 {
		b.WriteString(Title.Render("Posts"))
		b.WriteString("\n")
		for i, p := range r.Posts {
			fmt.Fprintf(&b, "%2d. %s %s %s\n", i+1, Handle.Render("@"+p.Handle),
				Score.Render(fmt.Sprintf("%.2f", p.Score)), Dim.Render(engagement(p.Engagement)))
			b.WriteString("    " + snippet(p.Text) + "\n")
			b.WriteString("    " + Muted.Render(p.Permalink) + "\n")
		}
	}

	if len(r.Articles) > 0 {
		b.WriteString(Title.Render("Articles"))
		b.WriteString("\n")
		for i, a := range r.Articles {
			fmt.Fprintf(&b, "%2d. %s %s\n", i+1, a.Domain, Score.Render(fmt.Sprintf("%.2f", a.Score)))
			b.WriteString("    " + Muted.Render(a.URL) + "\n")
		}
	}

	b.WriteString(Title.Render("Follow"))
	b.WriteString("\n")
	b.WriteString("  " + Muted.Render(res.FollowActions.Topic.URL) + "\n")
	return b.String()
}

// RenderShare formats a share result.
func RenderShare(res *analysis.ShareResult) string {
	var b strings.Builder
	p := res.PrimaryPost
	b.WriteString(Banner.Render(res.Topic))
	b.WriteString("\n")
	b.WriteString(author(p.Handle, p.Name, p.Verified))
	b.WriteString("\n")
	b.WriteString(Body.Width(maxTextWidth).Render(p.Text))
	b.WriteString("\n")
	b.WriteString(Muted.Render(p.Permalink))
	b.WriteString("\n")
	return b.String()
}

// RenderHistory formats saved records relative to now. total is the
// caller's full record count, shown when records is a truncated page.
func RenderHistory(records []store.Record, total int, now time.Time) string {
	if len(records) == 0 {
		return Muted.Render("No history yet.") + "\n"
	}
	var b strings.Builder
	for _, r := range records {
		when := humanize.RelTime(r.CreatedAt, now, "ago", "from now")
		line := fmt.Sprintf("%s %s", Badge.Render(r.Kind), r.Topic)
		if r.AuthorHandle != "" {
			line += " " + Handle.Render("@"+r.AuthorHandle)
		}
		fmt.Fprintf(&b, "%s %s\n", line, Dim.Render(when))
		fmt.Fprintf(&b, "  %s", Dim.Render(r.ID))
		if r.SourceURL != "" {
			b.WriteString(" " + Muted.Render(r.SourceURL))
		}
		b.WriteString("\n")
	}
	if total > len(records) {
		fmt.Fprintf(&b, "%s\n", Muted.Render(fmt.Sprintf("showing %d of %s records", len(records), humanize.Comma(int64(total)))))
	}
	return b.String()
}

// RenderError formats a failure with its code.
func RenderError(err error) string {
	return ErrorStyle.Render(fmt.Sprintf("%s: %v", analysis.CodeOf(err), err))
}

func author(handle, name string, verified bool) string {
	s := Handle.Render("@" + handle)
	if name != "" && name != handle {
		s += " " + name
	}
	if verified {
		s += " " + Badge.Render("verified")
	}
	return s
}

func engagement(m model.Metrics) string {
	return fmt.Sprintf("♥ %s  ⟲ %s  ↩ %s", compact(m.Likes), compact(m.Reposts), compact(m.Replies))
}

// compact renders 1500 as "1.5k".
func compact(n int) string {
	return strings.ReplaceAll(humanize.SIWithDigits(float64(n), 1, ""), " ", "")
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= maxSnippetLen {
		return s
	}
	return string(r[:maxSnippetLen-1]) + "…"
}
