// Package model provides the post types shared by retrieval, ranking and
// classification.
//
// A Post is constructed once by the retrieval layer and never mutated
// afterwards. Ranking code copies what it needs into its own aggregates.
package model

import "strings"

// UnknownHandle is the placeholder handle for posts whose author could not
// be resolved from the provider's includes.
const UnknownHandle = "?"

// Metrics holds engagement counts. Absent upstream fields decode as zero.
type Metrics struct {
	Likes       int `json:"likes"`
	Reposts     int `json:"reposts"`
	Replies     int `json:"replies"`
	Quotes      int `json:"quotes"`
	Impressions int `json:"impressions"`
	Bookmarks   int `json:"bookmarks"`
}

// Add returns the element-wise sum of m and o.
func (m Metrics) Add(o Metrics) Metrics {
	return Metrics{
		Likes:       m.Likes + o.Likes,
		Reposts:     m.Reposts + o.Reposts,
		Replies:     m.Replies + o.Replies,
		Quotes:      m.Quotes + o.Quotes,
		Impressions: m.Impressions + o.Impressions,
		Bookmarks:   m.Bookmarks + o.Bookmarks,
	}
}

// Post is a single retrieved post with its author and entity metadata.
type Post struct {
	ID                string   `json:"id"`
	Text              string   `json:"text"`
	AuthorID          string   `json:"authorId,omitempty"`
	AuthorHandle      string   `json:"authorHandle"`
	AuthorDisplayName string   `json:"authorDisplayName"`
	ProfileImageURL   string   `json:"profileImageUrl,omitempty"`
	FollowerCount     int      `json:"authorFollowerCount"`
	Verified          bool     `json:"verified"`
	Engagement        Metrics  `json:"engagement"`
	URLs              []string `json:"urls,omitempty"`
	MentionedHandles  []string `json:"mentionedHandles,omitempty"`
	Hashtags          []string `json:"hashtags,omitempty"`
	Permalink         string   `json:"permalink"`
	CreatedAt         string   `json:"createdAt,omitempty"`
	ConversationID    string   `json:"conversationId,omitempty"`
}

// HasKnownAuthor reports whether the author handle was resolved.
func (p Post) HasKnownAuthor() bool {
	return p.AuthorHandle != "" && p.AuthorHandle != UnknownHandle
}

// SameAuthor compares author handles case-insensitively.
func (p Post) SameAuthor(handle string) bool {
	return strings.EqualFold(p.AuthorHandle, handle)
}

// Permalink builds the canonical post URL for a handle and post id.
func Permalink(handle, id string) string {
	if handle == "" {
		handle = UnknownHandle
	}
	return "https://x.com/" + handle + "/status/" + id
}

// Dedupe keeps the first occurrence of each post id, preserving the
// relative order of first occurrences. The input slice is not modified.
func Dedupe(posts []Post) []Post {
	seen := make(map[string]struct{}, len(posts))
	out := make([]Post, 0, len(posts))
	for _, p := range posts {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Texts returns the text of each post in order.
func Texts(posts []Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Text
	}
	return out
}
