package xapi

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/abelbrown/rabbitbrain/internal/model"
)

// apiResponse is the shared envelope of the lookup and search endpoints.
// Data is either a single object (lookup) or an array (search).
type apiResponse struct {
	Data     json.RawMessage `json:"data"`
	Includes struct {
		Users []apiUser `json:"users"`
	} `json:"includes"`
	Meta struct {
		NextToken   string `json:"next_token"`
		ResultCount int    `json:"result_count"`
	} `json:"meta"`
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

type apiPost struct {
	ID             string `json:"id"`
	Text           string `json:"text"`
	AuthorID       string `json:"author_id"`
	CreatedAt      string `json:"created_at"`
	ConversationID string `json:"conversation_id"`
	PublicMetrics  struct {
		LikeCount       int `json:"like_count"`
		RetweetCount    int `json:"retweet_count"`
		ReplyCount      int `json:"reply_count"`
		QuoteCount      int `json:"quote_count"`
		ImpressionCount int `json:"impression_count"`
		BookmarkCount   int `json:"bookmark_count"`
	} `json:"public_metrics"`
	Entities struct {
		URLs []struct {
			ExpandedURL string `json:"expanded_url"`
		} `json:"urls"`
		Mentions []struct {
			Username string `json:"username"`
		} `json:"mentions"`
		Hashtags []struct {
			Tag string `json:"tag"`
		} `json:"hashtags"`
	} `json:"entities"`
}

type apiUser struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Name            string `json:"name"`
	ProfileImageURL string `json:"profile_image_url"`
	Verified        bool   `json:"verified"`
	PublicMetrics   struct {
		FollowersCount int `json:"followers_count"`
	} `json:"public_metrics"`
}

func (r *apiResponse) decode(body []byte) error {
	return json.Unmarshal(body, r)
}

// rawPosts resolves the single-vs-array ambiguity of Data. A missing or
// null data field means no posts.
func (r *apiResponse) rawPosts() ([]apiPost, error) {
	data := bytes.TrimSpace(r.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	switch data[0] {
	case '[':
		var posts []apiPost
		if err := json.Unmarshal(data, &posts); err != nil {
			return nil, fmt.Errorf("decode data array: %w", err)
		}
		return posts, nil
	case '{':
		var post apiPost
		if err := json.Unmarshal(data, &post); err != nil {
			return nil, fmt.Errorf("decode data object: %w", err)
		}
		return []apiPost{post}, nil
	default:
		return nil, fmt.Errorf("unexpected data shape starting with %q", data[0])
	}
}

// posts flattens data + includes into model posts. Authors missing from
// includes get the UnknownHandle placeholder.
func (r *apiResponse) posts() ([]model.Post, error) {
	raw, err := r.rawPosts()
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	users := make(map[string]apiUser, len(r.Includes.Users))
	for _, u := range r.Includes.Users {
		if u.ID != "" {
			users[u.ID] = u
		}
	}

	out := make([]model.Post, 0, len(raw))
	for _, p := range raw {
		out = append(out, toPost(p, users))
	}
	return out, nil
}

func toPost(p apiPost, users map[string]apiUser) model.Post {
	handle, name := model.UnknownHandle, model.UnknownHandle
	var user apiUser
	if u, ok := users[p.AuthorID]; ok {
		user = u
		if u.Username != "" {
			handle = u.Username
		}
		if u.Name != "" {
			name = u.Name
		}
	}

	post := model.Post{
		ID:                p.ID,
		Text:              p.Text,
		AuthorID:          p.AuthorID,
		AuthorHandle:      handle,
		AuthorDisplayName: name,
		ProfileImageURL:   user.ProfileImageURL,
		FollowerCount:     user.PublicMetrics.FollowersCount,
		Verified:          user.Verified,
		Engagement: model.Metrics{
			Likes:       p.PublicMetrics.LikeCount,
			Reposts:     p.PublicMetrics.RetweetCount,
			Replies:     p.PublicMetrics.ReplyCount,
			Quotes:      p.PublicMetrics.QuoteCount,
			Impressions: p.PublicMetrics.ImpressionCount,
			Bookmarks:   p.PublicMetrics.BookmarkCount,
		},
		Permalink:      model.Permalink(handle, p.ID),
		CreatedAt:      p.CreatedAt,
		ConversationID: p.ConversationID,
	}

	for _, u := range p.Entities.URLs {
		if u.ExpandedURL != "" {
			post.URLs = append(post.URLs, u.ExpandedURL)
		}
	}
	for _, m := range p.Entities.Mentions {
		if m.Username != "" {
			post.MentionedHandles = append(post.MentionedHandles, m.Username)
		}
	}
	for _, h := range p.Entities.Hashtags {
		if h.Tag != "" {
			post.Hashtags = append(post.Hashtags, h.Tag)
		}
	}
	return post
}
