package analysis

import (
	"net/url"
	"strings"
)

const platformURL = "https://x.com"

// TopicAction opens a search for a topic.
type TopicAction struct {
	Topic string `json:"topic"`
	Query string `json:"query"`
	URL   string `json:"url"`
}

// UserAction opens the follow intent for an account.
type UserAction struct {
	Handle string `json:"handle"`
	URL    string `json:"url"`
}

// UserTopicAction searches an account's posts about a topic.
type UserTopicAction struct {
	Handle string `json:"handle"`
	Topic  string `json:"topic"`
	Query  string `json:"query"`
	URL    string `json:"url"`
}

// FollowActions are the deep links offered with an analysis.
type FollowActions struct {
	Topic     TopicAction     `json:"topic"`
	User      UserAction      `json:"user"`
	UserTopic UserTopicAction `json:"userTopic"`

	TopicSearchURL       string `json:"topicSearchUrl"`
	AuthorFollowURL      string `json:"authorFollowUrl"`
	AuthorTopicSearchURL string `json:"authorTopicSearchUrl"`
}

// SearchURL is the platform search page for query.
func SearchURL(query string) string {
	return platformURL + "/search?q=" + escape(query) + "&src=typed_query"
}

// FollowIntentURL is the follow intent page for handle.
func FollowIntentURL(handle string) string {
	return platformURL + "/intent/follow?screen_name=" + escape(handle)
}

// escape percent-encodes s, spaces included.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// BuildFollowActions builds deep links for an author and topic. A leading
// "@" on handle is ignored. Empty inputs degrade to generic links.
func BuildFollowActions(handle, topic string) FollowActions {
	topic = strings.TrimSpace(topic)
	trimmedHandle := strings.TrimPrefix(strings.TrimSpace(handle), "@")

	topicQuery := topic
	if topicQuery == "" {
		topicQuery = "topic"
	}
	userTopicQuery := topicQuery
	if trimmedHandle != "" && topic != "" {
		userTopicQuery = "from:" + trimmedHandle + " " + topic
	}

	displayHandle := trimmedHandle
	if displayHandle == "" {
		displayHandle = handle
	}
	followURL := platformURL
	if trimmedHandle != "" {
		followURL = FollowIntentURL(trimmedHandle)
	}

	fa := FollowActions{
		Topic: TopicAction{Topic: topicQuery, Query: topicQuery, URL: SearchURL(topicQuery)},
		User:  UserAction{Handle: displayHandle, URL: followURL},
		UserTopic: UserTopicAction{
			Handle: displayHandle,
			Topic:  topicQuery,
			Query:  userTopicQuery,
			URL:    SearchURL(userTopicQuery),
		},
	}
	fa.TopicSearchURL = fa.Topic.URL
	fa.AuthorFollowURL = fa.User.URL
	fa.AuthorTopicSearchURL = fa.UserTopic.URL
	return fa
}
