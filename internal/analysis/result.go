package analysis

import (
	"github.com/abelbrown/rabbitbrain/internal/brain"
	"github.com/abelbrown/rabbitbrain/internal/recommend"
)

// Output format versions.
const (
	AnalyzeVersion  = "2"
	DiscoverVersion = "1"
	ShareVersion    = "1"
)

// SharedTopic labels posts recorded through Share.
const SharedTopic = "Shared Post"

// PrimaryPost is the analyzed post as presented to callers.
type PrimaryPost struct {
	ID              string `json:"id"`
	Handle          string `json:"handle"`
	Name            string `json:"name"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
	Verified        bool   `json:"verified"`
	Text            string `json:"text"`
	Permalink       string `json:"permalink"`
}

// Recommendations groups the per-post recommendation lists.
type Recommendations struct {
	SimilarPeople  []recommend.Person `json:"similarPeople"`
	TopicsToFollow []recommend.Topic  `json:"topicsToFollow"`
	Creator        recommend.Creator  `json:"creator"`
}

// AnalyzeInternal carries the raw material behind an analysis, kept for
// persistence and debugging.
type AnalyzeInternal struct {
	PostID       string   `json:"postId"`
	AuthorHandle string   `json:"authorHandle"`
	PrimaryText  string   `json:"primaryText"`
	RelatedTexts []string `json:"relatedTexts"`
}

// AnalyzeResult is the outcome of analyzing one post.
type AnalyzeResult struct {
	Version         string               `json:"version"`
	SourceURL       string               `json:"sourceUrl"`
	AnalyzedAt      int64                `json:"analyzedAt"`
	PrimaryPost     PrimaryPost          `json:"primaryPost"`
	Analysis        brain.Classification `json:"analysis"`
	FollowActions   FollowActions        `json:"followActions"`
	Recommendations Recommendations      `json:"recommendations"`
	Internal        AnalyzeInternal      `json:"internal"`
}

// DiscoveryResults are the ranked discovery lists.
type DiscoveryResults struct {
	Users    []recommend.RankedUser    `json:"users"`
	Posts    []recommend.RankedPost    `json:"posts"`
	Articles []recommend.RankedArticle `json:"articles"`
}

// DiscoveryFollowActions links to a search for the discovered topic.
type DiscoveryFollowActions struct {
	Topic TopicAction `json:"topic"`
}

// DiscoveryInternal carries the raw inputs of a discovery.
type DiscoveryInternal struct {
	RawTopic           string `json:"rawTopic"`
	CandidatePostCount int    `json:"candidatePostCount"`
}

// DiscoveryResult is the outcome of discovering a topic.
type DiscoveryResult struct {
	Version       string                 `json:"version"`
	Topic         string                 `json:"topic"`
	Query         string                 `json:"query"`
	DiscoveredAt  int64                  `json:"discoveredAt"`
	FollowActions DiscoveryFollowActions `json:"followActions"`
	Results       DiscoveryResults       `json:"results"`
	Internal      DiscoveryInternal      `json:"internal"`
}

// ShareResult records a post without analyzing it.
type ShareResult struct {
	Version     string      `json:"version"`
	SourceURL   string      `json:"sourceUrl"`
	SharedAt    int64       `json:"sharedAt"`
	Topic       string      `json:"topic"`
	PrimaryPost PrimaryPost `json:"primaryPost"`
}
