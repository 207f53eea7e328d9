package text

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_]+)`)
	postURLPattern = regexp.MustCompile(`(?i)(?:x|twitter)\.com/[A-Za-z0-9_]+/status/(\d+)`)
)

// ExtractMentions returns the distinct @handles in s, without the @, in
// order of first appearance.
func ExtractMentions(s string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range mentionPattern.FindAllStringSubmatch(s, -1) {
		h := m[1]
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

// ExtractPostID pulls the numeric status id out of a post URL. The second
// return is false when raw is not a post URL.
func ExtractPostID(raw string) (string, bool) {
	m := postURLPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Hostname returns the lowercased host of raw without a leading "www.".
// Unparseable URLs yield "".
func Hostname(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// IsLikelyArticleURL reports whether raw points somewhere off-platform.
func IsLikelyArticleURL(raw string) bool {
	host := Hostname(raw)
	if host == "" {
		return false
	}
	return host != "x.com" && host != "twitter.com" && !strings.HasSuffix(host, ".x.com")
}
