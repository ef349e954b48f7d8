package models

import "strings"

var leadingArticles = []string{"the ", "an ", "a "}

// TrimLeadingArticle strips one leading English article ("the", "an", "a")
// so titles sort by their first significant word.
func TrimLeadingArticle(title string) string {
	trimmed := strings.TrimSpace(title)
	for _, article := range leadingArticles {
		n := len(article)
		if len(trimmed) > n && strings.EqualFold(trimmed[:n], article) {
			return strings.TrimSpace(trimmed[n:])
		}
	}
	return trimmed
}
