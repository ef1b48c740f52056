package recommend

import "regexp"

// imageURLPattern matches http(s) URLs up to a .jpg. A query string after .jpg is
// cut off; other extensions are not matched.
var imageURLPattern = regexp.MustCompile(`https?://[^\s]+\.jpg`)

// ExtractImageURLs returns the .jpg URLs in text in order of first appearance,
// dropping exact repeats.
func ExtractImageURLs(text string) []string {
	matches := imageURLPattern.FindAllString(text, -1)
	urls := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		urls = append(urls, m)
	}
	return urls
}
