package processing

import "strings"

var (
	indonesianWords = []string{"yang", "dan", "di", "ke", "dari", "untuk", "dengan", "adalah", "pada", "ini", "itu"}
	englishWords    = []string{"the", "is", "are", "was", "were", "been", "have", "has", "had", "will", "would"}
)

// DetectLanguage classifies text as Indonesian or English by counting which
// marker words appear surrounded by single spaces. Each word counts once no
// matter how often it occurs. Ties, including empty input, resolve to English.
//
// A marker at the very start or end of the text has no surrounding space and
// is not counted.
func DetectLanguage(text string) Language {
	lower := strings.ToLower(text)
	if countMarkers(lower, indonesianWords) > countMarkers(lower, englishWords) {
		return Indonesian
	}
	return English
}

func countMarkers(lower string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(lower, " "+w+" ") {
			n++
		}
	}
	return n
}
