package linking

import (
	"strconv"
	"strings"

	"github.com/rohankatakam/teamgraph/internal/models"
)

// Reference phrasings are plain substring tests against lowercased text,
// so "#4" also matches inside "#42".

func codeChangeTicketPhrases(n int) []string {
	s := strconv.Itoa(n)
	return []string{
		"fixes #" + s,
		"closes #" + s,
		"resolves #" + s,
		"related to #" + s,
		"##" + s,
	}
}

func messageCodeChangePhrases(n int) []string {
	s := strconv.Itoa(n)
	return []string{
		"pr #" + s,
		"pr#" + s,
		"pr " + s,
		"pull request #" + s,
		"pull request " + s,
		"pull/" + s,
		"#" + s,
	}
}

func messageTicketPhrases(n int) []string {
	s := strconv.Itoa(n)
	return []string{
		"issue #" + s,
		"issue#" + s,
		"issue " + s,
		"#" + s,
		"issues/" + s,
	}
}

// matchAny returns the first phrase contained in text
func matchAny(text string, phrases []string) (string, bool) {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return p, true
		}
	}
	return "", false
}

// referenceType classifies a code change body: any occurrence of "fixes"
// makes the reference a fix, everything else is related.
func referenceType(lowerBody string) string {
	if strings.Contains(lowerBody, "fixes") {
		return models.ReferenceFixes
	}
	return models.ReferenceRelated
}

// stripUTC removes the trailing UTC marker so timestamps written with and
// without it compare equal.
func stripUTC(ts string) string {
	return strings.TrimSuffix(ts, "Z")
}
