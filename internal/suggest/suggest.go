// package suggest proposes likely-related evidence pairs from shared
// vocabulary. Suggestions feed the board as candidate connections; they are
// advisory only and never written to the event log.
package suggest

import (
	"sort"
	"strings"
	"time"
	"unicode"
)

// Scoring knobs. Each shared token is worth tokenWeight points; two pieces
// of evidence submitted within temporalWindow of each other earn the
// temporal bonus on top.
const (
	tokenWeight    = 25
	temporalBonus  = 20
	temporalWindow = 30 * time.Minute
	minTokenLength = 3
	maxSuggestions = 50
)

// stopwords never count as shared vocabulary.
var stopwords = map[string]struct{}{
	"the": {}, "this": {}, "that": {}, "with": {}, "from": {}, "was": {},
	"were": {}, "are": {}, "and": {}, "for": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "his": {}, "her": {}, "has": {}, "had": {},
	"a": {}, "an": {}, "of": {}, "to": {}, "in": {}, "on": {}, "at": {},
	"is": {}, "it": {}, "by": {}, "or": {}, "as": {}, "be": {},
}

// Suggestion is one proposed evidence pair.
type Suggestion struct {
	SourceDataID     string   `json:"sourceDataId"`
	TargetDataID     string   `json:"targetDataId"`
	SharedTokens     []string `json:"sharedTokens"`
	Score            int      `json:"score"`
	HasTemporalBonus bool     `json:"hasTemporalBonus"`
}

// Item is the slice of evidence the heuristic cares about.
type Item struct {
	ID          string
	Content     string
	Description string
	Tags        []string
	SubmittedAt time.Time
}

// ExtractTokens returns the lower-cased word set of an item's content,
// description, and tags: words longer than two runes, minus stopwords.
func ExtractTokens(it Item) map[string]struct{} {
	out := map[string]struct{}{}
	collect := func(text string) {
		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			if len([]rune(w)) < minTokenLength {
				continue
			}
			if _, stop := stopwords[w]; stop {
				continue
			}
			out[w] = struct{}{}
		}
	}
	collect(it.Content)
	collect(it.Description)
	for _, tag := range it.Tags {
		collect(tag)
	}
	return out
}

// PairKey canonicalizes an unordered id pair so (a,b) and (b,a) collide.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// DiscoverLinks scores every unordered item pair not already in existing.
// Pairs with no shared tokens are skipped. Results are sorted by score
// descending, then by pair key for determinism, and capped at 50.
func DiscoverLinks(items []Item, existing map[string]struct{}) []Suggestion {
	tokens := make([]map[string]struct{}, len(items))
	for i, it := range items {
		tokens[i] = ExtractTokens(it)
	}

	var out []Suggestion
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			key := PairKey(items[i].ID, items[j].ID)
			if _, done := existing[key]; done {
				continue
			}
			shared := intersect(tokens[i], tokens[j])
			if len(shared) == 0 {
				continue
			}
			s := Suggestion{
				SourceDataID: items[i].ID,
				TargetDataID: items[j].ID,
				SharedTokens: shared,
				Score:        tokenWeight * len(shared),
			}
			if withinWindow(items[i].SubmittedAt, items[j].SubmittedAt) {
				s.Score += temporalBonus
				s.HasTemporalBonus = true
			}
			out = append(out, s)
		}
	}

	sort.Slice(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return PairKey(out[a].SourceDataID, out[a].TargetDataID) <
			PairKey(out[b].SourceDataID, out[b].TargetDataID)
	})
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

func intersect(a, b map[string]struct{}) []string {
	if len(b) < len(a) {
		a, b = b, a
	}
	var shared []string
	for t := range a {
		if _, ok := b[t]; ok {
			shared = append(shared, t)
		}
	}
	sort.Strings(shared)
	return shared
}

func withinWindow(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= temporalWindow
}
