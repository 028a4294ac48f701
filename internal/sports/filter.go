// Package sports classifies market titles as sports markets and
// moneyline bets using keyword and pattern matching.
package sports

import (
	"regexp"
	"strings"
)

// sportsKeywords flag a market title as sports-related.
var sportsKeywords = []string{
	// Major sports
	"nfl", "nba", "mlb", "nhl", "soccer", "football", "basketball", "baseball", "hockey",
	"mls", "premier league", "la liga", "serie a", "bundesliga", "ligue 1", "champions league",
	// Combat sports
	"ufc", "boxing", "mma", "fight", "bout",
	// Other sports
	"tennis", "golf", "cricket", "rugby", "f1", "formula 1", "nascar", "racing",
	// College sports
	"ncaa", "college football", "college basketball",
	// Sport terms
	"game", "match", "vs", " at ", "team", "player", "score",
	// Betting terms
	"moneyline", "spread", "total", "prop",
}

var nflTeams = []string{
	"bills", "dolphins", "patriots", "jets", "ravens", "bengals", "browns", "steelers",
	"texans", "colts", "jaguars", "titans", "broncos", "chiefs", "raiders", "chargers",
	"cowboys", "giants", "eagles", "commanders", "bears", "lions", "packers", "vikings",
	"falcons", "panthers", "saints", "buccaneers", "cardinals", "rams", "49ers", "seahawks",
}

var nbaTeams = []string{
	"celtics", "nets", "knicks", "76ers", "raptors", "bulls", "cavaliers", "pistons",
	"pacers", "bucks", "hawks", "hornets", "heat", "magic", "wizards", "nuggets",
	"timberwolves", "thunder", "trail blazers", "jazz", "warriors", "clippers", "lakers",
	"suns", "kings", "mavericks", "rockets", "grizzlies", "pelicans", "spurs",
}

// moneylinePatterns match titles that ask which side wins outright.
var moneylinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`will .+ win`),
	regexp.MustCompile(`who will win`),
	regexp.MustCompile(`.+ to win`),
	regexp.MustCompile(`.+ vs .+`),
	regexp.MustCompile(`.+ @ .+`),
	regexp.MustCompile(`winner`),
	regexp.MustCompile(`moneyline`),
}

// excludedTerms rule out spread/total markets from the moneyline set.
var excludedTerms = []string{"spread", "over", "under", "total points", "total score"}

// Filter identifies sports markets and moneyline bets from market text.
type Filter struct {
	allTeams []string
}

// NewFilter creates a filter with the built-in keyword sets.
func NewFilter() *Filter {
	teams := make([]string, 0, len(nflTeams)+len(nbaTeams))
	teams = append(teams, nflTeams...)
	teams = append(teams, nbaTeams...)
	return &Filter{allTeams: teams}
}

// IsSports reports whether a market title/description looks sports-related.
func (f *Filter) IsSports(title, description string) bool {
	text := strings.ToLower(title + " " + description)

	for _, kw := range sportsKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	for _, team := range f.allTeams {
		if strings.Contains(text, team) {
			return true
		}
	}
	return false
}

// IsMoneyline reports whether a market title looks like a moneyline bet.
// Spread and totals markets are excluded even when a pattern matches.
func (f *Filter) IsMoneyline(title string) bool {
	lower := strings.ToLower(title)

	for _, term := range excludedTerms {
		if strings.Contains(lower, term) {
			return false
		}
	}
	for _, p := range moneylinePatterns {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}

// ExtractTeams returns the team names found in a market title.
func (f *Filter) ExtractTeams(title string) []string {
	lower := strings.ToLower(title)
	var found []string
	for _, team := range f.allTeams {
		if strings.Contains(lower, team) {
			found = append(found, titleCase(team))
		}
	}
	return found
}

// titleCase capitalizes each space-separated word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Categorize identifies which sport a market belongs to, returning ""
// when no category matches.
func (f *Filter) Categorize(title string) string {
	lower := strings.ToLower(title)

	categories := []struct {
		sport    string
		keywords []string
	}{
		{"NFL", append([]string{"nfl"}, nflTeams...)},
		{"NBA", append([]string{"nba"}, nbaTeams...)},
		{"MLB", []string{"mlb", "baseball"}},
		{"NHL", []string{"nhl", "hockey"}},
		{"Soccer", []string{"soccer", "premier league", "la liga", "mls", "champions league"}},
		{"UFC/MMA", []string{"ufc", "mma", "fight"}},
		{"Tennis", []string{"tennis"}},
		{"Golf", []string{"golf", "pga"}},
		{"NCAA", []string{"ncaa", "college"}},
	}

	for _, cat := range categories {
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				return cat.sport
			}
		}
	}
	return ""
}
