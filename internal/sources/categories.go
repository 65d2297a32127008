package sources

import (
	"strings"

	"nightmap/internal/domain/venues"
)

// Rule maps one provider term to a category when Match accepts it.
type Rule struct {
	Match    func(term string) bool
	Category venues.Category
}

// Keyword matches terms containing kw.
func Keyword(kw string, c venues.Category) Rule {
	return Rule{Match: func(term string) bool { return strings.Contains(term, kw) }, Category: c}
}

// Exact matches terms equal to one of values.
func Exact(c venues.Category, values ...string) Rule {
	return Rule{
		Match: func(term string) bool {
			for _, v := range values {
				if term == v {
					return true
				}
			}
			return false
		},
		Category: c,
	}
}

// RuleSet is an ordered category table. Order is part of the contract:
// the first matching rule wins, otherwise Default.
type RuleSet struct {
	Rules   []Rule
	Default venues.Category
}

// Classify walks the rules in order and returns the first rule that matches
// any term.
func (rs RuleSet) Classify(terms []string) venues.Category {
	normalized := lowerAll(terms)
	for _, r := range rs.Rules {
		for _, t := range normalized {
			if r.Match(t) {
				return r.Category
			}
		}
	}
	return rs.Default
}

// ClassifyInOrder walks the terms in the record's own order and returns the
// category of the first rule matching the earliest term.
func (rs RuleSet) ClassifyInOrder(terms []string) venues.Category {
	for _, t := range lowerAll(terms) {
		for _, r := range rs.Rules {
			if r.Match(t) {
				return r.Category
			}
		}
	}
	return rs.Default
}

func lowerAll(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// YelpRules match keywords in Yelp category titles.
var YelpRules = RuleSet{
	Rules: []Rule{
		Keyword("bar", venues.CategoryBar),
		Keyword("club", venues.CategoryClub),
		Keyword("lounge", venues.CategoryLounge),
		Keyword("brewery", venues.CategoryBrewery),
		Keyword("sports", venues.CategorySportsBar),
		Keyword("karaoke", venues.CategoryKaraoke),
		Keyword("music", venues.CategoryLiveMusic),
		Keyword("dance", venues.CategoryDance),
		Keyword("rooftop", venues.CategoryRooftop),
		Keyword("wine", venues.CategoryWineBar),
	},
	Default: venues.DefaultCategory,
}

// GoogleRules match Google place types exactly, in the record's type order.
var GoogleRules = RuleSet{
	Rules: []Rule{
		Exact(venues.CategoryBar, "bar"),
		Exact(venues.CategoryClub, "nightclub", "night_club"),
		Exact(venues.CategoryLiveMusic, "music_venue"),
		Exact(venues.CategoryLounge, "restaurant"),
		Exact(venues.CategoryBar, "liquor_store"),
	},
	Default: venues.DefaultCategory,
}

// TripAdvisorRules match keywords in the free-text description.
var TripAdvisorRules = RuleSet{
	Rules: []Rule{
		Keyword("bar", venues.CategoryBar),
		Keyword("club", venues.CategoryClub),
		Keyword("brewery", venues.CategoryBrewery),
		Keyword("wine", venues.CategoryWineBar),
		Keyword("music", venues.CategoryLiveMusic),
		Keyword("karaoke", venues.CategoryKaraoke),
		Keyword("dance", venues.CategoryDance),
	},
	Default: venues.DefaultCategory,
}
