package service

import (
	"strings"
	"unicode"

	"github.com/sakif/voicepost/internal/model"
)

var categoryKeywords = map[model.Category][]string{
	model.CategoryBusiness: {
		"business", "startup", "startups", "funding", "investor", "investors",
		"revenue", "profit", "market", "markets", "sales", "customer",
		"customers", "company", "companies", "growth", "ceo", "founder",
		"entrepreneur", "product", "strategy", "hiring", "b2b", "saas",
	},
	model.CategoryCulture: {
		"art", "arts", "artist", "music", "film", "films", "movie", "festival",
		"exhibit", "exhibition", "museum", "theater", "theatre", "book",
		"books", "culture", "fashion", "food", "travel", "concert", "poetry",
		"design", "heritage",
	},
	model.CategoryPolitics: {
		"politics", "political", "election", "elections", "vote", "voting",
		"government", "policy", "policies", "congress", "senate", "parliament",
		"president", "minister", "law", "laws", "campaign", "democracy",
		"democrat", "republican", "legislation", "mayor",
	},
}

var keywordCategory = func() map[string]model.Category {
	m := make(map[string]model.Category)
	for cat, words := range categoryKeywords {
		for _, w := range words {
			m[w] = cat
		}
	}
	return m
}()

// Categorize assigns content to the category whose keywords occur most
// often, matching whole words case-insensitively. A tie for the top count,
// including no matches at all, yields business.
func Categorize(content string) model.Category {
	counts := make(map[model.Category]int, len(categoryKeywords))
	words := strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if cat, ok := keywordCategory[w]; ok {
			counts[cat]++
		}
	}

	best, bestCount, tied := model.CategoryBusiness, 0, false
	for _, cat := range []model.Category{model.CategoryBusiness, model.CategoryCulture, model.CategoryPolitics} {
		switch n := counts[cat]; {
		case n > bestCount:
			best, bestCount, tied = cat, n, false
		case n == bestCount:
			tied = true
		}
	}
	if tied {
		return model.CategoryBusiness
	}
	return best
}
