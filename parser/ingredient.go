package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aluiziolira/go-scrape-recipes/models"
)

const vulgarFractions = "¼½¾⅐⅑⅒⅓⅔⅕⅖⅗⅘⅙⅚⅛⅜⅝⅞⅟"

// ParseIngredient splits a free-text ingredient line into a leading quantity
// (digits, fractions, '/', '.' and whitespace) and the remaining item. Lines
// without a leading number come back with an empty quantity.
func ParseIngredient(line string) models.Ingredient {
	line = strings.TrimSpace(line)

	end := 0
	numeric := false
scan:
	for i, r := range line {
		switch {
		case unicode.IsDigit(r) || strings.ContainsRune(vulgarFractions, r):
			numeric = true
		case r == '/' || r == '.' || r == '⁄' || unicode.IsSpace(r):
		default:
			break scan
		}
		end = i + utf8.RuneLen(r)
	}

	if !numeric {
		return models.Ingredient{Item: line}
	}
	return models.Ingredient{
		Quantity: strings.TrimSpace(line[:end]),
		Item:     strings.TrimSpace(line[end:]),
	}
}
