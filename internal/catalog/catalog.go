// Package catalog defines the closed service catalog: three categories,
// four subcategories each, with a fixed price per pair.
package catalog

import "github.com/shopspring/decimal"

type Category string

const (
	CategoryArtistic Category = "artistic"
	CategoryBusiness Category = "business"
	CategoryNumbers  Category = "numbers"
)

type Subcategory string

const (
	// Artistic
	SubDialogs Subcategory = "dialogs"
	SubNature  Subcategory = "nature"
	SubMusic   Subcategory = "music"
	SubPoetry  Subcategory = "poetry"

	// Business
	SubAgreements    Subcategory = "agreements"
	SubLaws          Subcategory = "laws"
	SubPresentations Subcategory = "presentations"
	SubNegotiations  Subcategory = "negotiations"

	// Numbers
	SubRoutes       Subcategory = "routes"
	SubPhoneNumbers Subcategory = "phone_numbers"
	SubStatistics   Subcategory = "statistics"
	SubCalculations Subcategory = "calculations"
)

var subcategories = map[Category][]Subcategory{
	CategoryArtistic: {SubDialogs, SubNature, SubMusic, SubPoetry},
	CategoryBusiness: {SubAgreements, SubLaws, SubPresentations, SubNegotiations},
	CategoryNumbers:  {SubRoutes, SubPhoneNumbers, SubStatistics, SubCalculations},
}

var prices = map[Category]decimal.Decimal{
	CategoryArtistic: decimal.RequireFromString("10.00"),
	CategoryBusiness: decimal.RequireFromString("15.00"),
	CategoryNumbers:  decimal.RequireFromString("12.00"),
}

// Categories returns all categories in display order.
func Categories() []Category {
	return []Category{CategoryArtistic, CategoryBusiness, CategoryNumbers}
}

// Subcategories returns the subcategories of c, or nil for an unknown category.
func Subcategories(c Category) []Subcategory {
	return subcategories[c]
}

// Valid reports whether (c, s) is a pair from the catalog.
func Valid(c Category, s Subcategory) bool {
	for _, sub := range subcategories[c] {
		if sub == s {
			return true
		}
	}
	return false
}

// Price returns the cost of one processing under (c, s).
// Zero for pairs outside the catalog; callers must Valid-check first.
func Price(c Category, s Subcategory) decimal.Decimal {
	if !Valid(c, s) {
		return decimal.Zero
	}
	return prices[c]
}
