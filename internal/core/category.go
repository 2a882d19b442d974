package core

// Category classifies an expense into one of the fixed spending groups.
// The set is closed: summaries always report every category, zero or not.
type Category string

const (
	CategoryLeisure   Category = "leisure"
	CategoryShopping  Category = "shopping"
	CategoryHealth    Category = "health"
	CategoryFood      Category = "food"
	CategoryTransport Category = "transport"
	CategoryHousing   Category = "housing"
	CategoryEducation Category = "education"
	CategoryOther     Category = "other"
)

// Categories returns the fixed category set in display order.
func Categories() []Category {
	return []Category{
		CategoryLeisure,
		CategoryShopping,
		CategoryHealth,
		CategoryFood,
		CategoryTransport,
		CategoryHousing,
		CategoryEducation,
		CategoryOther,
	}
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryLeisure, CategoryShopping, CategoryHealth, CategoryFood,
		CategoryTransport, CategoryHousing, CategoryEducation, CategoryOther:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (c Category) String() string {
	return string(c)
}
