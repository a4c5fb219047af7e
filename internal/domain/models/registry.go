package models

import "strings"

// ModuleRegistry maps scoring module ids to their analytical category.
type ModuleRegistry map[string]Category

// DefaultModuleRegistry is the stock council roster.
func DefaultModuleRegistry() ModuleRegistry {
	return ModuleRegistry{
		"atlas":  CategoryFundamental,
		"orion":  CategoryTechnical,
		"aether": CategoryMacro,
		"hermes": CategorySentiment,
		"cronos": CategoryTiming,
		"athena": CategorySector,
	}
}

// CategoryOf resolves a module's category. Modules named after a category
// ("technical", "macro", ...) resolve to it; anything else is CategoryOther.
func (r ModuleRegistry) CategoryOf(module string) Category {
	if c, ok := r[strings.ToLower(module)]; ok {
		return c
	}
	if c, err := ParseCategory(module); err == nil {
		return c
	}
	return CategoryOther
}
