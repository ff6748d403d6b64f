// Package filter evaluates the category mask and type list predicates used by
// recursive operations and inventory queries. Everything here is pure.
package filter

import (
	"slices"

	"github.com/zeusync/modbridge/internal/core/models"
)

// Criteria is a (mask, type list) pair as scripts pass it.
type Criteria struct {
	Mask  models.Mask
	Types []models.TypeTag
}

// ByMask builds criteria from a mask only.
func ByMask(m models.Mask) Criteria { return Criteria{Mask: m} }

// ByTypes builds criteria from a type list only.
func ByTypes(types ...models.TypeTag) Criteria { return Criteria{Types: types} }

// Empty reports that neither a mask nor a type was supplied.
func (c Criteria) Empty() bool {
	return c.Mask == models.MaskAny && len(c.Types) == 0
}

// Match evaluates the criteria against one entity.
func (c Criteria) Match(category models.Mask, tag models.TypeTag) bool {
	return Matches(category, tag, c.Mask, c.Types)
}

// Matches is true when category is in mask, or tag is in types, or both
// filters are empty. A zero mask alongside a type list adds nothing, so the
// type list alone decides.
func Matches(category models.Mask, tag models.TypeTag, mask models.Mask, types []models.TypeTag) bool {
	if mask == models.MaskAny && len(types) == 0 {
		return true
	}
	if mask != models.MaskAny && category&mask != 0 {
		return true
	}
	return ContainsType(types, tag)
}

// Covers treats a zero mask as the wildcard.
func Covers(mask, category models.Mask) bool {
	return mask == models.MaskAny || category&mask != 0
}

func ContainsType(types []models.TypeTag, tag models.TypeTag) bool {
	return slices.Contains(types, tag)
}

// Selects is the inventory query predicate: the mask (0 = any) and the type
// list (empty or containing 0 = any) must both accept the entity.
func Selects(category models.Mask, tag models.TypeTag, mask models.Mask, types []models.TypeTag) bool {
	if !Covers(mask, category) {
		return false
	}
	if len(types) == 0 || ContainsType(types, 0) {
		return true
	}
	return ContainsType(types, tag)
}
