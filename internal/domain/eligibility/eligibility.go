// Package eligibility decides whether a category may be assigned to a product
// given the category's demographic and business constraints.
package eligibility

import (
	"slices"
	"strings"
)

// Constraint restricts one product attribute. The zero value is unrestricted.
// A restricted constraint with an empty set admits nothing.
type Constraint struct {
	restricted bool
	allowed    map[string]struct{}
}

// Unrestricted returns a constraint that passes any value, including absent.
func Unrestricted() Constraint {
	return Constraint{}
}

// AllowOnly returns a constraint that passes only the given values.
// Values are trimmed and lowercased; blanks are dropped.
func AllowOnly(values ...string) Constraint {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = normalize(v); v != "" {
			set[v] = struct{}{}
		}
	}
	return Constraint{restricted: true, allowed: set}
}

// FromSlice maps a nil slice to Unrestricted and any non-nil slice (even empty)
// to AllowOnly. This is the storage convention: null vs [].
func FromSlice(values []string) Constraint {
	if values == nil {
		return Unrestricted()
	}
	return AllowOnly(values...)
}

// IsRestricted reports whether the constraint limits values.
func (c Constraint) IsRestricted() bool { return c.restricted }

// Values returns the allowed set sorted, or nil when unrestricted.
func (c Constraint) Values() []string {
	if !c.restricted {
		return nil
	}
	out := make([]string, 0, len(c.allowed))
	for v := range c.allowed {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Admits reports whether value passes. Empty value means the product has no tag.
func (c Constraint) Admits(value string) bool {
	if !c.restricted {
		return true
	}
	value = normalize(value)
	if value == "" {
		return false
	}
	_, ok := c.allowed[value]
	return ok
}

// Constraints groups every dimension a category may restrict.
type Constraints struct {
	Genders       Constraint
	BusinessTypes Constraint
}

// Context carries the product attributes policy decisions look at. Empty = absent.
type Context struct {
	Gender       string
	BusinessType string
}

// Policy is the eligibility rule set. Stateless; the zero value is ready to use.
type Policy struct{}

// IsAllowed reports whether every dimension of c admits the product context.
func (Policy) IsAllowed(ctx Context, c Constraints) bool {
	return c.Genders.Admits(ctx.Gender) && c.BusinessTypes.Admits(ctx.BusinessType)
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
