package dynamodb

import (
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/tendant/project-files/pkg/projectfiles"
)

// condition converts f. A missing attribute satisfies NotEquals only, which
// keeps DynamoDB in line with the memory and postgres tables.
func condition(f projectfiles.Filter) (expression.ConditionBuilder, error) {
	name := expression.Name(f.Attribute)
	value := expression.Value(f.Value)
	switch f.Op {
	case projectfiles.FilterEquals:
		return name.Equal(value), nil
	case projectfiles.FilterNotEquals:
		return name.AttributeNotExists().Or(name.NotEqual(value)), nil
	case projectfiles.FilterBeginsWith:
		return name.BeginsWith(f.Value), nil
	}
	return expression.ConditionBuilder{}, fmt.Errorf("unsupported filter op %d", f.Op)
}

// conditions ANDs filters onto base. With no base and no filters ok is false.
func conditions(base *expression.ConditionBuilder, filters []projectfiles.Filter) (cond expression.ConditionBuilder, ok bool, err error) {
	if base != nil {
		cond, ok = *base, true
	}
	for _, f := range filters {
		c, err := condition(f)
		if err != nil {
			return expression.ConditionBuilder{}, false, err
		}
		if ok {
			cond = cond.And(c)
		} else {
			cond, ok = c, true
		}
	}
	return cond, ok, nil
}

// updateBuilder converts the SET and ADD parts of u. Attributes are visited in name
// order so the built expression is deterministic.
func updateBuilder(u projectfiles.ItemUpdate) (expression.UpdateBuilder, error) {
	if len(u.Set) == 0 && len(u.Add) == 0 {
		return expression.UpdateBuilder{}, fmt.Errorf("update has no attributes")
	}

	var ub expression.UpdateBuilder
	for _, name := range sortedKeys(u.Set) {
		ub = ub.Set(expression.Name(name), expression.Value(u.Set[name]))
	}
	for _, name := range sortedKeys(u.Add) {
		ub = ub.Add(expression.Name(name), expression.Value(u.Add[name]))
	}
	return ub, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
