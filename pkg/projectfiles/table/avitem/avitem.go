// Package avitem holds attribute-value item helpers shared by the table
// backends that evaluate filters and updates themselves.
package avitem

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/tendant/project-files/pkg/projectfiles"
)

// Item is a single table row in DynamoDB attribute-value form.
type Item = map[string]types.AttributeValue

// Marshal converts a tagged struct (or map) into an Item.
func Marshal(in any) (Item, error) {
	item, err := attributevalue.MarshalMap(in)
	if err != nil {
		return nil, fmt.Errorf("marshal item: %w", err)
	}
	return item, nil
}

// KeyOf extracts the table key of item.
func KeyOf(item Item) (projectfiles.Key, error) {
	pk, ok := String(item, "PK")
	if !ok || pk == "" {
		return projectfiles.Key{}, fmt.Errorf("item has no PK")
	}
	sk, ok := String(item, "SK")
	if !ok || sk == "" {
		return projectfiles.Key{}, fmt.Errorf("item has no SK")
	}
	return projectfiles.Key{PK: pk, SK: sk}, nil
}

// String returns the value of a string attribute.
func String(item Item, name string) (string, bool) {
	if s, ok := item[name].(*types.AttributeValueMemberS); ok {
		return s.Value, true
	}
	return "", false
}

// Match reports whether item satisfies f. A missing attribute only
// satisfies NotEquals.
func Match(item Item, f projectfiles.Filter) bool {
	value, ok := String(item, f.Attribute)
	switch f.Op {
	case projectfiles.FilterEquals:
		return ok && value == f.Value
	case projectfiles.FilterNotEquals:
		return !ok || value != f.Value
	case projectfiles.FilterBeginsWith:
		return ok && strings.HasPrefix(value, f.Value)
	}
	return false
}

// MatchAll reports whether item satisfies every filter.
func MatchAll(item Item, filters []projectfiles.Filter) bool {
	for _, f := range filters {
		if !Match(item, f) {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy of item.
func Clone(item Item) Item {
	out := make(Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

// Apply returns a copy of item with update applied. Conditions are not checked.
func Apply(item Item, update projectfiles.ItemUpdate) (Item, error) {
	out := Clone(item)
	for name, value := range update.Set {
		av, err := attributevalue.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal attribute %s: %w", name, err)
		}
		out[name] = av
	}
	for name, delta := range update.Add {
		current, err := Number(out, name)
		if err != nil {
			return nil, err
		}
		out[name] = &types.AttributeValueMemberN{Value: strconv.FormatInt(current+delta, 10)}
	}
	return out, nil
}

// Number returns the integer value of a numeric attribute; missing is zero.
func Number(item Item, name string) (int64, error) {
	av, ok := item[name]
	if !ok {
		return 0, nil
	}
	n, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("attribute %s is not a number", name)
	}
	if v, err := strconv.ParseInt(n.Value, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(n.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("attribute %s: %w", name, err)
	}
	return int64(f), nil
}

// ToJSON encodes item as a plain JSON object. Numbers are written with
// their exact digits so int64 attributes survive FromJSON.
func ToJSON(item Item) ([]byte, error) {
	m := make(map[string]any, len(item))
	for name, av := range item {
		v, err := plainValue(av)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		m[name] = v
	}
	return json.Marshal(m)
}

// FromJSON decodes a JSON object written by ToJSON.
func FromJSON(data []byte) (Item, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	item := make(Item, len(m))
	for name, v := range m {
		av, err := attributeValue(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		item[name] = av
	}
	return item, nil
}

func plainValue(av types.AttributeValue) (any, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, nil
	case *types.AttributeValueMemberN:
		return json.Number(v.Value), nil
	case *types.AttributeValueMemberBOOL:
		return v.Value, nil
	case *types.AttributeValueMemberNULL:
		return nil, nil
	case *types.AttributeValueMemberB:
		return v.Value, nil
	case *types.AttributeValueMemberSS:
		return v.Value, nil
	case *types.AttributeValueMemberNS:
		out := make([]json.Number, len(v.Value))
		for i, n := range v.Value {
			out[i] = json.Number(n)
		}
		return out, nil
	case *types.AttributeValueMemberL:
		out := make([]any, len(v.Value))
		for i, e := range v.Value {
			pv, err := plainValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = pv
		}
		return out, nil
	case *types.AttributeValueMemberM:
		out := make(map[string]any, len(v.Value))
		for k, e := range v.Value {
			pv, err := plainValue(e)
			if err != nil {
				return nil, err
			}
			out[k] = pv
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported attribute value %T", av)
}

func attributeValue(v any) (types.AttributeValue, error) {
	switch v := v.(type) {
	case nil:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case string:
		return &types.AttributeValueMemberS{Value: v}, nil
	case json.Number:
		return &types.AttributeValueMemberN{Value: v.String()}, nil
	case bool:
		return &types.AttributeValueMemberBOOL{Value: v}, nil
	case []any:
		out := make([]types.AttributeValue, len(v))
		for i, e := range v {
			av, err := attributeValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = av
		}
		return &types.AttributeValueMemberL{Value: out}, nil
	case map[string]any:
		out := make(map[string]types.AttributeValue, len(v))
		for k, e := range v {
			av, err := attributeValue(e)
			if err != nil {
				return nil, err
			}
			out[k] = av
		}
		return &types.AttributeValueMemberM{Value: out}, nil
	}
	return nil, fmt.Errorf("unsupported JSON value %T", v)
}
