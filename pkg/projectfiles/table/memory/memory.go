// Package memory provides an in-process Table for tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/tendant/project-files/pkg/projectfiles"
	"github.com/tendant/project-files/pkg/projectfiles/table/avitem"
)

// Table is an in-memory implementation of projectfiles.Table. Rows are held
// in attribute-value form so they round-trip exactly like the DynamoDB backend.
type Table struct {
	mu         sync.RWMutex
	partitions map[string]map[string]avitem.Item
}

// New creates a new in-memory table
func New() projectfiles.Table {
	return &Table{
		partitions: make(map[string]map[string]avitem.Item),
	}
}

func (t *Table) GetItem(ctx context.Context, key projectfiles.Key, out any) error {
	t.mu.RLock()
	item, ok := t.partitions[key.PK][key.SK]
	t.mu.RUnlock()

	if !ok {
		return projectfiles.ErrItemNotFound
	}
	if err := attributevalue.UnmarshalMap(item, out); err != nil {
		return fmt.Errorf("unmarshal item: %w", err)
	}
	return nil
}

func (t *Table) PutItemIfAbsent(ctx context.Context, in any) error {
	item, err := avitem.Marshal(in)
	if err != nil {
		return err
	}
	key, err := avitem.KeyOf(item)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	partition, ok := t.partitions[key.PK]
	if !ok {
		partition = make(map[string]avitem.Item)
		t.partitions[key.PK] = partition
	}
	if _, exists := partition[key.SK]; exists {
		return projectfiles.ErrConditionFailed
	}
	partition[key.SK] = item
	return nil
}

func (t *Table) UpdateItem(ctx context.Context, key projectfiles.Key, update projectfiles.ItemUpdate, out any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	item, ok := t.partitions[key.PK][key.SK]
	if !ok || !avitem.MatchAll(item, update.Conditions) {
		return projectfiles.ErrConditionFailed
	}

	updated, err := avitem.Apply(item, update)
	if err != nil {
		return err
	}
	t.partitions[key.PK][key.SK] = updated

	if out == nil {
		return nil
	}
	if err := attributevalue.UnmarshalMap(updated, out); err != nil {
		return fmt.Errorf("unmarshal item: %w", err)
	}
	return nil
}

func (t *Table) Query(ctx context.Context, q projectfiles.Query, out any) (*projectfiles.Key, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	partition := t.partitions[q.PartitionKey]
	sortKeys := make([]string, 0, len(partition))
	for sk := range partition {
		if !strings.HasPrefix(sk, q.SortKeyPrefix) {
			continue
		}
		if q.StartKey != nil && q.StartKey.PK == q.PartitionKey && sk <= q.StartKey.SK {
			continue
		}
		sortKeys = append(sortKeys, sk)
	}
	sort.Strings(sortKeys)

	scanned := sortKeys
	var next *projectfiles.Key
	if q.Limit > 0 && len(sortKeys) > q.Limit {
		scanned = sortKeys[:q.Limit]
		next = &projectfiles.Key{PK: q.PartitionKey, SK: scanned[len(scanned)-1]}
	}

	items := make([]avitem.Item, 0, len(scanned))
	for _, sk := range scanned {
		item := partition[sk]
		if avitem.MatchAll(item, q.Filters) {
			items = append(items, item)
		}
	}

	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	return next, nil
}

func (t *Table) DeleteItem(ctx context.Context, key projectfiles.Key) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if partition, ok := t.partitions[key.PK]; ok {
		delete(partition, key.SK)
		if len(partition) == 0 {
			delete(t.partitions, key.PK)
		}
	}
	return nil
}

// Len returns the number of stored rows.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, partition := range t.partitions {
		n += len(partition)
	}
	return n
}
