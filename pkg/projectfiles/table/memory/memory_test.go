package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/project-files/pkg/projectfiles"
)

func newFile(projectID, fileID, mimeType string, status projectfiles.FileStatus) *projectfiles.File {
	key := projectfiles.FileKey(projectID, fileID)
	return &projectfiles.File{
		PK: key.PK, SK: key.SK,
		EntityType: projectfiles.EntityTypeFile,
		ProjectID:  projectID,
		FileID:     fileID,
		MimeType:   mimeType,
		Status:     status,
	}
}

func TestTable_PutGetDelete(t *testing.T) {
	table := New()
	ctx := context.Background()
	file := newFile("p1", "f1", "image/png", projectfiles.FileStatusPending)

	require.NoError(t, table.PutItemIfAbsent(ctx, file))
	assert.ErrorIs(t, table.PutItemIfAbsent(ctx, file), projectfiles.ErrConditionFailed)

	var got projectfiles.File
	require.NoError(t, table.GetItem(ctx, projectfiles.FileKey("p1", "f1"), &got))
	assert.Equal(t, "f1", got.FileID)
	assert.Equal(t, projectfiles.EntityTypeFile, got.EntityType)

	require.NoError(t, table.DeleteItem(ctx, projectfiles.FileKey("p1", "f1")))
	require.NoError(t, table.DeleteItem(ctx, projectfiles.FileKey("p1", "f1")))
	assert.ErrorIs(t, table.GetItem(ctx, projectfiles.FileKey("p1", "f1"), &got), projectfiles.ErrItemNotFound)
	assert.Equal(t, 0, table.(*Table).Len())
}

func TestTable_UpdateItem(t *testing.T) {
	table := New()
	ctx := context.Background()
	require.NoError(t, table.PutItemIfAbsent(ctx, newFile("p1", "f1", "image/png", projectfiles.FileStatusPending)))

	var updated projectfiles.File
	err := table.UpdateItem(ctx, projectfiles.FileKey("p1", "f1"), projectfiles.ItemUpdate{
		Set:        map[string]any{projectfiles.AttrStatus: projectfiles.FileStatusUploaded},
		Conditions: []projectfiles.Filter{{Attribute: projectfiles.AttrStatus, Op: projectfiles.FilterEquals, Value: "pending"}},
	}, &updated)
	require.NoError(t, err)
	assert.Equal(t, projectfiles.FileStatusUploaded, updated.Status)

	err = table.UpdateItem(ctx, projectfiles.FileKey("p1", "f1"), projectfiles.ItemUpdate{
		Set:        map[string]any{projectfiles.AttrStatus: projectfiles.FileStatusDeleted},
		Conditions: []projectfiles.Filter{{Attribute: projectfiles.AttrStatus, Op: projectfiles.FilterEquals, Value: "pending"}},
	}, nil)
	assert.ErrorIs(t, err, projectfiles.ErrConditionFailed)

	err = table.UpdateItem(ctx, projectfiles.FileKey("p1", "missing"), projectfiles.ItemUpdate{
		Set: map[string]any{projectfiles.AttrStatus: projectfiles.FileStatusDeleted},
	}, nil)
	assert.ErrorIs(t, err, projectfiles.ErrConditionFailed)
}

func TestTable_ConcurrentAdd(t *testing.T) {
	table := New()
	ctx := context.Background()
	key := projectfiles.ProjectKey("u1", "p1")
	require.NoError(t, table.PutItemIfAbsent(ctx, &projectfiles.Project{PK: key.PK, SK: key.SK, ProjectID: "p1"}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = table.UpdateItem(ctx, key, projectfiles.ItemUpdate{
				Add: map[string]int64{projectfiles.AttrFileCount: 1, projectfiles.AttrTotalSize: 10},
			}, nil)
		}()
	}
	wg.Wait()

	var project projectfiles.Project
	require.NoError(t, table.GetItem(ctx, key, &project))
	assert.Equal(t, int64(50), project.FileCount)
	assert.Equal(t, int64(500), project.TotalSize)
}

func TestTable_ConcurrentPutIfAbsent(t *testing.T) {
	table := New()
	ctx := context.Background()
	key := projectfiles.ProjectKey("u1", "p1")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failed    int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := table.PutItemIfAbsent(ctx, &projectfiles.Project{PK: key.PK, SK: key.SK, ProjectID: "p1", Name: fmt.Sprintf("n%d", i)})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if assert.ErrorIs(t, err, projectfiles.ErrConditionFailed) {
				failed++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 49, failed)
}

func TestTable_QueryPagination(t *testing.T) {
	table := New()
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		status := projectfiles.FileStatusUploaded
		if i%3 == 0 {
			status = projectfiles.FileStatusDeleted
		}
		require.NoError(t, table.PutItemIfAbsent(ctx, newFile("p1", fmt.Sprintf("f%d", i), "image/png", status)))
	}
	// a different partition must never leak in
	require.NoError(t, table.PutItemIfAbsent(ctx, newFile("p2", "other", "image/png", projectfiles.FileStatusUploaded)))

	notDeleted := []projectfiles.Filter{{Attribute: projectfiles.AttrStatus, Op: projectfiles.FilterNotEquals, Value: "deleted"}}

	var (
		ids   []string
		start *projectfiles.Key
		pages int
	)
	for {
		var files []*projectfiles.File
		next, err := table.Query(ctx, projectfiles.Query{
			PartitionKey:  "PROJECT#p1",
			SortKeyPrefix: "FILE#",
			Filters:       notDeleted,
			Limit:         3,
			StartKey:      start,
		}, &files)
		require.NoError(t, err)
		pages++
		assert.LessOrEqual(t, len(files), 3)
		for _, f := range files {
			ids = append(ids, f.FileID)
		}
		if next == nil {
			break
		}
		start = next
	}

	assert.Equal(t, 3, pages)
	assert.Equal(t, []string{"f1", "f2", "f4", "f5"}, ids)
}

func TestTable_QueryFilterMayEmptyPage(t *testing.T) {
	table := New()
	ctx := context.Background()
	require.NoError(t, table.PutItemIfAbsent(ctx, newFile("p1", "a", "image/png", projectfiles.FileStatusDeleted)))
	require.NoError(t, table.PutItemIfAbsent(ctx, newFile("p1", "b", "image/png", projectfiles.FileStatusUploaded)))

	var files []*projectfiles.File
	next, err := table.Query(ctx, projectfiles.Query{
		PartitionKey: "PROJECT#p1",
		Filters:      []projectfiles.Filter{{Attribute: projectfiles.AttrStatus, Op: projectfiles.FilterNotEquals, Value: "deleted"}},
		Limit:        1,
	}, &files)
	require.NoError(t, err)
	assert.Empty(t, files)
	require.NotNil(t, next)
	assert.Equal(t, "FILE#a", next.SK)
}
