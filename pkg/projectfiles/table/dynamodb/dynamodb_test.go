package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/project-files/pkg/projectfiles"
)

// fakeClient records requests and replays canned responses
type fakeClient struct {
	Client

	putInput    *awsdynamodb.PutItemInput
	updateInput *awsdynamodb.UpdateItemInput
	queryInput  *awsdynamodb.QueryInput

	updateOutput *awsdynamodb.UpdateItemOutput
	queryOutput  *awsdynamodb.QueryOutput
	err          error
}

func (f *fakeClient) PutItem(ctx context.Context, params *awsdynamodb.PutItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.PutItemOutput, error) {
	f.putInput = params
	if f.err != nil {
		return nil, f.err
	}
	return &awsdynamodb.PutItemOutput{}, nil
}

func (f *fakeClient) UpdateItem(ctx context.Context, params *awsdynamodb.UpdateItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.UpdateItemOutput, error) {
	f.updateInput = params
	if f.err != nil {
		return nil, f.err
	}
	if f.updateOutput != nil {
		return f.updateOutput, nil
	}
	return &awsdynamodb.UpdateItemOutput{}, nil
}

func (f *fakeClient) Query(ctx context.Context, params *awsdynamodb.QueryInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.QueryOutput, error) {
	f.queryInput = params
	if f.err != nil {
		return nil, f.err
	}
	if f.queryOutput != nil {
		return f.queryOutput, nil
	}
	return &awsdynamodb.QueryOutput{}, nil
}

func TestPutItemIfAbsent_ConditionFailed(t *testing.T) {
	client := &fakeClient{err: &types.ConditionalCheckFailedException{Message: aws.String("exists")}}
	table := NewWithClient(client, "items")

	key := projectfiles.ProjectKey("owner-1", "project-1")
	err := table.PutItemIfAbsent(context.Background(), &projectfiles.Project{PK: key.PK, SK: key.SK})
	assert.ErrorIs(t, err, projectfiles.ErrConditionFailed)
	require.NotNil(t, client.putInput)
	assert.Equal(t, "attribute_not_exists(PK)", aws.ToString(client.putInput.ConditionExpression))
	assert.Equal(t, "items", aws.ToString(client.putInput.TableName))
}

func TestPutItemIfAbsent_Throttled(t *testing.T) {
	client := &fakeClient{err: &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")}}
	table := NewWithClient(client, "items")

	err := table.PutItemIfAbsent(context.Background(), &projectfiles.Project{PK: "USER#a", SK: "PROJECT#b"})
	assert.ErrorIs(t, err, projectfiles.ErrThrottled)
}

// attributeNames returns the attribute names referenced by an expression.
func attributeNames(names map[string]string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, name)
	}
	return out
}

// valueOf returns the placeholder bound to av, or "" if none is.
func valueOf(values map[string]types.AttributeValue, av types.AttributeValue) string {
	for placeholder, v := range values {
		if assert.ObjectsAreEqual(av, v) {
			return placeholder
		}
	}
	return ""
}

// nameOf returns the placeholder bound to attribute, or "" if none is.
func nameOf(names map[string]string, attribute string) string {
	for placeholder, name := range names {
		if name == attribute {
			return placeholder
		}
	}
	return ""
}

func TestUpdateItem_Expression(t *testing.T) {
	client := &fakeClient{}
	table := NewWithClient(client, "items")

	err := table.UpdateItem(context.Background(), projectfiles.ProjectKey("o", "p"), projectfiles.ItemUpdate{
		Set:        map[string]any{"name": "renamed"},
		Add:        map[string]int64{"fileCount": 1},
		Conditions: []projectfiles.Filter{{Attribute: "status", Op: projectfiles.FilterNotEquals, Value: "deleted"}},
	}, nil)
	require.NoError(t, err)

	in := client.updateInput
	require.NotNil(t, in)
	assert.ElementsMatch(t, []string{"name", "fileCount", "status", "PK"}, attributeNames(in.ExpressionAttributeNames))

	updateExpr := aws.ToString(in.UpdateExpression)
	name := nameOf(in.ExpressionAttributeNames, "name")
	renamed := valueOf(in.ExpressionAttributeValues, &types.AttributeValueMemberS{Value: "renamed"})
	fileCount := nameOf(in.ExpressionAttributeNames, "fileCount")
	one := valueOf(in.ExpressionAttributeValues, &types.AttributeValueMemberN{Value: "1"})
	require.NotEmpty(t, renamed)
	require.NotEmpty(t, one)
	assert.Contains(t, updateExpr, "SET "+name+" = "+renamed)
	assert.Contains(t, updateExpr, "ADD "+fileCount+" "+one)

	cond := aws.ToString(in.ConditionExpression)
	status := nameOf(in.ExpressionAttributeNames, "status")
	deleted := valueOf(in.ExpressionAttributeValues, &types.AttributeValueMemberS{Value: "deleted"})
	require.NotEmpty(t, deleted)
	assert.Contains(t, cond, "attribute_exists ("+nameOf(in.ExpressionAttributeNames, "PK")+")")
	assert.Contains(t, cond, "attribute_not_exists ("+status+")")
	assert.Contains(t, cond, status+" <> "+deleted)
	assert.Contains(t, cond, " OR ")
	assert.Contains(t, cond, " AND ")
	assert.Equal(t, types.ReturnValueNone, in.ReturnValues)
}

func TestCondition_Ops(t *testing.T) {
	tests := []struct {
		op   projectfiles.FilterOp
		want string
	}{
		{projectfiles.FilterEquals, " = "},
		{projectfiles.FilterNotEquals, "attribute_not_exists"},
		{projectfiles.FilterBeginsWith, "begins_with"},
	}
	for _, tt := range tests {
		cond, err := condition(projectfiles.Filter{Attribute: "status", Op: tt.op, Value: "x"})
		require.NoError(t, err)
		expr, err := expression.NewBuilder().WithCondition(cond).Build()
		require.NoError(t, err)
		assert.Contains(t, aws.ToString(expr.Condition()), tt.want)
	}

	_, err := condition(projectfiles.Filter{Attribute: "status", Op: projectfiles.FilterOp(99)})
	assert.Error(t, err)
}

func TestUpdateItem_ReturnsNewItem(t *testing.T) {
	client := &fakeClient{updateOutput: &awsdynamodb.UpdateItemOutput{
		Attributes: map[string]types.AttributeValue{
			"PK":     &types.AttributeValueMemberS{Value: "PROJECT#p"},
			"SK":     &types.AttributeValueMemberS{Value: "FILE#f"},
			"status": &types.AttributeValueMemberS{Value: "uploaded"},
		},
	}}
	table := NewWithClient(client, "items")

	var file projectfiles.File
	err := table.UpdateItem(context.Background(), projectfiles.FileKey("p", "f"), projectfiles.ItemUpdate{
		Set: map[string]any{"status": projectfiles.FileStatusUploaded},
	}, &file)
	require.NoError(t, err)
	assert.Equal(t, types.ReturnValueAllNew, client.updateInput.ReturnValues)
	assert.Equal(t, projectfiles.FileStatusUploaded, file.Status)
}

func TestUpdateItem_EmptyUpdate(t *testing.T) {
	table := NewWithClient(&fakeClient{}, "items")
	err := table.UpdateItem(context.Background(), projectfiles.FileKey("p", "f"), projectfiles.ItemUpdate{}, nil)
	assert.Error(t, err)
}

func TestQuery_Input(t *testing.T) {
	client := &fakeClient{queryOutput: &awsdynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{{
			"PK":     &types.AttributeValueMemberS{Value: "PROJECT#p"},
			"SK":     &types.AttributeValueMemberS{Value: "FILE#a"},
			"fileId": &types.AttributeValueMemberS{Value: "a"},
		}},
		LastEvaluatedKey: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "PROJECT#p"},
			"SK": &types.AttributeValueMemberS{Value: "FILE#a"},
		},
	}}
	table := NewWithClient(client, "items")

	var files []*projectfiles.File
	next, err := table.Query(context.Background(), projectfiles.Query{
		PartitionKey:  "PROJECT#p",
		SortKeyPrefix: "FILE#",
		Filters:       []projectfiles.Filter{{Attribute: "mimeType", Op: projectfiles.FilterBeginsWith, Value: "image/"}},
		Limit:         10,
		StartKey:      &projectfiles.Key{PK: "PROJECT#p", SK: "FILE#0"},
	}, &files)
	require.NoError(t, err)

	in := client.queryInput
	assert.ElementsMatch(t, []string{"PK", "SK", "mimeType"}, attributeNames(in.ExpressionAttributeNames))

	keyCond := aws.ToString(in.KeyConditionExpression)
	pk := valueOf(in.ExpressionAttributeValues, &types.AttributeValueMemberS{Value: "PROJECT#p"})
	prefix := valueOf(in.ExpressionAttributeValues, &types.AttributeValueMemberS{Value: "FILE#"})
	require.NotEmpty(t, pk)
	require.NotEmpty(t, prefix)
	assert.Contains(t, keyCond, nameOf(in.ExpressionAttributeNames, "PK")+" = "+pk)
	assert.Contains(t, keyCond, "begins_with ("+nameOf(in.ExpressionAttributeNames, "SK")+", "+prefix+")")

	image := valueOf(in.ExpressionAttributeValues, &types.AttributeValueMemberS{Value: "image/"})
	require.NotEmpty(t, image)
	assert.Contains(t, aws.ToString(in.FilterExpression), "begins_with ("+nameOf(in.ExpressionAttributeNames, "mimeType")+", "+image+")")
	assert.Equal(t, int32(10), aws.ToInt32(in.Limit))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "FILE#0"}, in.ExclusiveStartKey["SK"])

	require.Len(t, files, 1)
	assert.Equal(t, "a", files[0].FileID)
	require.NotNil(t, next)
	assert.Equal(t, projectfiles.Key{PK: "PROJECT#p", SK: "FILE#a"}, *next)
}

func TestQuery_LimitClamped(t *testing.T) {
	client := &fakeClient{}
	table := NewWithClient(client, "items")

	var files []*projectfiles.File
	_, err := table.Query(context.Background(), projectfiles.Query{PartitionKey: "PROJECT#p", Limit: math.MaxInt}, &files)
	require.NoError(t, err)
	assert.Equal(t, int32(math.MaxInt32), aws.ToInt32(client.queryInput.Limit))
	assert.Nil(t, client.queryInput.FilterExpression)
}

func TestQuery_Exhausted(t *testing.T) {
	table := NewWithClient(&fakeClient{}, "items")

	var files []*projectfiles.File
	next, err := table.Query(context.Background(), projectfiles.Query{PartitionKey: "PROJECT#p"}, &files)
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.Empty(t, files)
}

func TestQuery_ForeignStartKeyIgnored(t *testing.T) {
	client := &fakeClient{}
	table := NewWithClient(client, "items")

	var files []*projectfiles.File
	_, err := table.Query(context.Background(), projectfiles.Query{
		PartitionKey: "PROJECT#p",
		StartKey:     &projectfiles.Key{PK: "PROJECT#other", SK: "FILE#x"},
	}, &files)
	require.NoError(t, err)
	assert.Nil(t, client.queryInput.ExclusiveStartKey)
}

func TestHandleError_Passthrough(t *testing.T) {
	table := &Table{tableName: "items"}
	boom := errors.New("boom")
	err := table.handleError("get item", boom)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, projectfiles.ErrThrottled)
}

// TestDynamoDBIntegration runs against DynamoDB Local when
// PROJECT_FILES_TEST_DYNAMODB_ENDPOINT is set.
func integrationTable(t *testing.T) projectfiles.Table {
	t.Helper()
	endpoint := os.Getenv("PROJECT_FILES_TEST_DYNAMODB_ENDPOINT")
	if endpoint == "" {
		t.Skip("PROJECT_FILES_TEST_DYNAMODB_ENDPOINT not set")
	}

	table, err := New(Config{
		TableName:             "project-files-test",
		Region:                "us-east-1",
		AccessKeyID:           "local",
		SecretAccessKey:       "local",
		Endpoint:              endpoint,
		CreateTableIfNotExist: true,
	})
	require.NoError(t, err)
	return table
}

func TestDynamoDBIntegration(t *testing.T) {
	table := integrationTable(t)

	ctx := context.Background()
	projectID := uuid.NewString()
	key := projectfiles.ProjectKey("owner-it", projectID)
	project := &projectfiles.Project{
		PK: key.PK, SK: key.SK, EntityType: projectfiles.EntityTypeProject,
		OwnerID: "owner-it", ProjectID: projectID, Name: "it", Status: projectfiles.ProjectStatusActive,
	}

	require.NoError(t, table.PutItemIfAbsent(ctx, project))
	assert.ErrorIs(t, table.PutItemIfAbsent(ctx, project), projectfiles.ErrConditionFailed)

	var updated projectfiles.Project
	require.NoError(t, table.UpdateItem(ctx, key, projectfiles.ItemUpdate{
		Add: map[string]int64{projectfiles.AttrFileCount: 2, projectfiles.AttrTotalSize: 100},
	}, &updated))
	assert.Equal(t, int64(2), updated.FileCount)
	assert.Equal(t, int64(100), updated.TotalSize)

	require.NoError(t, table.DeleteItem(ctx, key))
	var gone projectfiles.Project
	assert.ErrorIs(t, table.GetItem(ctx, key, &gone), projectfiles.ErrItemNotFound)
}

func TestDynamoDBIntegration_ConcurrentPutIfAbsent(t *testing.T) {
	table := integrationTable(t)
	ctx := context.Background()

	projectID := uuid.NewString()
	key := projectfiles.ProjectKey("owner-it", projectID)
	t.Cleanup(func() { _ = table.DeleteItem(ctx, key) })

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
			err := table.PutItemIfAbsent(ctx, &projectfiles.Project{
				PK: key.PK, SK: key.SK, EntityType: projectfiles.EntityTypeProject,
				OwnerID: "owner-it", ProjectID: projectID, Name: fmt.Sprintf("n%d", i),
			})
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
