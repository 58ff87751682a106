// Package dynamodb implements the metadata table on Amazon DynamoDB (or a
// compatible endpoint such as DynamoDB Local).
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/tendant/project-files/pkg/projectfiles"
)

// Config options for the DynamoDB backend
type Config struct {
	TableName       string // Table name
	Region          string // AWS region
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint (DynamoDB Local, LocalStack)

	// Create the table with PK/SK string keys if it doesn't exist
	CreateTableIfNotExist bool
}

// Client is the subset of the DynamoDB API used by the table.
type Client interface {
	GetItem(ctx context.Context, params *awsdynamodb.GetItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *awsdynamodb.PutItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *awsdynamodb.UpdateItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *awsdynamodb.QueryInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *awsdynamodb.DeleteItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *awsdynamodb.DescribeTableInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *awsdynamodb.CreateTableInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.CreateTableOutput, error)
}

// Table is a DynamoDB implementation of projectfiles.Table
type Table struct {
	client    Client
	tableName string
}

// throttleCodes are service error codes reported as projectfiles.ErrThrottled.
var throttleCodes = map[string]bool{
	"ProvisionedThroughputExceededException": true,
	"RequestLimitExceeded":                   true,
	"ThrottlingException":                    true,
}

// New creates a DynamoDB table from config
func New(config Config) (projectfiles.Table, error) {
	if config.TableName == "" {
		return nil, errors.New("table name is required")
	}

	if config.Region == "" {
		config.Region = "us-east-1"
	}

	var awsCfg aws.Config
	var err error

	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				config.AccessKeyID,
				config.SecretAccessKey,
				"",
			)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
		)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var options []func(*awsdynamodb.Options)
	if config.Endpoint != "" {
		options = append(options, func(o *awsdynamodb.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
		})
	}

	table := &Table{
		client:    awsdynamodb.NewFromConfig(awsCfg, options...),
		tableName: config.TableName,
	}

	if config.CreateTableIfNotExist {
		if err := table.createTableIfNotExists(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}

	return table, nil
}

// NewWithClient creates a table over an existing client
func NewWithClient(client Client, tableName string) projectfiles.Table {
	return &Table{client: client, tableName: tableName}
}

// createTableIfNotExists creates an on-demand table keyed by PK and SK
func (t *Table) createTableIfNotExists(ctx context.Context) error {
	_, err := t.client.DescribeTable(ctx, &awsdynamodb.DescribeTableInput{
		TableName: aws.String(t.tableName),
	})
	if err == nil {
		return nil
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe table: %w", err)
	}

	_, err = t.client.CreateTable(ctx, &awsdynamodb.CreateTableInput{
		TableName:   aws.String(t.tableName),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("SK"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: types.KeyTypeRange},
		},
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return nil
		}
		return fmt.Errorf("failed to create table: %w", err)
	}

	waiter := awsdynamodb.NewTableExistsWaiter(t.client)
	return waiter.Wait(ctx, &awsdynamodb.DescribeTableInput{TableName: aws.String(t.tableName)}, 2*time.Minute)
}

func (t *Table) GetItem(ctx context.Context, key projectfiles.Key, out any) error {
	result, err := t.client.GetItem(ctx, &awsdynamodb.GetItemInput{
		TableName:      aws.String(t.tableName),
		Key:            itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return t.handleError("get item", err)
	}
	if len(result.Item) == 0 {
		return projectfiles.ErrItemNotFound
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return fmt.Errorf("unmarshal item: %w", err)
	}
	return nil
}

func (t *Table) PutItemIfAbsent(ctx context.Context, in any) error {
	item, err := attributevalue.MarshalMap(in)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	_, err = t.client.PutItem(ctx, &awsdynamodb.PutItemInput{
		TableName:           aws.String(t.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return t.handleError("put item", err)
	}
	return nil
}

func (t *Table) UpdateItem(ctx context.Context, key projectfiles.Key, update projectfiles.ItemUpdate, out any) error {
	ub, err := updateBuilder(update)
	if err != nil {
		return err
	}
	exists := expression.AttributeExists(expression.Name("PK"))
	cond, _, err := conditions(&exists, update.Conditions)
	if err != nil {
		return err
	}
	expr, err := expression.NewBuilder().WithUpdate(ub).WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("build update expression: %w", err)
	}

	returnValues := types.ReturnValueNone
	if out != nil {
		returnValues = types.ReturnValueAllNew
	}

	result, err := t.client.UpdateItem(ctx, &awsdynamodb.UpdateItemInput{
		TableName:                 aws.String(t.tableName),
		Key:                       itemKey(key),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              returnValues,
	})
	if err != nil {
		return t.handleError("update item", err)
	}

	if out == nil {
		return nil
	}
	if err := attributevalue.UnmarshalMap(result.Attributes, out); err != nil {
		return fmt.Errorf("unmarshal item: %w", err)
	}
	return nil
}

func (t *Table) Query(ctx context.Context, q projectfiles.Query, out any) (*projectfiles.Key, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(q.PartitionKey))
	if q.SortKeyPrefix != "" {
		keyCond = keyCond.And(expression.Key("SK").BeginsWith(q.SortKeyPrefix))
	}
	builder := expression.NewBuilder().WithKeyCondition(keyCond)

	filter, ok, err := conditions(nil, q.Filters)
	if err != nil {
		return nil, err
	}
	if ok {
		builder = builder.WithFilter(filter)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build query expression: %w", err)
	}

	input := &awsdynamodb.QueryInput{
		TableName:                 aws.String(t.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	}
	if q.Limit > 0 {
		input.Limit = aws.Int32(int32(min(q.Limit, math.MaxInt32)))
	}
	if q.StartKey != nil && q.StartKey.PK == q.PartitionKey {
		input.ExclusiveStartKey = itemKey(*q.StartKey)
	}

	result, err := t.client.Query(ctx, input)
	if err != nil {
		return nil, t.handleError("query", err)
	}

	if err := attributevalue.UnmarshalListOfMaps(result.Items, out); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}

	if len(result.LastEvaluatedKey) == 0 {
		return nil, nil
	}
	var next projectfiles.Key
	if err := attributevalue.UnmarshalMap(result.LastEvaluatedKey, &next); err != nil {
		return nil, fmt.Errorf("unmarshal last evaluated key: %w", err)
	}
	return &next, nil
}

func (t *Table) DeleteItem(ctx context.Context, key projectfiles.Key) error {
	_, err := t.client.DeleteItem(ctx, &awsdynamodb.DeleteItemInput{
		TableName: aws.String(t.tableName),
		Key:       itemKey(key),
	})
	if err != nil {
		return t.handleError("delete item", err)
	}
	return nil
}

func itemKey(key projectfiles.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: key.PK},
		"SK": &types.AttributeValueMemberS{Value: key.SK},
	}
}

// handleError maps DynamoDB failures onto the table sentinels
func (t *Table) handleError(operation string, err error) error {
	var conditionFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		return projectfiles.ErrConditionFailed
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && throttleCodes[apiErr.ErrorCode()] {
		return fmt.Errorf("%w: dynamodb %s: %w", projectfiles.ErrThrottled, operation, err)
	}

	return fmt.Errorf("dynamodb %s on table %s: %w", operation, t.tableName, err)
}
