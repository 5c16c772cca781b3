package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	skCounter = "COUNTER#"
	skFlag    = "FLAG#"

	// An expired item that DynamoDB has not swept yet is restarted with a
	// conditional put; under contention the increment is retried.
	maxIncrementAttempts = 4
)

// dynamodbAPI is the minimal DynamoDB interface required by CounterStore.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// CounterStore keeps conversation counters and flags in a DynamoDB table
// keyed by PK/SK with a numeric "ttl" attribute enabled for expiry.
type CounterStore struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new DynamoDB-backed CounterStore.
func New(api dynamodbAPI, tableName string) (*CounterStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &CounterStore{api: api, tableName: tableName, now: time.Now}, nil
}

// itemKey returns the primary key of the record of kind sk stored under key.
func itemKey(key, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: key},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// expiresAt returns the Unix timestamp ttl after now.
func expiresAt(now time.Time, ttl time.Duration) int64 {
	return now.Add(ttl).Unix()
}

// IncrementAndGet atomically adds one to the counter and refreshes its TTL.
func (c *CounterStore) IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int, error) {
	for attempt := 0; attempt < maxIncrementAttempts; attempt++ {
		now := c.now()
		out, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:           aws.String(c.tableName),
			Key:                 itemKey(key, skCounter),
			UpdateExpression:    aws.String("SET #ttl = :ttl, #updatedAt = :updatedAt ADD #count :one"),
			ConditionExpression: aws.String("attribute_not_exists(PK) OR #ttl > :now"),
			ExpressionAttributeNames: map[string]string{
				"#count":     "count",
				"#ttl":       "ttl",
				"#updatedAt": "updatedAt",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":one":       &types.AttributeValueMemberN{Value: "1"},
				":ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt(now, ttl), 10)},
				":updatedAt": &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
				":now":       &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
			},
			ReturnValues: types.ReturnValueUpdatedNew,
		})
		if err == nil {
			if out == nil {
				return 0, errors.New("repository: IncrementAndGet: empty update output")
			}
			n, err := intAttr(out.Attributes, "count")
			if err != nil {
				return 0, fmt.Errorf("repository: IncrementAndGet decode count: %w", err)
			}
			return n, nil
		}
		if !isConditionFailed(err) {
			return 0, fmt.Errorf("repository: IncrementAndGet update: %w", err)
		}

		restarted, err := c.restartExpired(ctx, key, now, ttl)
		if err != nil {
			return 0, err
		}
		if restarted {
			return 1, nil
		}
	}
	return 0, fmt.Errorf("repository: IncrementAndGet: gave up on %q after %d attempts", key, maxIncrementAttempts)
}

// restartExpired replaces an expired counter with a fresh count of one. It
// reports false when another writer got there first.
func (c *CounterStore) restartExpired(ctx context.Context, key string, now time.Time, ttl time.Duration) (bool, error) {
	item := itemKey(key, skCounter)
	item["count"] = &types.AttributeValueMemberN{Value: "1"}
	item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt(now, ttl), 10)}
	item["updatedAt"] = &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(c.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("#ttl <= :now"),
		ExpressionAttributeNames: map[string]string{"#ttl": "ttl"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if err == nil {
		return true, nil
	}
	if isConditionFailed(err) {
		return false, nil
	}
	return false, fmt.Errorf("repository: IncrementAndGet restart: %w", err)
}

// GetCurrent returns the live counter value, 0 when absent or expired.
func (c *CounterStore) GetCurrent(ctx context.Context, key string) (int, error) {
	item, err := c.getLive(ctx, key, skCounter)
	if err != nil {
		return 0, fmt.Errorf("repository: GetCurrent: %w", err)
	}
	if item == nil {
		return 0, nil
	}
	n, err := intAttr(item, "count")
	if err != nil {
		return 0, fmt.Errorf("repository: GetCurrent decode count: %w", err)
	}
	return n, nil
}

// Reset deletes the counter and the flag stored under key in one transaction.
func (c *CounterStore) Reset(ctx context.Context, key string) error {
	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{TableName: aws.String(c.tableName), Key: itemKey(key, skCounter)}},
			{Delete: &types.Delete{TableName: aws.String(c.tableName), Key: itemKey(key, skFlag)}},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: Reset: %w", err)
	}
	return nil
}

// SetFlag stores a true flag with a fresh TTL; a false flag is deleted.
func (c *CounterStore) SetFlag(ctx context.Context, key string, value bool, ttl time.Duration) error {
	if !value {
		_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(c.tableName),
			Key:       itemKey(key, skFlag),
		})
		if err != nil {
			return fmt.Errorf("repository: SetFlag delete: %w", err)
		}
		return nil
	}

	now := c.now()
	item := itemKey(key, skFlag)
	item["flag"] = &types.AttributeValueMemberBOOL{Value: true}
	item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt(now, ttl), 10)}
	item["updatedAt"] = &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("repository: SetFlag put: %w", err)
	}
	return nil
}

// GetFlag returns the live flag value, false when absent or expired.
func (c *CounterStore) GetFlag(ctx context.Context, key string) (bool, error) {
	item, err := c.getLive(ctx, key, skFlag)
	if err != nil {
		return false, fmt.Errorf("repository: GetFlag: %w", err)
	}
	if item == nil {
		return false, nil
	}
	v, ok := item["flag"].(*types.AttributeValueMemberBOOL)
	if !ok {
		return false, errors.New("repository: GetFlag: attribute \"flag\" is not a boolean")
	}
	return v.Value, nil
}

// getLive reads an item consistently and hides items whose ttl has passed,
// since DynamoDB deletes expired items lazily.
func (c *CounterStore) getLive(ctx context.Context, key, sk string) (map[string]types.AttributeValue, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            itemKey(key, sk),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	if ttl, err := int64Attr(out.Item, "ttl"); err == nil && ttl <= c.now().Unix() {
		return nil, nil
	}
	return out.Item, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	n, err := int64Attr(item, key)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func int64Attr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
