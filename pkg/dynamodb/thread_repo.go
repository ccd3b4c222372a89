package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/finsight/insights-bot/pkg/threadstore"
)

// ThreadMapping is one user→thread row.
type ThreadMapping struct {
	UserID    string    `dynamodbav:"user_id"`
	ThreadID  string    `dynamodbav:"thread_id"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
}

// ThreadRepository is a threadstore.Store backed by a DynamoDB table keyed on
// user_id. It is the database variant of the injected persistence strategy;
// the contract matches the file store, including last-writer-wins on
// concurrent Set.
type ThreadRepository struct {
	client    *dynamodb.Client
	tableName string
}

var _ threadstore.Store = (*ThreadRepository)(nil)

// NewThreadRepository creates a new thread repository.
func NewThreadRepository(client *dynamodb.Client, tableName string) *ThreadRepository {
	return &ThreadRepository{
		client:    client,
		tableName: tableName,
	}
}

func (r *ThreadRepository) Get(ctx context.Context, userID string) (string, bool, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &r.tableName,
		Key:       userKey(userID),
	})
	if err != nil {
		return "", false, fmt.Errorf("get item: %w", err)
	}
	if result.Item == nil {
		return "", false, nil
	}

	var mapping ThreadMapping
	if err := attributevalue.UnmarshalMap(result.Item, &mapping); err != nil {
		return "", false, fmt.Errorf("unmarshal thread mapping: %w", err)
	}

	return mapping.ThreadID, true, nil
}

func (r *ThreadRepository) Set(ctx context.Context, userID, threadID string) error {
	item, err := attributevalue.MarshalMap(ThreadMapping{
		UserID:    userID,
		ThreadID:  threadID,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal thread mapping: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &r.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}

	return nil
}

func (r *ThreadRepository) Has(ctx context.Context, userID string) (bool, error) {
	_, ok, err := r.Get(ctx, userID)
	return ok, err
}

func (r *ThreadRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &r.tableName,
		Key:       userKey(userID),
	})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

func (r *ThreadRepository) Clear(ctx context.Context) error {
	all, err := r.All(ctx)
	if err != nil {
		return err
	}
	for userID := range all {
		if err := r.Delete(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

func (r *ThreadRepository) Size(ctx context.Context) (int, error) {
	var count int
	var startKey map[string]types.AttributeValue
	for {
		result, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         &r.tableName,
			Select:            types.SelectCount,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return 0, fmt.Errorf("scan count: %w", err)
		}
		count += int(result.Count)
		if result.LastEvaluatedKey == nil {
			return count, nil
		}
		startKey = result.LastEvaluatedKey
	}
}

func (r *ThreadRepository) All(ctx context.Context) (map[string]string, error) {
	snapshot := make(map[string]string)
	var startKey map[string]types.AttributeValue
	for {
		result, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         &r.tableName,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		var mappings []ThreadMapping
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &mappings); err != nil {
			return nil, fmt.Errorf("unmarshal thread mappings: %w", err)
		}
		for _, m := range mappings {
			snapshot[m.UserID] = m.ThreadID
		}

		if result.LastEvaluatedKey == nil {
			return snapshot, nil
		}
		startKey = result.LastEvaluatedKey
	}
}

func userKey(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id": &types.AttributeValueMemberS{Value: userID},
	}
}
