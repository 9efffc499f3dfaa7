package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sicko7947/fraudflow"
)

// DynamoDBClient defines the DynamoDB operations used by the store, so tests
// can run without AWS infrastructure.
type DynamoDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Verify that the real DynamoDB client implements our interface
var _ DynamoDBClient = (*dynamodb.Client)(nil)

// DynamoDBStore implements fraudflow.RecordStore on a DynamoDB table. Each
// record write and the re-rendered document are committed in one
// transaction.
type DynamoDBStore struct {
	client    DynamoDBClient
	tableName string
	sessionID string
	ttl       time.Duration
	now       func() time.Time
}

// DynamoDBOption configures a DynamoDBStore
type DynamoDBOption func(*DynamoDBStore)

// WithTTL expires session items after d
func WithTTL(d time.Duration) DynamoDBOption {
	return func(s *DynamoDBStore) {
		s.ttl = d
	}
}

// NewDynamoDBStore creates a DynamoDB-backed record store for one session,
// typically the pattern id
func NewDynamoDBStore(client DynamoDBClient, tableName, sessionID string, opts ...DynamoDBOption) *DynamoDBStore {
	s := &DynamoDBStore{
		client:    client,
		tableName: tableName,
		sessionID: sessionID,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *DynamoDBStore) key(sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrPK: &types.AttributeValueMemberS{Value: sessionPK(s.sessionID)},
		AttrSK: &types.AttributeValueMemberS{Value: sk},
	}
}

func (s *DynamoDBStore) item(v any, sk, entityType string) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, err
	}
	for k, av := range s.key(sk) {
		item[k] = av
	}
	item[AttrEntityType] = &types.AttributeValueMemberS{Value: entityType}
	if s.ttl > 0 {
		item[AttrTTL] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", s.now().Add(s.ttl).Unix())}
	}
	return item, nil
}

func (s *DynamoDBStore) documentItem(steps []fraudflow.StepRecord, final *fraudflow.FinalFunction) (map[string]types.AttributeValue, error) {
	generatedAt := s.now().In(time.UTC)
	return s.item(map[string]string{
		AttrBody:        Render(steps, final, generatedAt),
		AttrGeneratedAt: generatedAt.Format(time.RFC3339),
	}, documentSK(), EntityTypeDocument)
}

func (s *DynamoDBStore) Clear(ctx context.Context) error {
	var lastEvaluatedKey map[string]types.AttributeValue

	// Paginate through all results
	for {
		queryInput := &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: sessionPK(s.sessionID)},
			},
			ProjectionExpression: aws.String("PK, SK"),
		}

		if lastEvaluatedKey != nil {
			queryInput.ExclusiveStartKey = lastEvaluatedKey
		}

		result, err := s.client.Query(ctx, queryInput)
		if err != nil {
			return fmt.Errorf("failed to list session items: %w", err)
		}

		for _, item := range result.Items {
			_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(s.tableName),
				Key: map[string]types.AttributeValue{
					AttrPK: item[AttrPK],
					AttrSK: item[AttrSK],
				},
			})
			if err != nil {
				return fmt.Errorf("failed to delete session item: %w", err)
			}
		}

		// Check if there are more results
		if result.LastEvaluatedKey == nil {
			break
		}
		lastEvaluatedKey = result.LastEvaluatedKey
	}

	return nil
}

func (s *DynamoDBStore) AppendStep(ctx context.Context, rec fraudflow.StepRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}

	steps, err := s.Steps(ctx)
	if err != nil {
		return err
	}
	final, err := s.Final(ctx)
	if err != nil {
		return err
	}
	steps = sortedSteps(append(steps, rec))

	recItem, err := s.item(rec, stepRecordSK(rec.StepIndex), EntityTypeStepRecord)
	if err != nil {
		return fmt.Errorf("failed to marshal step record: %w", err)
	}
	docItem, err := s.documentItem(steps, final)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	return s.commit(ctx, recItem, docItem)
}

func (s *DynamoDBStore) SetFinalFunction(ctx context.Context, sql, name string) error {
	final := &fraudflow.FinalFunction{
		Name:      name,
		SQL:       sql,
		Timestamp: s.now(),
	}

	steps, err := s.Steps(ctx)
	if err != nil {
		return err
	}

	finalItem, err := s.item(final, finalFunctionSK(), EntityTypeFinalFunction)
	if err != nil {
		return fmt.Errorf("failed to marshal final function: %w", err)
	}
	docItem, err := s.documentItem(steps, final)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	return s.commit(ctx, finalItem, docItem)
}

// commit writes the items in a single transaction
func (s *DynamoDBStore) commit(ctx context.Context, items ...map[string]types.AttributeValue) error {
	writes := make([]types.TransactWriteItem, 0, len(items))
	for _, item := range items {
		writes = append(writes, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(s.tableName),
				Item:      item,
			},
		})
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: writes,
	})
	if err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) Steps(ctx context.Context) ([]fraudflow.StepRecord, error) {
	steps := []fraudflow.StepRecord{}
	var lastEvaluatedKey map[string]types.AttributeValue

	// Paginate through all results
	for {
		queryInput := &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: sessionPK(s.sessionID)},
				":sk": &types.AttributeValueMemberS{Value: stepPrefix()},
			},
		}

		if lastEvaluatedKey != nil {
			queryInput.ExclusiveStartKey = lastEvaluatedKey
		}

		result, err := s.client.Query(ctx, queryInput)
		if err != nil {
			return nil, fmt.Errorf("failed to list step records: %w", err)
		}

		for _, item := range result.Items {
			var rec fraudflow.StepRecord
			if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
				return nil, fmt.Errorf("failed to unmarshal step record: %w", err)
			}
			steps = append(steps, rec)
		}

		// Check if there are more results
		if result.LastEvaluatedKey == nil {
			break
		}
		lastEvaluatedKey = result.LastEvaluatedKey
	}

	sort.SliceStable(steps, func(i, j int) bool { return steps[i].StepIndex < steps[j].StepIndex })
	return steps, nil
}

func (s *DynamoDBStore) Final(ctx context.Context) (*fraudflow.FinalFunction, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.key(finalFunctionSK()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get final function: %w", err)
	}

	if len(result.Item) == 0 {
		return nil, nil
	}

	var final fraudflow.FinalFunction
	if err := attributevalue.UnmarshalMap(result.Item, &final); err != nil {
		return nil, fmt.Errorf("failed to unmarshal final function: %w", err)
	}
	return &final, nil
}

// Document returns the rendered markdown stored for the session
func (s *DynamoDBStore) Document(ctx context.Context) (string, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.key(documentSK()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get document: %w", err)
	}

	body, ok := result.Item[AttrBody].(*types.AttributeValueMemberS)
	if !ok {
		return "", fraudflow.NewWorkflowError(fraudflow.ErrCodeNotFound,
			fmt.Sprintf("no document stored for session %s", s.sessionID))
	}
	return body.Value, nil
}

func (s *DynamoDBStore) Location() string {
	return fmt.Sprintf("dynamodb://%s/%s", s.tableName, sessionPK(s.sessionID))
}
