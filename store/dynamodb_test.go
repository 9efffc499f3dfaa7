package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sicko7947/fraudflow"
)

// mockDynamoDBClient implements DynamoDBClient interface for testing
type mockDynamoDBClient struct {
	putItemFunc            func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	getItemFunc            func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	queryFunc              func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	deleteItemFunc         func(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	transactWriteItemsFunc func(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

func (m *mockDynamoDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if m.putItemFunc != nil {
		return m.putItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDynamoDBClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getItemFunc != nil {
		return m.getItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (m *mockDynamoDBClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, params, optFns...)
	}
	return &dynamodb.QueryOutput{}, nil
}

func (m *mockDynamoDBClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if m.deleteItemFunc != nil {
		return m.deleteItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func (m *mockDynamoDBClient) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	if m.transactWriteItemsFunc != nil {
		return m.transactWriteItemsFunc(ctx, params, optFns...)
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

// fakeTable is a tiny in-memory table supporting the key shapes the store
// uses. Queries return pages of two items to exercise pagination.
type fakeTable struct {
	mu       sync.Mutex
	items    map[string]map[string]map[string]types.AttributeValue
	pageSize int
}

func newFakeTable() *fakeTable {
	return &fakeTable{
		items:    map[string]map[string]map[string]types.AttributeValue{},
		pageSize: 2,
	}
}

func keyOf(item map[string]types.AttributeValue) (string, string) {
	pk := item[AttrPK].(*types.AttributeValueMemberS).Value
	sk := item[AttrSK].(*types.AttributeValueMemberS).Value
	return pk, sk
}

func (f *fakeTable) put(item map[string]types.AttributeValue) {
	pk, sk := keyOf(item)
	if f.items[pk] == nil {
		f.items[pk] = map[string]map[string]types.AttributeValue{}
	}
	f.items[pk][sk] = item
}

func (f *fakeTable) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.put(params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeTable) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk, sk := keyOf(params.Key)
	return &dynamodb.GetItemOutput{Item: f.items[pk][sk]}, nil
}

func (f *fakeTable) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pk := params.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value
	prefix := ""
	if v, ok := params.ExpressionAttributeValues[":sk"]; ok {
		prefix = v.(*types.AttributeValueMemberS).Value
	}
	start := ""
	if params.ExclusiveStartKey != nil {
		_, start = keyOf(params.ExclusiveStartKey)
	}

	var sks []string
	for sk := range f.items[pk] {
		if strings.HasPrefix(sk, prefix) && sk > start {
			sks = append(sks, sk)
		}
	}
	sort.Strings(sks)

	out := &dynamodb.QueryOutput{}
	for i, sk := range sks {
		if i == f.pageSize {
			last := out.Items[len(out.Items)-1]
			out.LastEvaluatedKey = map[string]types.AttributeValue{AttrPK: last[AttrPK], AttrSK: last[AttrSK]}
			break
		}
		out.Items = append(out.Items, f.items[pk][sk])
	}
	return out, nil
}

func (f *fakeTable) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk, sk := keyOf(params.Key)
	delete(f.items[pk], sk)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeTable) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range params.TransactItems {
		if w.Put != nil {
			f.put(w.Put.Item)
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeTable) count(pk string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items[pk])
}

func TestNewDynamoDBStore(t *testing.T) {
	store := NewDynamoDBStore(&mockDynamoDBClient{}, "test-table", "FRAUD-001")

	if store == nil {
		t.Fatal("NewDynamoDBStore() returned nil")
	}

	// Verify it implements the interface
	var _ fraudflow.RecordStore = store

	if got := store.Location(); got != "dynamodb://test-table/SESSION#FRAUD-001" {
		t.Errorf("Location() = %q", got)
	}
}

func TestDynamoDBStore_AppendStepWritesRecordAndDocument(t *testing.T) {
	var captured *dynamodb.TransactWriteItemsInput

	client := &mockDynamoDBClient{
		transactWriteItemsFunc: func(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
			captured = params
			return &dynamodb.TransactWriteItemsOutput{}, nil
		},
	}

	store := NewDynamoDBStore(client, "test-table", "FRAUD-001", WithTTL(time.Hour))
	err := store.AppendStep(context.Background(), fraudflow.StepRecord{
		StepIndex: 3,
		StepID:    "step_3",
		SQL:       "SELECT 1",
		Approved:  true,
	})
	if err != nil {
		t.Fatalf("AppendStep() error = %v", err)
	}

	if captured == nil || len(captured.TransactItems) != 2 {
		t.Fatalf("expected a transaction with 2 writes, got %+v", captured)
	}

	rec := captured.TransactItems[0].Put
	if *rec.TableName != "test-table" {
		t.Errorf("TableName = %v, want test-table", *rec.TableName)
	}
	pk, sk := keyOf(rec.Item)
	if pk != "SESSION#FRAUD-001" || sk != "STEP#00003" {
		t.Errorf("record key = (%s, %s)", pk, sk)
	}
	if et := rec.Item[AttrEntityType].(*types.AttributeValueMemberS).Value; et != EntityTypeStepRecord {
		t.Errorf("entity_type = %s", et)
	}
	if _, ok := rec.Item[AttrTTL]; !ok {
		t.Error("expected ttl attribute when WithTTL is set")
	}

	doc := captured.TransactItems[1].Put
	if _, sk := keyOf(doc.Item); sk != "DOCUMENT" {
		t.Errorf("document SK = %s", sk)
	}
	body := doc.Item[AttrBody].(*types.AttributeValueMemberS).Value
	if !strings.Contains(body, "### Step 1: step_3") {
		t.Errorf("document body missing step:\n%s", body)
	}
}

func TestDynamoDBStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	table := newFakeTable()
	store := NewDynamoDBStore(table, "records", "FRAUD-002")

	for i := 0; i < 5; i++ {
		rec := fraudflow.StepRecord{StepIndex: i, StepID: fraudflow.StepID(i), SQL: "SELECT 1", Approved: true, RowCount: i}
		if err := store.AppendStep(ctx, rec); err != nil {
			t.Fatalf("AppendStep(%d) error = %v", i, err)
		}
	}
	if err := store.SetFinalFunction(ctx, "SELECT final", "detect_fraud_002"); err != nil {
		t.Fatalf("SetFinalFunction() error = %v", err)
	}

	steps, err := store.Steps(ctx)
	if err != nil {
		t.Fatalf("Steps() error = %v", err)
	}
	if len(steps) != 5 {
		t.Fatalf("expected 5 steps across pages, got %d", len(steps))
	}
	for i, s := range steps {
		if s.StepIndex != i || s.RowCount != i || !s.Approved {
			t.Errorf("steps[%d] = %+v", i, s)
		}
	}

	final, err := store.Final(ctx)
	if err != nil {
		t.Fatalf("Final() error = %v", err)
	}
	if final == nil || final.Name != "detect_fraud_002" || final.SQL != "SELECT final" {
		t.Fatalf("Final() = %+v", final)
	}

	doc, err := store.Document(ctx)
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	sql, err := ParseFinalSQL(doc)
	if err != nil || sql != "SELECT final" {
		t.Errorf("ParseFinalSQL() = %q, %v", sql, err)
	}
	if strings.Count(doc, "### Step ") != 5 {
		t.Errorf("document should list 5 steps:\n%s", doc)
	}

	// A step appended after the final keeps the final section
	if err := store.AppendStep(ctx, fraudflow.StepRecord{StepIndex: 5, StepID: "step_5", SQL: "SELECT 6"}); err != nil {
		t.Fatalf("AppendStep() error = %v", err)
	}
	doc, _ = store.Document(ctx)
	if !strings.Contains(doc, "**Function Name:** detect_fraud_002") {
		t.Errorf("document lost final section:\n%s", doc)
	}
}

func TestDynamoDBStore_ClearDeletesSession(t *testing.T) {
	ctx := context.Background()
	table := newFakeTable()
	store := NewDynamoDBStore(table, "records", "FRAUD-003")
	other := NewDynamoDBStore(table, "records", "FRAUD-004")

	for i := 0; i < 3; i++ {
		_ = store.AppendStep(ctx, fraudflow.StepRecord{StepIndex: i, SQL: "SELECT 1"})
	}
	_ = store.SetFinalFunction(ctx, "SELECT 1", "detect_x")
	_ = other.AppendStep(ctx, fraudflow.StepRecord{StepIndex: 0, SQL: "SELECT 1"})

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if n := table.count(sessionPK("FRAUD-003")); n != 0 {
		t.Errorf("expected session to be empty, %d items remain", n)
	}
	if n := table.count(sessionPK("FRAUD-004")); n != 2 {
		t.Errorf("other session should keep step and document, has %d items", n)
	}

	final, err := store.Final(ctx)
	if err != nil || final != nil {
		t.Errorf("Final() after Clear = %+v, %v", final, err)
	}
	if _, err := store.Document(ctx); !fraudflow.IsCode(err, fraudflow.ErrCodeNotFound) {
		t.Errorf("Document() after Clear error = %v, want NOT_FOUND", err)
	}
}

func TestDynamoDBStore_Errors(t *testing.T) {
	boom := errors.New("throttled")
	ctx := context.Background()

	t.Run("query error", func(t *testing.T) {
		client := &mockDynamoDBClient{
			queryFunc: func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
				return nil, boom
			},
		}
		store := NewDynamoDBStore(client, "t", "s")
		if _, err := store.Steps(ctx); !errors.Is(err, boom) {
			t.Errorf("Steps() error = %v, want wrapped %v", err, boom)
		}
		if err := store.Clear(ctx); !errors.Is(err, boom) {
			t.Errorf("Clear() error = %v, want wrapped %v", err, boom)
		}
		if err := store.AppendStep(ctx, fraudflow.StepRecord{}); !errors.Is(err, boom) {
			t.Errorf("AppendStep() error = %v, want wrapped %v", err, boom)
		}
	})

	t.Run("transaction error", func(t *testing.T) {
		client := &mockDynamoDBClient{
			transactWriteItemsFunc: func(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
				return nil, boom
			},
		}
		store := NewDynamoDBStore(client, "t", "s")
		if err := store.SetFinalFunction(ctx, "SELECT 1", "detect_x"); !errors.Is(err, boom) {
			t.Errorf("SetFinalFunction() error = %v, want wrapped %v", err, boom)
		}
	})

	t.Run("get error", func(t *testing.T) {
		client := &mockDynamoDBClient{
			getItemFunc: func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
				return nil, boom
			},
		}
		store := NewDynamoDBStore(client, "t", "s")
		if _, err := store.Final(ctx); !errors.Is(err, boom) {
			t.Errorf("Final() error = %v, want wrapped %v", err, boom)
		}
	})
}
