// Package dynamo is the remote store backed by one DynamoDB table with
// partition key "entity" and sort key "id". Entity fields live in a
// "fields" map attribute.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/mesh-intelligence/casebook/pkg/types"
)

var _ types.RemoteStore = (*Store)(nil)

// DefaultTable is used when Options.Table is empty.
const DefaultTable = "casebook"

// batchSize is the BatchWriteItem request limit.
const batchSize = 25

const (
	attrEntity    = "entity"
	attrID        = "id"
	attrUpdatedAt = "updated_at"
	attrFields    = "fields"
)

// Client is the subset of the DynamoDB API the store uses.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// Options configures Open.
type Options struct {
	Table    string
	Region   string
	Endpoint string // e.g. http://localhost:8000 for DynamoDB Local
}

// Store implements types.RemoteStore on DynamoDB.
type Store struct {
	client Client
	table  string
}

// item is the stored shape of a record.
type item struct {
	Entity    string         `dynamodbav:"entity"`
	ID        string         `dynamodbav:"id"`
	CreatedAt time.Time      `dynamodbav:"created_at"`
	UpdatedAt time.Time      `dynamodbav:"updated_at"`
	Fields    map[string]any `dynamodbav:"fields"`
}

// Open loads the default AWS configuration and returns a store for the
// configured table.
func Open(ctx context.Context, opts Options) (*Store, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return New(client, opts.Table), nil
}

// New returns a store using client against table.
func New(client Client, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{client: client, table: table}
}

func (s *Store) key(entity, id string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		attrEntity: &ddbtypes.AttributeValueMemberS{Value: entity},
		attrID:     &ddbtypes.AttributeValueMemberS{Value: id},
	}
}

func fieldName(field string) expression.NameBuilder {
	return expression.Name(attrFields + "." + field)
}

// filterCondition pushes down string conditions and string sets.
func filterCondition(filter types.Filter) (expression.ConditionBuilder, bool) {
	var (
		cond expression.ConditionBuilder
		have bool
	)
	add := func(c expression.ConditionBuilder) {
		if have {
			cond = cond.And(c)
		} else {
			cond, have = c, true
		}
	}
	for field, want := range filter {
		if types.IsReserved(field) {
			continue
		}
		switch v := want.(type) {
		case string:
			add(expression.Equal(fieldName(field), expression.Value(v)))
		case []string:
			if len(v) == 0 {
				continue
			}
			operands := make([]expression.OperandBuilder, len(v))
			for i, s := range v {
				operands[i] = expression.Value(s)
			}
			add(expression.In(fieldName(field), operands[0], operands[1:]...))
		}
	}
	return cond, have
}

// List queries the entity's partition, following pagination. Records come
// back in id order, which for time-ordered ids is creation order.
func (s *Store) List(ctx context.Context, entity string, filter types.Filter) ([]types.Record, error) {
	builder := expression.NewBuilder().
		WithKeyCondition(expression.Key(attrEntity).Equal(expression.Value(entity)))
	if cond, ok := filterCondition(filter); ok {
		builder = builder.WithFilter(cond)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: building list expression: %w", types.ErrValidation, err)
	}

	out := []types.Record{}
	var startKey map[string]ddbtypes.AttributeValue
	for {
		res, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.table),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, unavailable("query", err)
		}
		for _, av := range res.Items {
			rec, err := decode(av)
			if err != nil {
				return nil, unavailable("query", err)
			}
			out = append(out, rec)
		}
		if len(res.LastEvaluatedKey) == 0 {
			return out, nil
		}
		startKey = res.LastEvaluatedKey
	}
}

// Get returns the record or ErrNotFound.
func (s *Store) Get(ctx context.Context, entity, id string) (types.Record, error) {
	res, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(entity, id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return types.Record{}, unavailable("get", err)
	}
	if len(res.Item) == 0 {
		return types.Record{}, fmt.Errorf("%w: %s/%s", types.ErrNotFound, entity, id)
	}
	rec, err := decode(res.Item)
	if err != nil {
		return types.Record{}, unavailable("get", err)
	}
	return rec, nil
}

// Create puts record unless an item with its id already exists.
func (s *Store) Create(ctx context.Context, entity string, record types.Record) (types.Record, error) {
	av, err := encode(entity, record)
	if err != nil {
		return types.Record{}, err
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name(attrID))).
		Build()
	if err != nil {
		return types.Record{}, fmt.Errorf("%w: building create condition: %w", types.ErrValidation, err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(s.table),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if isConditionFailed(err) {
		return types.Record{}, fmt.Errorf("%w: duplicate id %s", types.ErrValidation, record.ID)
	}
	if err != nil {
		return types.Record{}, unavailable("put", err)
	}
	return record.Clone().WithSource(types.SourceRemote), nil
}

// Update sets each field inside the fields map and the updated_at
// attribute, failing with ErrNotFound when the item does not exist.
func (s *Store) Update(ctx context.Context, entity, id string, fields map[string]any, updatedAt time.Time) (types.Record, error) {
	update := expression.Set(expression.Name(attrUpdatedAt), expression.Value(updatedAt.UTC()))
	for k, v := range fields {
		if types.IsReserved(k) {
			continue
		}
		update = update.Set(fieldName(k), expression.Value(v))
	}
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name(attrID))).
		Build()
	if err != nil {
		return types.Record{}, fmt.Errorf("%w: building update expression: %w", types.ErrValidation, err)
	}

	res, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       s.key(entity, id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              ddbtypes.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		return types.Record{}, fmt.Errorf("%w: %s/%s", types.ErrNotFound, entity, id)
	}
	if err != nil {
		return types.Record{}, unavailable("update", err)
	}
	rec, err := decode(res.Attributes)
	if err != nil {
		return types.Record{}, unavailable("update", err)
	}
	return rec, nil
}

// Delete removes the item, reporting ErrNotFound when it does not exist.
func (s *Store) Delete(ctx context.Context, entity, id string) error {
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeExists(expression.Name(attrID))).
		Build()
	if err != nil {
		return fmt.Errorf("%w: building delete condition: %w", types.ErrValidation, err)
	}
	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(s.table),
		Key:                      s.key(entity, id),
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("%w: %s/%s", types.ErrNotFound, entity, id)
	}
	if err != nil {
		return unavailable("delete", err)
	}
	return nil
}

// BulkCreate writes records with BatchWriteItem in chunks. Any
// unprocessed item fails the batch; chunks already written are not
// rolled back.
func (s *Store) BulkCreate(ctx context.Context, entity string, records []types.Record) ([]types.Record, error) {
	requests := make([]ddbtypes.WriteRequest, 0, len(records))
	for _, rec := range records {
		av, err := encode(entity, rec)
		if err != nil {
			return nil, err
		}
		requests = append(requests, ddbtypes.WriteRequest{PutRequest: &ddbtypes.PutRequest{Item: av}})
	}

	for start := 0; start < len(requests); start += batchSize {
		end := min(start+batchSize, len(requests))
		res, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]ddbtypes.WriteRequest{s.table: requests[start:end]},
		})
		if err != nil {
			return nil, unavailable("batch write", err)
		}
		if n := len(res.UnprocessedItems[s.table]); n > 0 {
			return nil, fmt.Errorf("%w: dynamo batch write left %d items unprocessed", types.ErrRemoteUnavailable, n)
		}
	}

	out := make([]types.Record, len(records))
	for i, rec := range records {
		out[i] = rec.Clone().WithSource(types.SourceRemote)
	}
	return out, nil
}

// Close is a no-op; the SDK client holds no connections to release.
func (s *Store) Close() error { return nil }

func encode(entity string, rec types.Record) (map[string]ddbtypes.AttributeValue, error) {
	fields := rec.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	av, err := attributevalue.MarshalMap(item{
		Entity:    entity,
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt.UTC(),
		UpdatedAt: rec.UpdatedAt.UTC(),
		Fields:    fields,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding %s: %w", types.ErrValidation, rec.ID, err)
	}
	return av, nil
}

func decode(av map[string]ddbtypes.AttributeValue) (types.Record, error) {
	var it item
	if err := attributevalue.UnmarshalMap(av, &it); err != nil {
		return types.Record{}, fmt.Errorf("decoding item: %w", err)
	}
	if it.Fields == nil {
		it.Fields = map[string]any{}
	}
	return types.Record{
		ID:        it.ID,
		CreatedAt: it.CreatedAt.UTC(),
		UpdatedAt: it.UpdatedAt.UTC(),
		Fields:    it.Fields,
		Source:    types.SourceRemote,
	}, nil
}

func isConditionFailed(err error) bool {
	var ccf *ddbtypes.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: dynamo %s: %w", types.ErrRemoteUnavailable, op, err)
}
