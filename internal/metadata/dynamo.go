package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/mediavault/mediavault-api/internal/metrics"
)

// SortKeyAttribute is the table's sort-key attribute. Its value is
// "<filename>#<zero-padded version>" so key order is version order.
const SortKeyAttribute = "version_key"

// NameFunc resolves a table or attribute name at call time.
type NameFunc func(ctx context.Context) (string, error)

// StaticName returns a NameFunc that always yields name.
func StaticName(name string) NameFunc {
	return func(context.Context) (string, error) { return name, nil }
}

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	dynamodb.QueryAPIClient
}

// DynamoStore implements Store on a DynamoDB table keyed by an owner
// partition key and the version sort key.
type DynamoStore struct {
	client       DynamoAPI
	table        NameFunc
	partitionKey NameFunc
	logger       *slog.Logger
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore. The table name and the partition-key
// attribute name are resolved on every call.
func NewDynamoStore(client DynamoAPI, table, partitionKey NameFunc, logger *slog.Logger) *DynamoStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DynamoStore{
		client:       client,
		table:        table,
		partitionKey: partitionKey,
		logger:       logger,
	}
}

func (s *DynamoStore) names(ctx context.Context) (table, pk string, err error) {
	if table, err = s.table(ctx); err != nil {
		return "", "", err
	}
	if pk, err = s.partitionKey(ctx); err != nil {
		return "", "", err
	}
	return table, pk, nil
}

// Put writes rec, refusing to overwrite an existing version.
func (s *DynamoStore) Put(ctx context.Context, rec Record) (err error) {
	defer func() { metrics.RecordMetadataOperation("put", metrics.Status(err)) }()

	table, pk, err := s.names(ctx)
	if err != nil {
		return err
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	item[pk] = &types.AttributeValueMemberS{Value: rec.Owner}
	item[SortKeyAttribute] = &types.AttributeValueMemberS{Value: versionKey(rec.Filename, rec.Version)}

	cond := expression.AttributeNotExists(expression.Name(SortKeyAttribute))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("build condition: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(table),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%s@%d: %w", rec.Filename, rec.Version, ErrVersionExists)
		}
		return fmt.Errorf("put item: %w", err)
	}

	s.logger.Debug("metadata stored",
		slog.String("table", table),
		slog.String("filename", rec.Filename),
		slog.Int64("version", rec.Version),
	)
	return nil
}

// Query returns every version for (owner, filename) in ascending version order.
func (s *DynamoStore) Query(ctx context.Context, owner, filename string) (_ []Record, err error) {
	defer func() { metrics.RecordMetadataOperation("query", metrics.Status(err)) }()

	input, err := s.queryInput(ctx, owner, filename)
	if err != nil {
		return nil, err
	}

	var out []Record
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		records, err := unmarshalRecords(page.Items, owner)
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
	}
	return out, nil
}

// Latest walks the key range newest first and stops at the first match.
func (s *DynamoStore) Latest(ctx context.Context, owner, filename string) (_ Record, _ bool, err error) {
	defer func() { metrics.RecordMetadataOperation("latest", metrics.Status(err)) }()

	input, err := s.queryInput(ctx, owner, filename)
	if err != nil {
		return Record{}, false, err
	}
	input.ScanIndexForward = aws.Bool(false)

	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return Record{}, false, fmt.Errorf("query latest: %w", err)
		}
		records, err := unmarshalRecords(page.Items, owner)
		if err != nil {
			return Record{}, false, err
		}
		if len(records) > 0 {
			return records[0], true, nil
		}
	}
	return Record{}, false, nil
}

// queryInput selects the owner's key range for filename. The filter drops
// records of other files whose names share the "<filename>#" prefix.
func (s *DynamoStore) queryInput(ctx context.Context, owner, filename string) (*dynamodb.QueryInput, error) {
	table, pk, err := s.names(ctx)
	if err != nil {
		return nil, err
	}

	keyCond := expression.Key(pk).Equal(expression.Value(owner)).
		And(expression.KeyBeginsWith(expression.Key(SortKeyAttribute), filename+"#"))
	filter := expression.Name("filename").Equal(expression.Value(filename))

	expr, err := expression.NewBuilder().
		WithKeyCondition(keyCond).
		WithFilter(filter).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build query expression: %w", err)
	}

	return &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, nil
}

func unmarshalRecords(items []map[string]types.AttributeValue, owner string) ([]Record, error) {
	records := make([]Record, 0, len(items))
	for _, item := range items {
		var rec Record
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		rec.Owner = owner
		records = append(records, rec)
	}
	return records, nil
}
