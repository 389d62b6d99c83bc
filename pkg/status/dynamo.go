package status

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Secondary index names on the status table.
const (
	// partitionRowIndex keys by (partition_id, row_num) and serves the
	// descending cursor lookup.
	partitionRowIndex = "partition-rownum-index"

	// fileNameIndex keys by file_name and serves existence checks.
	fileNameIndex = "filename-index"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore implements Store on a DynamoDB table.
type DynamoStore struct {
	client DynamoAPI
	table  string
}

// NewDynamoStore creates a DynamoStore from a pre-built client.
func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

// NewDynamoStoreFromAWSConfig creates a DynamoStore with a client built from
// the given AWS config.
func NewDynamoStoreFromAWSConfig(awsCfg aws.Config, table string) *DynamoStore {
	return NewDynamoStore(dynamodb.NewFromConfig(awsCfg), table)
}

// Put writes the record, overwriting any existing item for the archive.
func (s *DynamoStore) Put(ctx context.Context, rec Record) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal status record for archive %s: %w", rec.ArchiveID, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put status record for archive %s: %w", rec.ArchiveID, err)
	}
	return nil
}

// MaxRowNum queries the partition index descending with limit 1.
func (s *DynamoStore) MaxRowNum(ctx context.Context, partitionID int) (int64, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		IndexName:              aws.String(partitionRowIndex),
		KeyConditionExpression: aws.String("partition_id = :p"),
		ExpressionAttributeValues: map[string]dynamotypes.AttributeValue{
			":p": &dynamotypes.AttributeValueMemberN{Value: strconv.Itoa(partitionID)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, fmt.Errorf("query max row for partition %d: %w", partitionID, err)
	}

	if len(out.Items) == 0 {
		return 0, nil
	}

	var rec Record
	if err := attributevalue.UnmarshalMap(out.Items[0], &rec); err != nil {
		return 0, fmt.Errorf("unmarshal status record for partition %d: %w", partitionID, err)
	}
	return rec.RowNum, nil
}

// FileNameExists counts index entries for the filename, capped at one.
func (s *DynamoStore) FileNameExists(ctx context.Context, name string) (bool, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		IndexName:              aws.String(fileNameIndex),
		KeyConditionExpression: aws.String("file_name = :n"),
		ExpressionAttributeValues: map[string]dynamotypes.AttributeValue{
			":n": &dynamotypes.AttributeValueMemberS{Value: name},
		},
		Select: dynamotypes.SelectCount,
		Limit:  aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("query filename %q: %w", name, err)
	}
	return out.Count > 0, nil
}
