package s3

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/lspecian/vexfs-sub000/blobstore"
)

// DDBClient is the subset of the DynamoDB API the commit store needs.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DDBCommitStore implements blobstore.CommitStore with a single DynamoDB
// item per registry, giving S3-backed registries an atomically updatable
// CURRENT pointer.
//
// Table schema: partition key registry_uri (string). Create with:
//
//	aws dynamodb create-table \
//	  --table-name vexfs-commits \
//	  --attribute-definitions AttributeName=registry_uri,AttributeType=S \
//	  --key-schema AttributeName=registry_uri,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	client    DDBClient
	tableName string
	uri       string // partition key, e.g. "s3://bucket/prefix"
}

// NewDDBCommitStore creates a commit store keyed by uri in tableName.
func NewDDBCommitStore(client DDBClient, tableName, uri string) *DDBCommitStore {
	return &DDBCommitStore{client: client, tableName: tableName, uri: uri}
}

func (s *DDBCommitStore) Commit(ctx context.Context, name string) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"registry_uri": &types.AttributeValueMemberS{Value: s.uri},
			"current":      &types.AttributeValueMemberS{Value: name},
		},
	})
	return err
}

func (s *DDBCommitStore) Current(ctx context.Context) (string, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		ConsistentRead: aws.Bool(true),
		Key: map[string]types.AttributeValue{
			"registry_uri": &types.AttributeValueMemberS{Value: s.uri},
		},
	})
	if err != nil {
		return "", err
	}
	attr, ok := out.Item["current"]
	if !ok {
		return "", blobstore.ErrNotFound
	}
	val, ok := attr.(*types.AttributeValueMemberS)
	if !ok || val.Value == "" {
		return "", blobstore.ErrNotFound
	}
	return val.Value, nil
}
