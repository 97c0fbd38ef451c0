package remote

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/TheMichaelB/zpass/internal/events"
	"github.com/TheMichaelB/zpass/internal/models"
)

// DynamoDBAPI is the subset of the DynamoDB client used by DynamoDBStore.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoDBStore keeps the blob record as one item keyed by account_id.
type DynamoDBStore struct {
	client    DynamoDBAPI
	tableName string
	accountID string
	logger    *events.Logger
}

// NewDynamoDBStore creates a store using the default AWS credential chain.
func NewDynamoDBStore(ctx context.Context, tableName, accountID string, logger *events.Logger) (*DynamoDBStore, error) {
	if tableName == "" {
		return nil, fmt.Errorf("%w: dynamodb table name required", models.ErrInvalidConfig)
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewDynamoDBStoreWithClient(dynamodb.NewFromConfig(cfg), tableName, accountID, logger), nil
}

// NewDynamoDBStoreWithClient creates a store on an existing client.
func NewDynamoDBStoreWithClient(client DynamoDBAPI, tableName, accountID string, logger *events.Logger) *DynamoDBStore {
	if accountID == "" {
		accountID = "default"
	}
	return &DynamoDBStore{
		client:    client,
		tableName: tableName,
		accountID: accountID,
		logger:    logger.WithField("component", "dynamodb_store"),
	}
}

func (s *DynamoDBStore) key() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"account_id": &types.AttributeValueMemberS{Value: s.accountID},
	}
}

// Fetch reads the item. A missing item means no vault yet.
func (s *DynamoDBStore) Fetch(ctx context.Context) (*models.EncryptedBlob, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, &models.NetworkError{Op: "dynamodb get", Err: err}
	}

	if result.Item == nil {
		s.logger.WithField("account_id", s.accountID).Debug("No vault item")
		return nil, nil
	}

	record := models.BlobRecord{
		EncryptedData: stringAttr(result.Item, "encrypted_data"),
		Salt:          stringAttr(result.Item, "salt"),
	}
	return record.Blob()
}

// Put writes the item.
func (s *DynamoDBStore) Put(ctx context.Context, blob *models.EncryptedBlob) error {
	record := blob.Record()

	item := s.key()
	item["encrypted_data"] = &types.AttributeValueMemberS{Value: *record.EncryptedData}
	item["salt"] = &types.AttributeValueMemberS{Value: *record.Salt}
	item["updated_at"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(time.Now().Unix(), 10)}

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return &models.NetworkError{Op: "dynamodb put", Err: err}
	}

	s.logger.WithField("account_id", s.accountID).Debug("Saved vault to DynamoDB")
	return nil
}

func stringAttr(item map[string]types.AttributeValue, name string) *string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return &v.Value
	}
	return nil
}
