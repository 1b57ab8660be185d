package awsstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/user/casewatch/internal/types"
)

// DynamoPutAPI is the subset of the DynamoDB client the ledger needs.
type DynamoPutAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// ledgerItem is one dedup record. ExpiresAt doubles as the table's TTL
// attribute so DynamoDB deletes expired entries itself.
type ledgerItem struct {
	PK        string `dynamodbav:"PK"`
	ExpiresAt int64  `dynamodbav:"ExpiresAt"`
	CreatedAt string `dynamodbav:"CreatedAt"`
}

// DynamoLedger is a DedupLedger on a DynamoDB table keyed by PK.
type DynamoLedger struct {
	DB    DynamoPutAPI
	Table string
	TTL   time.Duration
	Now   func() time.Time
}

func NewDynamoLedger(cfg aws.Config, table string, ttl time.Duration) *DynamoLedger {
	return &DynamoLedger{DB: dynamodb.NewFromConfig(cfg), Table: table, TTL: ttl, Now: time.Now}
}

// Record writes the item only if no unexpired item with the same key
// exists. TTL deletion is lazy, so an expired item may still be present
// and is overwritten.
func (l *DynamoLedger) Record(ctx context.Context, id types.InboundID) (bool, error) {
	now := l.Now()
	item, err := attributevalue.MarshalMap(ledgerItem{
		PK:        string(id),
		ExpiresAt: now.Add(l.TTL).Unix(),
		CreatedAt: now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return false, fmt.Errorf("marshal ledger item: %w", err)
	}
	nowAV, err := attributevalue.Marshal(now.Unix())
	if err != nil {
		return false, fmt.Errorf("marshal ledger time: %w", err)
	}
	_, err = l.DB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(l.Table),
		Item:                      item,
		ConditionExpression:       aws.String("attribute_not_exists(PK) OR ExpiresAt <= :now"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{":now": nowAV},
	})
	if err != nil {
		var ccf *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, fmt.Errorf("record %s: %w", id, err)
	}
	return true, nil
}

// Purge is a no-op: the table's TTL attribute expires entries.
func (l *DynamoLedger) Purge(context.Context) (int, error) {
	return 0, nil
}
