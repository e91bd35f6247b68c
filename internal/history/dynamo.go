package history

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// jobItem is the DynamoDB layout of a Record.
type jobItem struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	GSI1PK string `dynamodbav:"GSI1PK"`
	GSI1SK string `dynamodbav:"GSI1SK"`
	Record
}

// DynamoStore keeps job records in a single DynamoDB table keyed by
// PK=JOB#<session> / SK=METADATA, with a GSI listing jobs by start time.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName}
}

func jobKey(sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "JOB#" + sessionID},
		"SK": &types.AttributeValueMemberS{Value: "METADATA"},
	}
}

// Create inserts a new job record.
func (s *DynamoStore) Create(ctx context.Context, r Record) error {
	item := jobItem{
		PK:     "JOB#" + r.SessionID,
		SK:     "METADATA",
		GSI1PK: "JOBS",
		GSI1SK: r.StartedAt.UTC().Format(time.RFC3339) + "#" + r.SessionID,
		Record: r,
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal job item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.tableName,
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return fmt.Errorf("put job item: %w", err)
	}
	return nil
}

// Finish records the terminal state of a job.
func (s *DynamoStore) Finish(ctx context.Context, r Record) error {
	finished := r.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	updateExpr := "SET #status = :status, finishedAt = :fin"
	exprValues := map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: r.Status},
		":fin":    &types.AttributeValueMemberS{Value: finished.UTC().Format(time.RFC3339Nano)},
	}
	names := map[string]string{"#status": "status"}

	if r.VideoURL != "" {
		updateExpr += ", videoUrl = :vurl"
		exprValues[":vurl"] = &types.AttributeValueMemberS{Value: r.VideoURL}
	}
	if r.AudioURL != "" {
		updateExpr += ", audioUrl = :aurl"
		exprValues[":aurl"] = &types.AttributeValueMemberS{Value: r.AudioURL}
	}
	if r.Duration > 0 {
		updateExpr += ", #dur = :dur"
		names["#dur"] = "duration"
		exprValues[":dur"] = &types.AttributeValueMemberN{Value: strconv.FormatFloat(r.Duration, 'f', 2, 64)}
	}
	if r.Renderer != "" {
		updateExpr += ", renderer = :renderer"
		exprValues[":renderer"] = &types.AttributeValueMemberS{Value: r.Renderer}
	}
	if r.VoiceID != "" {
		updateExpr += ", voiceId = :voice"
		exprValues[":voice"] = &types.AttributeValueMemberS{Value: r.VoiceID}
	}
	if r.Error != "" {
		updateExpr += ", errorMessage = :err"
		exprValues[":err"] = &types.AttributeValueMemberS{Value: r.Error}
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       jobKey(r.SessionID),
		UpdateExpression:          aws.String(updateExpr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: exprValues,
	})
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return nil
}

// Get loads a job record.
func (s *DynamoStore) Get(ctx context.Context, sessionID string) (Record, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       jobKey(sessionID),
	})
	if err != nil {
		return Record{}, fmt.Errorf("get job: %w", err)
	}
	if len(out.Item) == 0 {
		return Record{}, ErrNotFound
	}

	var item jobItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return Record{}, fmt.Errorf("unmarshal job: %w", err)
	}
	return item.Record, nil
}
