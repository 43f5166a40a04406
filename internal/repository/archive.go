// Package repository persists finished conversations to DynamoDB. It is a
// durable archive behind the in-memory session store, written once when a
// conversation reaches a terminal phase.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"intake-agent/internal/domain"
)

const (
	skMeta       = "META#"
	skTranscript = "TRANSCRIPT#"
	ttlDuration  = 30 * 24 * time.Hour // 30-day archive TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Archive.
// Defined here for testability.
type dynamodbAPI interface {
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Archive wraps a DynamoDB table for conversation archival.
type Archive struct {
	api       dynamodbAPI
	tableName string
}

// New creates an Archive for the given table.
func New(api dynamodbAPI, tableName string) (*Archive, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Archive{api: api, tableName: tableName}, nil
}

// convPK returns the DynamoDB partition key for a conversation.
func convPK(sessionID string) string {
	return "CONV#" + sessionID
}

// ttlValue returns a Unix timestamp 30 days in the future.
func ttlValue() int64 {
	return time.Now().Add(ttlDuration).Unix()
}

// ArchiveConversation writes the conversation metadata and transcript in
// one transaction. Requirements and messages are stored as JSON documents;
// both items share the ttl attribute for table-level expiry.
func (a *Archive) ArchiveConversation(ctx context.Context, sess domain.Session) error {
	if strings.TrimSpace(sess.ID) == "" {
		return errors.New("repository: ArchiveConversation: session id is required")
	}

	meta, err := metaItem(sess)
	if err != nil {
		return fmt.Errorf("repository: ArchiveConversation: %w", err)
	}
	transcript, err := transcriptItem(sess)
	if err != nil {
		return fmt.Errorf("repository: ArchiveConversation: %w", err)
	}

	_, err = a.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(a.tableName), Item: meta}},
			{Put: &types.Put{TableName: aws.String(a.tableName), Item: transcript}},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: ArchiveConversation: %w", err)
	}
	return nil
}

func metaItem(sess domain.Session) (map[string]types.AttributeValue, error) {
	requirements, err := json.Marshal(sess.Requirements)
	if err != nil {
		return nil, fmt.Errorf("marshal requirements: %w", err)
	}

	item := map[string]types.AttributeValue{
		"PK":                   &types.AttributeValueMemberS{Value: convPK(sess.ID)},
		"SK":                   &types.AttributeValueMemberS{Value: skMeta},
		"sessionId":            &types.AttributeValueMemberS{Value: sess.ID},
		"phase":                &types.AttributeValueMemberS{Value: string(sess.Phase)},
		"problemType":          &types.AttributeValueMemberS{Value: sess.ProblemType},
		"requirements":         &types.AttributeValueMemberS{Value: string(requirements)},
		"readinessScore":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", sess.ReadinessScore)},
		"confirmationAttempts": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", sess.ConfirmationAttempts)},
		"messageCount":         &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", len(sess.Messages))},
		"createdAt":            &types.AttributeValueMemberS{Value: sess.CreatedAt.UTC().Format(time.RFC3339)},
		"updatedAt":            &types.AttributeValueMemberS{Value: sess.UpdatedAt.UTC().Format(time.RFC3339)},
		"ttl":                  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttlValue())},
	}
	if sess.UserID != "" {
		item["userId"] = &types.AttributeValueMemberS{Value: sess.UserID}
	}
	if sess.EscalationReason != "" {
		item["escalationReason"] = &types.AttributeValueMemberS{Value: sess.EscalationReason}
	}
	return item, nil
}

func transcriptItem(sess domain.Session) (map[string]types.AttributeValue, error) {
	messages, err := json.Marshal(sess.Messages)
	if err != nil {
		return nil, fmt.Errorf("marshal transcript: %w", err)
	}

	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: convPK(sess.ID)},
		"SK":        &types.AttributeValueMemberS{Value: skTranscript},
		"sessionId": &types.AttributeValueMemberS{Value: sess.ID},
		"messages":  &types.AttributeValueMemberS{Value: string(messages)},
		"ttl":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttlValue())},
	}, nil
}
