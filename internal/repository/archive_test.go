package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"intake-agent/internal/domain"
)

type fakeDynamoDB struct {
	input *dynamodb.TransactWriteItemsInput
	err   error
}

func (f *fakeDynamoDB) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.input = in
	return &dynamodb.TransactWriteItemsOutput{}, f.err
}

func stringAttr(t *testing.T, item map[string]types.AttributeValue, key string) string {
	t.Helper()
	attr, ok := item[key].(*types.AttributeValueMemberS)
	require.True(t, ok, "attribute %q missing or not a string", key)
	return attr.Value
}

func numberAttr(t *testing.T, item map[string]types.AttributeValue, key string) string {
	t.Helper()
	attr, ok := item[key].(*types.AttributeValueMemberN)
	require.True(t, ok, "attribute %q missing or not a number", key)
	return attr.Value
}

func archivedSession() domain.Session {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return domain.Session{
		ID:     "conv-1",
		UserID: "user-7",
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: "I need a website", Timestamp: created},
			{Role: domain.RoleAssistant, Content: "What kind of site?", Timestamp: created.Add(time.Second)},
		},
		Phase:                domain.PhaseComplete,
		ProblemType:          "web_development",
		Requirements:         map[string]any{"platform": "Shopify"},
		ReadinessScore:       100,
		ConfirmationAttempts: 1,
		CreatedAt:            created,
		UpdatedAt:            created.Add(time.Minute),
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "conversations")
	require.Error(t, err)

	_, err = New(&fakeDynamoDB{}, "  ")
	require.Error(t, err)
}

func TestArchiveConversation_WritesMetaAndTranscript(t *testing.T) {
	api := &fakeDynamoDB{}
	archive, err := New(api, "conversations")
	require.NoError(t, err)

	require.NoError(t, archive.ArchiveConversation(context.Background(), archivedSession()))
	require.NotNil(t, api.input)
	require.Len(t, api.input.TransactItems, 2)

	meta := api.input.TransactItems[0].Put
	require.NotNil(t, meta)
	require.Equal(t, "conversations", *meta.TableName)
	require.Equal(t, "CONV#conv-1", stringAttr(t, meta.Item, "PK"))
	require.Equal(t, "META#", stringAttr(t, meta.Item, "SK"))
	require.Equal(t, "complete", stringAttr(t, meta.Item, "phase"))
	require.Equal(t, "web_development", stringAttr(t, meta.Item, "problemType"))
	require.Equal(t, "user-7", stringAttr(t, meta.Item, "userId"))
	require.Equal(t, "100", numberAttr(t, meta.Item, "readinessScore"))
	require.Equal(t, "1", numberAttr(t, meta.Item, "confirmationAttempts"))
	require.Equal(t, "2", numberAttr(t, meta.Item, "messageCount"))
	require.Equal(t, "2026-03-01T12:00:00Z", stringAttr(t, meta.Item, "createdAt"))
	require.NotEmpty(t, numberAttr(t, meta.Item, "ttl"))
	require.NotContains(t, meta.Item, "escalationReason")

	var requirements map[string]any
	require.NoError(t, json.Unmarshal([]byte(stringAttr(t, meta.Item, "requirements")), &requirements))
	require.Equal(t, "Shopify", requirements["platform"])

	transcript := api.input.TransactItems[1].Put
	require.NotNil(t, transcript)
	require.Equal(t, "CONV#conv-1", stringAttr(t, transcript.Item, "PK"))
	require.Equal(t, "TRANSCRIPT#", stringAttr(t, transcript.Item, "SK"))

	var messages []domain.Message
	require.NoError(t, json.Unmarshal([]byte(stringAttr(t, transcript.Item, "messages")), &messages))
	require.Len(t, messages, 2)
	require.Equal(t, "I need a website", messages[0].Content)
}

func TestArchiveConversation_EscalatedSessionCarriesReason(t *testing.T) {
	api := &fakeDynamoDB{}
	archive, err := New(api, "conversations")
	require.NoError(t, err)

	sess := archivedSession()
	sess.Phase = domain.PhaseHumanEscalation
	sess.EscalationReason = "User needs internal discussion"
	require.NoError(t, archive.ArchiveConversation(context.Background(), sess))

	meta := api.input.TransactItems[0].Put
	require.Equal(t, "human_escalation", stringAttr(t, meta.Item, "phase"))
	require.Equal(t, "User needs internal discussion", stringAttr(t, meta.Item, "escalationReason"))
}

func TestArchiveConversation_EmptySessionID(t *testing.T) {
	archive, err := New(&fakeDynamoDB{}, "conversations")
	require.NoError(t, err)

	err = archive.ArchiveConversation(context.Background(), domain.Session{})
	require.Error(t, err)
}

func TestArchiveConversation_TransactError(t *testing.T) {
	api := &fakeDynamoDB{err: errors.New("throttled")}
	archive, err := New(api, "conversations")
	require.NoError(t, err)

	err = archive.ArchiveConversation(context.Background(), archivedSession())
	require.ErrorContains(t, err, "throttled")
}
