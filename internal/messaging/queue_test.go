package messaging

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/bl-concierge/internal/docextract"
)

type fakeSQS struct {
	sent     []string
	deleted  []string
	received []sqstypes.Message
	lastRecv *sqs.ReceiveMessageInput
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.lastRecv = in
	return &sqs.ReceiveMessageOutput{Messages: f.received}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSQueue(t *testing.T) {
	client := &fakeSQS{received: []sqstypes.Message{{MessageId: aws.String("m1"), Body: aws.String("{}"), ReceiptHandle: aws.String("rh-1")}}}
	q := NewSQSQueue(client, "https://sqs.local/inbound")
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, "body"))
	assert.Equal(t, []string{"body"}, client.sent)

	msgs, err := q.Receive(ctx, 5, 20)
	require.NoError(t, err)
	assert.Equal(t, []QueueMessage{{ID: "m1", Body: "{}", ReceiptHandle: "rh-1"}}, msgs)
	assert.Equal(t, int32(5), client.lastRecv.MaxNumberOfMessages)
	assert.Equal(t, int32(20), client.lastRecv.WaitTimeSeconds)

	require.NoError(t, q.Delete(ctx, ""))
	require.NoError(t, q.Delete(ctx, "rh-1"))
	assert.Equal(t, []string{"rh-1"}, client.deleted)
}

func TestMemoryQueueBatchesAndTimesOut(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()
	for _, body := range []string{"a", "b", "c"} {
		require.NoError(t, q.Send(ctx, body))
	}

	msgs, err := q.Receive(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].Body)
	assert.Equal(t, "b", msgs[1].Body)

	msgs, err = q.Receive(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	msgs, err = q.Receive(ctx, 2, 1)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMemoryQueueReceiveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryQueue(1).Receive(ctx, 1, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEncodeMessageAssignsIdentity(t *testing.T) {
	msg, body, err := encodeMessage(InboundMessage{
		Sender:   "cust-1",
		Document: &docextract.Document{Filename: "slip.pdf", ContentType: "application/pdf", Data: []byte("%PDF")},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.JobID)
	assert.Equal(t, msg.JobID, msg.MessageID)
	assert.False(t, msg.ReceivedAt.IsZero())

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	assert.Equal(t, "JVBERg==", raw["document"].(map[string]any)["data"])

	decoded, err := DecodeMessage(body)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), decoded.Document.Data)
	assert.Equal(t, msg.JobID, decoded.JobID)
}
