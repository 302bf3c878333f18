package aws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: sdkaws.String("m-1")}, nil
}

func TestSNSClient_PublishWithType(t *testing.T) {
	fake := &fakeSNS{}
	c := &SNSClient{client: fake}

	err := c.PublishWithType(context.Background(), "arn:aws:sns:eu-west-2:000000000000:order-events", "order.confirmed", []byte(`{"orderId":"o-1"}`))
	require.NoError(t, err)
	require.Len(t, fake.inputs, 1)

	in := fake.inputs[0]
	assert.Equal(t, `{"orderId":"o-1"}`, *in.Message)
	assert.Equal(t, "order.confirmed", *in.MessageAttributes["type"].StringValue)
}

func TestSNSClient_Errors(t *testing.T) {
	c := &SNSClient{client: &fakeSNS{err: errors.New("throttled")}}

	assert.Error(t, c.Publish(context.Background(), "", []byte("x")))
	assert.ErrorContains(t, c.Publish(context.Background(), "arn:topic", []byte("x")), "throttled")
}

type fakeSecrets struct {
	calls  int
	values map[string]string
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	v, ok := f.values[*in.SecretId]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: sdkaws.String(v)}, nil
}

func TestSecretsClient_CachesAndApplies(t *testing.T) {
	fake := &fakeSecrets{values: map[string]string{
		"order/DB_CREDENTIALS": `{"POSTGRES_USER":"svc","POSTGRES_PASSWORD":"pw","POSTGRES_HOST":""}`,
	}}
	c := &SecretsClient{client: fake, cache: map[string]string{}}

	user, password, host := "", "", "localhost"
	err := c.ApplySecret(context.Background(), "order/DB_CREDENTIALS", map[string]*string{
		"POSTGRES_USER":     &user,
		"POSTGRES_PASSWORD": &password,
		"POSTGRES_HOST":     &host,
	})
	require.NoError(t, err)
	assert.Equal(t, "svc", user)
	assert.Equal(t, "pw", password)
	assert.Equal(t, "localhost", host, "empty secret values must not override")

	_, err = c.GetSecret(context.Background(), "order/DB_CREDENTIALS")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)

	_, err = c.GetSecret(context.Background(), "missing")
	assert.Error(t, err)
}

func TestLoadAWSConfig_LocalStack(t *testing.T) {
	t.Setenv("AWS_REGION", "eu-west-2")
	t.Setenv("AWS_SNS_ENDPOINT", "")
	t.Setenv("AWS_ENDPOINT", "http://localhost:4566")
	t.Setenv("AWS_ACCESS_KEY_ID", "")

	cfg, err := LoadAWSConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "eu-west-2", cfg.Region)
	require.NotNil(t, cfg.BaseEndpoint)
	assert.Equal(t, "http://localhost:4566", *cfg.BaseEndpoint)

	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", creds.AccessKeyID)
}

type fakeSQS struct {
	mu       sync.Mutex
	batches  [][]sqstypes.Message
	err      error
	deleted  []string
	receives int
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	f.receives++
	if f.err != nil {
		err := f.err
		f.mu.Unlock()
		return nil, err
	}
	if len(f.batches) == 0 {
		f.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	f.mu.Unlock()
	return &sqs.ReceiveMessageOutput{Messages: batch}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, *in.ReceiptHandle)
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) deletedHandles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func sqsMessage(id, body string) sqstypes.Message {
	return sqstypes.Message{MessageId: sdkaws.String(id), ReceiptHandle: sdkaws.String("rh-" + id), Body: sdkaws.String(body)}
}

func TestSQSConsumer_DeletesOnlyHandled(t *testing.T) {
	fake := &fakeSQS{batches: [][]sqstypes.Message{{
		sqsMessage("1", "ok"),
		sqsMessage("2", "fail"),
		{MessageId: sdkaws.String("3"), ReceiptHandle: sdkaws.String("rh-3")},
	}}}
	c := &SQSConsumer{client: fake, queueURL: "http://localhost:4566/000000000000/order-events", log: zap.NewNop()}

	var seen []string
	n, err := c.pollOnce(context.Background(), func(_ context.Context, body string) error {
		seen = append(seen, body)
		if body == "fail" {
			return errors.New("redis down")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"ok", "fail"}, seen)
	assert.Equal(t, []string{"rh-1"}, fake.deletedHandles())
}

func TestSQSConsumer_ReceiveError(t *testing.T) {
	c := &SQSConsumer{client: &fakeSQS{err: errors.New("AccessDenied")}, queueURL: "q", log: zap.NewNop()}
	_, err := c.pollOnce(context.Background(), func(context.Context, string) error { return nil })
	assert.ErrorContains(t, err, "AccessDenied")
}

func TestSQSConsumer_StartPollingStopsOnCancel(t *testing.T) {
	fake := &fakeSQS{batches: [][]sqstypes.Message{{sqsMessage("1", "ok")}}}
	c := &SQSConsumer{client: fake, queueURL: "q", log: zap.NewNop(), retryDelay: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.StartPolling(ctx, func(context.Context, string) error { return nil })
	}()

	require.Eventually(t, func() bool { return len(fake.deletedHandles()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("StartPolling did not return after cancel")
	}
}

func TestUnwrapSNS(t *testing.T) {
	inner := `{"type":"order.cart_clear_failed","userId":"u1"}`
	envelope, err := json.Marshal(map[string]string{"Type": "Notification", "MessageId": "m-1", "Message": inner})
	require.NoError(t, err)

	assert.Equal(t, inner, UnwrapSNS(string(envelope)))
	assert.Equal(t, inner, UnwrapSNS(inner), "raw delivery passes through")
	assert.Equal(t, "not json", UnwrapSNS("not json"))
}
