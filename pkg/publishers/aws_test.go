package publishers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSQSClient struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQSClient) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-123")}, nil
}

type fakeSNSClient struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNSClient) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-456")}, nil
}

func TestSQSPublisherSendsCouponEvent(t *testing.T) {
	client := &fakeSQSClient{}
	pub := &sqsPublisher{id: "q", typ: TypeSQS, queueURL: "https://example.com/queue", client: client, log: noopLogger{}}

	if err := pub.Publish(context.Background(), testEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if client.input == nil {
		t.Fatalf("client was not called")
	}
	if got := aws.ToString(client.input.QueueUrl); got != "https://example.com/queue" {
		t.Fatalf("QueueUrl = %s", got)
	}
	attr, ok := client.input.MessageAttributes["store"]
	if !ok || aws.ToString(attr.StringValue) != "myntra" || aws.ToString(attr.DataType) != "String" {
		t.Fatalf("store attribute missing or wrong: %#v", attr)
	}
	body := aws.ToString(client.input.MessageBody)
	if !strings.Contains(body, `"identity_key":"myntra_save20_20"`) || !strings.Contains(body, `"run_id":"run-1"`) {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestSQSPublisherReturnsSendError(t *testing.T) {
	pub := &sqsPublisher{id: "q", queueURL: "u", client: &fakeSQSClient{err: errors.New("boom")}, log: noopLogger{}}
	if err := pub.Publish(context.Background(), testEvent()); err == nil {
		t.Fatalf("expected error from Publish")
	}
}

func TestSNSPublisherSendsCouponEvent(t *testing.T) {
	client := &fakeSNSClient{}
	pub := &snsPublisher{id: "t", topicARN: "arn:aws:sns:::coupons", client: client, log: noopLogger{}}

	if err := pub.Publish(context.Background(), testEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := aws.ToString(client.input.TopicArn); got != "arn:aws:sns:::coupons" {
		t.Fatalf("TopicArn = %s", got)
	}
	if attr := client.input.MessageAttributes["store"]; aws.ToString(attr.StringValue) != "myntra" {
		t.Fatalf("store attribute wrong: %#v", attr)
	}
	if !strings.Contains(aws.ToString(client.input.Message), `"code":"SAVE20"`) {
		t.Fatalf("message missing coupon: %s", aws.ToString(client.input.Message))
	}
}

func TestSNSPublisherReturnsSendError(t *testing.T) {
	pub := &snsPublisher{id: "t", topicARN: "arn", client: &fakeSNSClient{err: errors.New("boom")}, log: noopLogger{}}
	if err := pub.Publish(context.Background(), testEvent()); err == nil {
		t.Fatalf("expected error from Publish")
	}
}

func TestNewSQSPublisherWithStaticCredentials(t *testing.T) {
	pub, err := newSQSPublisher(context.Background(), PublisherConfig{
		ID:   "q",
		Type: TypeSQS,
		SQS: &SQSPublisherConfig{
			QueueURL: "http://localhost:4566/000000000000/coupons",
			AWSAccess: AWSAccess{
				Region:          "ap-south-1",
				Endpoint:        "http://localhost:4566",
				AccessKeyID:     "test",
				SecretAccessKey: "test",
			},
		},
	}, nil)
	if err != nil {
		t.Fatalf("newSQSPublisher: %v", err)
	}
	if pub.ID() != "q" || pub.Type() != TypeSQS {
		t.Fatalf("unexpected publisher %s/%s", pub.ID(), pub.Type())
	}
}
