package dynamodb

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/smithy-go"

	"askingwho-backend/application/ports"
)

// unavailableError keeps the SDK error reachable through errors.As while
// also matching ports.ErrUnavailable
type unavailableError struct {
	code string
	err  error
}

func (e *unavailableError) Error() string   { return "dynamodb " + e.code + ": " + e.err.Error() }
func (e *unavailableError) Unwrap() []error { return []error{ports.ErrUnavailable, e.err} }

// classify tags throttling and capacity errors so services can answer 503
// instead of a generic store failure
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return err
	}
	switch ae.ErrorCode() {
	case "ProvisionedThroughputExceededException",
		"RequestLimitExceeded",
		"ThrottlingException",
		"LimitExceededException",
		"InternalServerError":
		return &unavailableError{code: ae.ErrorCode(), err: err}
	}
	return err
}

// classifyingClient decorates an API so every call reports through classify
type classifyingClient struct {
	API
}

func (c classifyingClient) GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	out, err := c.API.GetItem(ctx, in, opts...)
	return out, classify(err)
}

func (c classifyingClient) PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	out, err := c.API.PutItem(ctx, in, opts...)
	return out, classify(err)
}

func (c classifyingClient) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	out, err := c.API.UpdateItem(ctx, in, opts...)
	return out, classify(err)
}

func (c classifyingClient) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	out, err := c.API.DeleteItem(ctx, in, opts...)
	return out, classify(err)
}

func (c classifyingClient) Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	out, err := c.API.Query(ctx, in, opts...)
	return out, classify(err)
}

func (c classifyingClient) Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	out, err := c.API.Scan(ctx, in, opts...)
	return out, classify(err)
}

func (c classifyingClient) BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	out, err := c.API.BatchGetItem(ctx, in, opts...)
	return out, classify(err)
}

func (c classifyingClient) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	out, err := c.API.BatchWriteItem(ctx, in, opts...)
	return out, classify(err)
}

func (c classifyingClient) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	out, err := c.API.TransactWriteItems(ctx, in, opts...)
	return out, classify(err)
}
