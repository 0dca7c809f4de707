package deployment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore persists deployment requests to DynamoDB. Status transitions
// are compare-and-set on the current status so concurrent ApplyStatus calls
// for the same request cannot both win.
type DynamoStore struct {
	client           dynamoAPI
	tableName        string
	byRequesterIndex string
	logger           *logging.Logger
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore builds a store backed by the provided DynamoDB client.
func NewDynamoStore(client dynamoAPI, tableName, byRequesterIndex string, logger *logging.Logger) *DynamoStore {
	if client == nil {
		panic("deployment: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("deployment: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStore{
		client:           client,
		tableName:        tableName,
		byRequesterIndex: byRequesterIndex,
		logger:           logger,
	}
}

// Create inserts a new pending_approval record. A retry with the same
// requestId is absorbed: the original record stands.
func (s *DynamoStore) Create(ctx context.Context, req *Request) error {
	if req == nil || req.RequestID == "" {
		return fmt.Errorf("%w: request and requestId required", ErrValidation)
	}
	req.Status = StatusPendingApproval
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}

	item, err := attributevalue.MarshalMap(req)
	if err != nil {
		return fmt.Errorf("deployment: marshal request: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(requestId)"),
	})
	if err != nil {
		var conditional *types.ConditionalCheckFailedException
		if errors.As(err, &conditional) {
			// Same requestId already durably recorded.
			return nil
		}
		return fmt.Errorf("%w: persist request: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Get returns the request only to its requester. A mismatched requester sees
// ErrForbidden, not ErrNotFound, but never the record itself.
func (s *DynamoStore) Get(ctx context.Context, requestID, requesterID string) (*Request, error) {
	req, err := s.GetAny(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != requesterID {
		return nil, ErrForbidden
	}
	return req, nil
}

// GetAny fetches a request without the requester check.
func (s *DynamoStore) GetAny(ctx context.Context, requestID string) (*Request, error) {
	if requestID == "" {
		return nil, fmt.Errorf("%w: requestId required", ErrValidation)
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"requestId": &types.AttributeValueMemberS{Value: requestID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get request: %v", ErrStorageUnavailable, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var req Request
	if err := attributevalue.UnmarshalMap(out.Item, &req); err != nil {
		return nil, fmt.Errorf("deployment: unmarshal request: %w", err)
	}
	return &req, nil
}

// ApplyStatus applies a legal transition exactly once. Duplicate legal
// transitions return NoOp("already-in-state"); illegal ones return
// NoOp("illegal-transition"); neither is an error and neither writes a
// second timestamp.
func (s *DynamoStore) ApplyStatus(ctx context.Context, in ApplyInput) (ApplyOutcome, error) {
	current, err := s.GetAny(ctx, in.RequestID)
	if err != nil {
		return ApplyOutcome{}, err
	}

	if current.Status == in.NewStatus {
		return ApplyOutcome{NoOpReason: NoOpAlreadyInState, Request: current}, nil
	}
	if !TransitionAllowed(current.Status, in.NewStatus) {
		s.logger.Warn("rejected illegal status transition",
			"request_id", in.RequestID,
			"from", current.Status,
			"to", in.NewStatus,
		)
		return ApplyOutcome{NoOpReason: NoOpIllegalTransition, Request: current}, nil
	}

	update, err := buildStatusUpdate(in)
	if err != nil {
		return ApplyOutcome{}, err
	}
	update.values[":from"] = &types.AttributeValueMemberS{Value: string(current.Status)}
	update.names["#status"] = "status"
	update.values[":status"] = &types.AttributeValueMemberS{Value: string(in.NewStatus)}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"requestId": &types.AttributeValueMemberS{Value: in.RequestID},
		},
		UpdateExpression:          aws.String(update.expression),
		ConditionExpression:       aws.String(update.condition),
		ExpressionAttributeNames:  update.names,
		ExpressionAttributeValues: update.values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var conditional *types.ConditionalCheckFailedException
		if errors.As(err, &conditional) {
			// Lost a concurrent compare-and-set. Re-read to classify.
			latest, readErr := s.GetAny(ctx, in.RequestID)
			if readErr != nil {
				return ApplyOutcome{}, readErr
			}
			reason := NoOpIllegalTransition
			if latest.Status == in.NewStatus {
				reason = NoOpAlreadyInState
			}
			return ApplyOutcome{NoOpReason: reason, Request: latest}, nil
		}
		return ApplyOutcome{}, fmt.Errorf("%w: apply status: %v", ErrStorageUnavailable, err)
	}

	var updated Request
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return ApplyOutcome{}, fmt.Errorf("deployment: unmarshal updated request: %w", err)
	}
	return ApplyOutcome{Applied: true, Request: &updated}, nil
}

// ClaimExecution performs a conditional write of executionStartedAt. The
// condition requires the request to be approved and still unclaimed, so of
// any number of concurrent deliveries exactly one write succeeds; the rest
// see a conditional failure and report false.
func (s *DynamoStore) ClaimExecution(ctx context.Context, requestID string) (bool, error) {
	if requestID == "" {
		return false, fmt.Errorf("%w: requestId required", ErrValidation)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"requestId": &types.AttributeValueMemberS{Value: requestID},
		},
		UpdateExpression:    aws.String("SET executionStartedAt = :ts"),
		ConditionExpression: aws.String("attribute_exists(requestId) AND #status = :approved AND attribute_not_exists(executionStartedAt)"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ts":       &types.AttributeValueMemberS{Value: now},
			":approved": &types.AttributeValueMemberS{Value: string(StatusApproved)},
		},
	})
	if err != nil {
		var conditional *types.ConditionalCheckFailedException
		if errors.As(err, &conditional) {
			return false, nil
		}
		return false, fmt.Errorf("%w: claim execution: %v", ErrStorageUnavailable, err)
	}
	return true, nil
}

type statusUpdate struct {
	expression string
	condition  string
	names      map[string]string
	values     map[string]types.AttributeValue
}

// buildStatusUpdate prepares the stage-specific write. Each lifecycle stage
// writes its timestamp exactly once; the condition guards both the CAS on
// status and the single write of the stage timestamp.
func buildStatusUpdate(in ApplyInput) (statusUpdate, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	update := statusUpdate{
		names:  map[string]string{},
		values: map[string]types.AttributeValue{":ts": &types.AttributeValueMemberS{Value: now}},
	}

	switch in.NewStatus {
	case StatusApproved:
		update.expression = "SET #status = :status, approvedAt = :ts, approvedBy = :actor"
		update.condition = "#status = :from AND attribute_not_exists(approvedAt)"
		update.values[":actor"] = &types.AttributeValueMemberS{Value: in.Actor}
	case StatusRejected:
		update.expression = "SET #status = :status, rejectedAt = :ts, rejectedBy = :actor"
		update.condition = "#status = :from AND attribute_not_exists(rejectedAt)"
		update.values[":actor"] = &types.AttributeValueMemberS{Value: in.Actor}
	case StatusCompleted, StatusFailed:
		result := in.Result
		if result == nil {
			result = &ExecutionResult{}
		}
		resultAttr, err := attributevalue.Marshal(result)
		if err != nil {
			return statusUpdate{}, fmt.Errorf("deployment: marshal result: %w", err)
		}
		update.expression = "SET #status = :status, executedAt = :ts, #result = :result"
		update.condition = "#status = :from AND attribute_not_exists(executedAt)"
		update.names["#result"] = "result"
		update.values[":result"] = resultAttr
	default:
		return statusUpdate{}, fmt.Errorf("%w: unsupported target status %q", ErrValidation, in.NewStatus)
	}
	return update, nil
}

// ListByRequester queries the requester GSI, newest first.
func (s *DynamoStore) ListByRequester(ctx context.Context, requesterID string, limit int) ([]Request, error) {
	if requesterID == "" {
		return nil, fmt.Errorf("%w: requesterId required", ErrValidation)
	}
	if limit <= 0 {
		limit = 25
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(s.byRequesterIndex),
		KeyConditionExpression: aws.String("requesterId = :requester"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":requester": &types.AttributeValueMemberS{Value: requesterID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list requests: %v", ErrStorageUnavailable, err)
	}

	requests := make([]Request, 0, len(out.Items))
	for _, item := range out.Items {
		var req Request
		if err := attributevalue.UnmarshalMap(item, &req); err != nil {
			s.logger.Warn("skipping undecodable request item", "error", err)
			continue
		}
		requests = append(requests, req)
	}
	return requests, nil
}
