package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"gpu-genie-allocator/admission"
)

// Dynamo is the production Store backed by three DynamoDB tables:
// reservations, users, and GPU server inventory. Time windows are stored as
// RFC3339 strings so overlap filtering can compare them lexicographically.
type Dynamo struct {
	client       *dynamodb.Client
	reservations string
	users        string
	servers      string
}

// DynamoTables names the backing tables.
type DynamoTables struct {
	Reservations string
	Users        string
	Servers      string
}

func NewDynamo(ctx context.Context, region string, tables DynamoTables) (*Dynamo, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Dynamo{
		client:       dynamodb.NewFromConfig(cfg),
		reservations: tables.Reservations,
		users:        tables.Users,
		servers:      tables.Servers,
	}, nil
}

type userItem struct {
	ID       string `dynamodbav:"id"`
	Email    string `dynamodbav:"email"`
	Name     string `dynamodbav:"name"`
	Role     string `dynamodbav:"role"`
	Priority int    `dynamodbav:"priority"`
}

type parsedRequestItem struct {
	GPUType   string `dynamodbav:"gpuType"`
	Quantity  int    `dynamodbav:"quantity"`
	StartTime string `dynamodbav:"startTime"`
	EndTime   string `dynamodbav:"endTime"`
	Duration  int    `dynamodbav:"duration"`
}

type reservationItem struct {
	ID        string            `dynamodbav:"id"`
	UserID    string            `dynamodbav:"userId"`
	Request   string            `dynamodbav:"request"`
	Parsed    parsedRequestItem `dynamodbav:"parsedRequest"`
	StartTime string            `dynamodbav:"startTime"`
	EndTime   string            `dynamodbav:"endTime"`
	Status    string            `dynamodbav:"status"`
	Priority  int               `dynamodbav:"priority"`
	CreatedAt string            `dynamodbav:"createdAt"`
	UpdatedAt string            `dynamodbav:"updatedAt"`
}

type serverItem struct {
	ID            string `dynamodbav:"id"`
	Name          string `dynamodbav:"name"`
	GPUType       string `dynamodbav:"gpuType"`
	TotalGPUs     int    `dynamodbav:"totalGpus"`
	AvailableGPUs int    `dynamodbav:"availableGpus"`
	Status        string `dynamodbav:"status"`
}

func (d *Dynamo) GetUser(ctx context.Context, id string) (*admission.Requester, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.users),
		Key: map[string]ddbtypes.AttributeValue{
			"id": &ddbtypes.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	var u userItem
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user %s: %w", id, err)
	}
	return &admission.Requester{
		ID:           u.ID,
		Name:         u.Name,
		Role:         admission.Role(u.Role),
		BasePriority: u.Priority,
	}, nil
}

func (d *Dynamo) FindOverlapping(ctx context.Context, gpuType admission.GPUType, start, end time.Time) ([]admission.ExistingAllocation, error) {
	out, err := d.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(d.reservations),
		FilterExpression: aws.String("parsedRequest.gpuType = :gpuType AND NOT (endTime <= :startTime OR startTime >= :endTime)"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":gpuType":   &ddbtypes.AttributeValueMemberS{Value: string(gpuType)},
			":startTime": &ddbtypes.AttributeValueMemberS{Value: start.UTC().Format(time.RFC3339)},
			":endTime":   &ddbtypes.AttributeValueMemberS{Value: end.UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("scan overlapping reservations: %w", err)
	}
	var items []reservationItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("unmarshal reservations: %w", err)
	}
	allocations := make([]admission.ExistingAllocation, 0, len(items))
	for _, it := range items {
		startAt, err := time.Parse(time.RFC3339, it.StartTime)
		if err != nil {
			continue
		}
		endAt, err := time.Parse(time.RFC3339, it.EndTime)
		if err != nil {
			continue
		}
		allocations = append(allocations, admission.ExistingAllocation{
			ID:        it.ID,
			UserID:    it.UserID,
			GPUType:   admission.GPUType(it.Parsed.GPUType),
			Quantity:  it.Parsed.Quantity,
			StartTime: startAt,
			EndTime:   endAt,
			Status:    admission.AllocationStatus(it.Status),
		})
	}
	return allocations, nil
}

func (d *Dynamo) AvailableCapacity(ctx context.Context, gpuType admission.GPUType) (int, error) {
	out, err := d.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(d.servers),
		FilterExpression: aws.String("gpuType = :gpuType AND #status = :active"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":gpuType": &ddbtypes.AttributeValueMemberS{Value: string(gpuType)},
			":active":  &ddbtypes.AttributeValueMemberS{Value: ServerActive},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("scan gpu servers: %w", err)
	}
	var servers []serverItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &servers); err != nil {
		return 0, fmt.Errorf("unmarshal gpu servers: %w", err)
	}
	total := 0
	for _, s := range servers {
		total += s.AvailableGPUs
	}
	return total, nil
}

func (d *Dynamo) CreateReservation(ctx context.Context, r *Reservation) error {
	item, err := attributevalue.MarshalMap(reservationItem{
		ID:      r.ID,
		UserID:  r.UserID,
		Request: r.Request,
		Parsed: parsedRequestItem{
			GPUType:   string(r.Parsed.GPUType),
			Quantity:  r.Parsed.Quantity,
			StartTime: r.Parsed.StartTime.UTC().Format(time.RFC3339),
			EndTime:   r.Parsed.EndTime.UTC().Format(time.RFC3339),
			Duration:  r.Parsed.Duration,
		},
		StartTime: r.StartTime.UTC().Format(time.RFC3339),
		EndTime:   r.EndTime.UTC().Format(time.RFC3339),
		Status:    string(r.Status),
		Priority:  r.Priority,
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: r.UpdatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal reservation %s: %w", r.ID, err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.reservations),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put reservation %s: %w", r.ID, err)
	}
	return nil
}

func (d *Dynamo) UpdateReservationStatus(ctx context.Context, id string, status admission.AllocationStatus) error {
	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.reservations),
		Key: map[string]ddbtypes.AttributeValue{
			"id": &ddbtypes.AttributeValueMemberS{Value: id},
		},
		UpdateExpression: aws.String("SET #status = :status, updatedAt = :updatedAt"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":status":    &ddbtypes.AttributeValueMemberS{Value: string(status)},
			":updatedAt": &ddbtypes.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("update reservation %s: %w", id, err)
	}
	return nil
}

func (d *Dynamo) ListUserReservations(ctx context.Context, userID string) ([]Reservation, error) {
	out, err := d.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.reservations),
		IndexName:              aws.String("user-id-index"),
		KeyConditionExpression: aws.String("userId = :userId"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":userId": &ddbtypes.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query reservations for user %s: %w", userID, err)
	}
	var items []reservationItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("unmarshal reservations: %w", err)
	}
	reservations := make([]Reservation, 0, len(items))
	for _, it := range items {
		r, err := it.toReservation()
		if err != nil {
			continue
		}
		reservations = append(reservations, r)
	}
	return reservations, nil
}

func (it reservationItem) toReservation() (Reservation, error) {
	startAt, err := time.Parse(time.RFC3339, it.StartTime)
	if err != nil {
		return Reservation{}, err
	}
	endAt, err := time.Parse(time.RFC3339, it.EndTime)
	if err != nil {
		return Reservation{}, err
	}
	createdAt, _ := time.Parse(time.RFC3339, it.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, it.UpdatedAt)
	pStart, _ := time.Parse(time.RFC3339, it.Parsed.StartTime)
	pEnd, _ := time.Parse(time.RFC3339, it.Parsed.EndTime)
	return Reservation{
		ID:      it.ID,
		UserID:  it.UserID,
		Request: it.Request,
		Parsed: admission.StructuredRequest{
			GPUType:   admission.GPUType(it.Parsed.GPUType),
			Quantity:  it.Parsed.Quantity,
			StartTime: pStart,
			EndTime:   pEnd,
			Duration:  it.Parsed.Duration,
		},
		StartTime: startAt,
		EndTime:   endAt,
		Status:    admission.AllocationStatus(it.Status),
		Priority:  it.Priority,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}
