package leads

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/wolfman30/lead-crm/pkg/logging"
)

const dynamoBackend = "dynamodb"

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStore keeps one item per lead with notes as a native list attribute.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore builds a store backed by the provided DynamoDB client.
func NewDynamoStore(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoStore {
	if client == nil {
		panic("leads: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("leads: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		logger:    logger.Component("lead_dynamo_store"),
	}
}

func leadKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func decodeDynamoLead(item map[string]types.AttributeValue) (*Lead, error) {
	var lead Lead
	if err := attributevalue.UnmarshalMap(item, &lead); err != nil {
		return nil, fmt.Errorf("decode lead: %w", err)
	}
	if lead.Notes == nil {
		lead.Notes = []Note{}
	}
	lead.CreatedAt = lead.CreatedAt.UTC()
	lead.UpdatedAt = lead.UpdatedAt.UTC()
	for i := range lead.Notes {
		lead.Notes[i].CreatedAt = lead.Notes[i].CreatedAt.UTC()
	}
	return &lead, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// Create writes a new item, refusing to overwrite an existing id.
func (s *DynamoStore) Create(ctx context.Context, in NewLead) (*Lead, error) {
	if err := checkNewLead(in); err != nil {
		return nil, err
	}
	lead := buildLead(in, timestamp())

	item, err := attributevalue.MarshalMap(lead)
	if err != nil {
		return nil, storageErr(dynamoBackend, "create", fmt.Errorf("marshal lead: %w", err))
	}
	item[updatedAtMicrosAttr] = microsAV(lead.UpdatedAt)
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return nil, storageErr(dynamoBackend, "create", err)
	}
	return lead, nil
}

// List scans the whole table and filters in process.
func (s *DynamoStore) List(ctx context.Context, filter Filter) ([]*Lead, error) {
	var all []*Lead
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, storageErr(dynamoBackend, "list", err)
		}
		for _, item := range page.Items {
			lead, err := decodeDynamoLead(item)
			if err != nil {
				return nil, storageErr(dynamoBackend, "list", err)
			}
			all = append(all, lead)
		}
	}
	return filterLeads(all, filter), nil
}

// GetByID fetches a single item with a consistent read.
func (s *DynamoStore) GetByID(ctx context.Context, id string) (*Lead, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            leadKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, storageErr(dynamoBackend, "get", err)
	}
	if out.Item == nil {
		return nil, ErrLeadNotFound
	}
	lead, err := decodeDynamoLead(out.Item)
	if err != nil {
		return nil, storageErr(dynamoBackend, "get", err)
	}
	return lead, nil
}

// updatedAtMicrosAttr mirrors updatedAt as a number so the update condition
// can compare it; the RFC 3339 string attribute does not sort reliably.
const updatedAtMicrosAttr = "updatedAtUs"

// maxUpdateAttempts bounds retries after the stored updatedAt turned out to
// be ahead of the local clock.
const maxUpdateAttempts = 3

func microsAV(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.UnixMicro(), 10)}
}

// Update applies the patch, the optional note and updatedAt in one
// conditional UpdateItem. The condition also refuses to move updatedAt
// backwards; when the local clock is behind the stored value the write is
// retried with the stored updatedAt.
func (s *DynamoStore) Update(ctx context.Context, id string, patch LeadPatch) (*Lead, error) {
	if err := checkPatch(patch); err != nil {
		return nil, err
	}
	at := timestamp()
	stamp := at

	for attempt := 1; ; attempt++ {
		in, err := s.updateInput(id, patch, at, stamp)
		if err != nil {
			return nil, storageErr(dynamoBackend, "update", err)
		}
		out, err := s.client.UpdateItem(ctx, in)
		if err == nil {
			lead, err := decodeDynamoLead(out.Attributes)
			if err != nil {
				return nil, storageErr(dynamoBackend, "update", err)
			}
			return lead, nil
		}

		var ccf *types.ConditionalCheckFailedException
		if !errors.As(err, &ccf) {
			return nil, storageErr(dynamoBackend, "update", err)
		}
		if len(ccf.Item) == 0 {
			return nil, ErrLeadNotFound
		}
		current, decodeErr := decodeDynamoLead(ccf.Item)
		if decodeErr != nil {
			return nil, storageErr(dynamoBackend, "update", decodeErr)
		}
		if attempt >= maxUpdateAttempts {
			return nil, storageErr(dynamoBackend, "update", fmt.Errorf("updatedAt kept moving ahead of %s", stamp.Format(time.RFC3339Nano)))
		}
		s.logger.Warn("stored updatedAt ahead of local clock, retrying",
			"lead_id", id,
			"stored", current.UpdatedAt,
			"local", at,
		)
		stamp = current.UpdatedAt.UTC().Truncate(time.Microsecond)
		if stamp.Before(at) {
			stamp = at
		}
	}
}

func (s *DynamoStore) updateInput(id string, patch LeadPatch, at, stamp time.Time) (*dynamodb.UpdateItemInput, error) {
	updatedAV, err := attributevalue.Marshal(stamp)
	if err != nil {
		return nil, err
	}
	names := map[string]string{
		"#updatedAt":   "updatedAt",
		"#updatedAtUs": updatedAtMicrosAttr,
	}
	values := map[string]types.AttributeValue{
		":updatedAt":   updatedAV,
		":updatedAtUs": microsAV(stamp),
	}
	sets := []string{"#updatedAt = :updatedAt", "#updatedAtUs = :updatedAtUs"}

	setString := func(attr string, v *string) {
		if v == nil {
			return
		}
		names["#"+attr] = attr
		values[":"+attr] = &types.AttributeValueMemberS{Value: *v}
		sets = append(sets, fmt.Sprintf("#%s = :%s", attr, attr))
	}
	setString("name", patch.Name)
	setString("email", patch.Email)
	setString("phone", patch.Phone)
	setString("source", patch.Source)
	if patch.Status != nil {
		status := string(*patch.Status)
		setString("status", &status)
	}
	if patch.Note != nil {
		noteAV, err := attributevalue.Marshal([]Note{{ID: newID(), Text: *patch.Note, CreatedAt: at}})
		if err != nil {
			return nil, err
		}
		names["#notes"] = "notes"
		values[":note"] = noteAV
		values[":empty"] = &types.AttributeValueMemberL{Value: []types.AttributeValue{}}
		sets = append(sets, "#notes = list_append(if_not_exists(#notes, :empty), :note)")
	}

	return &dynamodb.UpdateItemInput{
		TableName:                           aws.String(s.tableName),
		Key:                                 leadKey(id),
		UpdateExpression:                    aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:                 aws.String(updateCondition),
		ExpressionAttributeNames:            names,
		ExpressionAttributeValues:           values,
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}, nil
}

// updateCondition requires the item to exist and never lets updatedAt go
// backwards. Items written before the numeric mirror existed pass.
const updateCondition = "attribute_exists(id) AND (attribute_not_exists(#updatedAtUs) OR #updatedAtUs <= :updatedAtUs)"

// AppendNote adds a note and bumps updatedAt in one UpdateItem.
func (s *DynamoStore) AppendNote(ctx context.Context, id string, text string) (*Lead, error) {
	if err := checkNoteText(text); err != nil {
		return nil, err
	}
	return s.Update(ctx, id, LeadPatch{Note: &text})
}

// Delete removes the item if it exists.
func (s *DynamoStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 leadKey(id),
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrLeadNotFound
		}
		return storageErr(dynamoBackend, "delete", err)
	}
	return nil
}

// Close is a no-op; the client holds no resources.
func (s *DynamoStore) Close() error {
	return nil
}
