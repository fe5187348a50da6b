package dynamodb

import (
	"context"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsv2dynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsv2types "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	awsv2xray "github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"
	"github.com/aws/aws-xray-sdk-go/xray"

	"app-access/internal/domain"
	"app-access/internal/ports"
)

// api is the subset of the DynamoDB client the repositories call.
type api interface {
	UpdateItem(ctx context.Context, in *awsv2dynamodb.UpdateItemInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *awsv2dynamodb.QueryInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *awsv2dynamodb.ScanInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.ScanOutput, error)
}

type Client struct {
	db        api
	tableName string
	now       func() time.Time
}

func NewClient(ctx context.Context, region, tableName string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	awsv2xray.AWSV2Instrumentor(&cfg.APIOptions)
	client := awsv2dynamodb.NewFromConfig(cfg)
	return &Client{db: client, tableName: tableName, now: time.Now}, nil
}

// Permission items live under PK=USER#<id>, SK=APP#<id>; user profiles share
// the partition with SK=PROFILE.
func userPK(userID string) string   { return "USER#" + userID }
func userAppSK(appID string) string { return "APP#" + appID }

const (
	entityPermission = "USER_APP_PERMISSION"
	entityUser       = "USER"
)

type permissionItem struct {
	UserID    string `dynamodbav:"UserID"`
	AppID     string `dynamodbav:"AppID"`
	CanView   bool   `dynamodbav:"CanView"`
	CanUse    bool   `dynamodbav:"CanUse"`
	UpdatedAt string `dynamodbav:"UpdatedAt"`
}

func (it permissionItem) record() domain.PermissionRecord {
	updatedAt, _ := time.Parse(time.RFC3339, it.UpdatedAt)
	return domain.PermissionRecord{UserID: it.UserID, AppID: it.AppID, CanView: it.CanView, CanUse: it.CanUse, UpdatedAt: updatedAt}
}

type PermissionRepository struct{ client *Client }

type UserRepository struct{ client *Client }

func NewPermissionRepository(client *Client) *PermissionRepository {
	return &PermissionRepository{client: client}
}

func NewUserRepository(client *Client) *UserRepository {
	return &UserRepository{client: client}
}

// Upsert relies on UpdateItem creating the item when the key is absent, so a
// single call covers both the create and the overwrite case.
func (r *PermissionRepository) Upsert(ctx context.Context, key domain.PermissionKey, perm domain.Permission) (domain.PermissionRecord, error) {
	var out *awsv2dynamodb.UpdateItemOutput
	err := xray.Capture(ctx, "DynamoDB.UpsertUserAppPermission", func(ctx context.Context) error {
		var e error
		out, e = r.client.db.UpdateItem(ctx, &awsv2dynamodb.UpdateItemInput{
			TableName: aws.String(r.client.tableName),
			Key: map[string]awsv2types.AttributeValue{
				"PK": &awsv2types.AttributeValueMemberS{Value: userPK(key.UserID)},
				"SK": &awsv2types.AttributeValueMemberS{Value: userAppSK(key.AppID)},
			},
			UpdateExpression: aws.String("SET EntityType = :et, UserID = :uid, AppID = :aid, CanView = :v, CanUse = :u, UpdatedAt = :t"),
			ExpressionAttributeValues: map[string]awsv2types.AttributeValue{
				":et":  &awsv2types.AttributeValueMemberS{Value: entityPermission},
				":uid": &awsv2types.AttributeValueMemberS{Value: key.UserID},
				":aid": &awsv2types.AttributeValueMemberS{Value: key.AppID},
				":v":   &awsv2types.AttributeValueMemberBOOL{Value: perm.CanView},
				":u":   &awsv2types.AttributeValueMemberBOOL{Value: perm.CanUse},
				":t":   &awsv2types.AttributeValueMemberS{Value: r.client.now().UTC().Format(time.RFC3339)},
			},
			ReturnValues: awsv2types.ReturnValueAllNew,
		})
		return e
	})
	if err != nil {
		return domain.PermissionRecord{}, err
	}
	var item permissionItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &item); err != nil {
		return domain.PermissionRecord{}, err
	}
	return item.record(), nil
}

// Find queries each requested user's partition. An empty UserIDs filter
// scans every permission item instead.
func (r *PermissionRepository) Find(ctx context.Context, filter ports.PermissionFilter) ([]domain.PermissionRecord, error) {
	var items []map[string]awsv2types.AttributeValue
	if len(filter.UserIDs) == 0 {
		scanned, err := r.scanEntities(ctx, entityPermission)
		if err != nil {
			return nil, err
		}
		items = scanned
	}
	for _, userID := range filter.UserIDs {
		queried, err := r.queryUser(ctx, userID, filter.OnlyViewable)
		if err != nil {
			return nil, err
		}
		items = append(items, queried...)
	}

	records := make([]domain.PermissionRecord, 0, len(items))
	for _, raw := range items {
		var item permissionItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, err
		}
		rec := item.record()
		if filter.OnlyViewable && !rec.CanView {
			continue
		}
		if len(filter.AppIDs) > 0 && !slices.Contains(filter.AppIDs, rec.AppID) {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *PermissionRepository) queryUser(ctx context.Context, userID string, onlyViewable bool) ([]map[string]awsv2types.AttributeValue, error) {
	in := &awsv2dynamodb.QueryInput{
		TableName:              aws.String(r.client.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]awsv2types.AttributeValue{
			":pk": &awsv2types.AttributeValueMemberS{Value: userPK(userID)},
			":sk": &awsv2types.AttributeValueMemberS{Value: "APP#"},
		},
	}
	if onlyViewable {
		in.FilterExpression = aws.String("CanView = :view")
		in.ExpressionAttributeValues[":view"] = &awsv2types.AttributeValueMemberBOOL{Value: true}
	}
	var items []map[string]awsv2types.AttributeValue
	err := xray.Capture(ctx, "DynamoDB.QueryUserAppPermissions", func(ctx context.Context) error {
		p := awsv2dynamodb.NewQueryPaginator(r.client.db, in)
		for p.HasMorePages() {
			page, e := p.NextPage(ctx)
			if e != nil {
				return e
			}
			items = append(items, page.Items...)
		}
		return nil
	})
	return items, err
}

func (r *PermissionRepository) scanEntities(ctx context.Context, entityType string) ([]map[string]awsv2types.AttributeValue, error) {
	return scanByEntity(ctx, r.client, "DynamoDB.ScanUserAppPermissions", entityType)
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	items, err := scanByEntity(ctx, r.client, "DynamoDB.ScanUsers", entityUser)
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(items))
	for _, item := range items {
		raw := struct {
			ID    string `dynamodbav:"ID"`
			Email string `dynamodbav:"Email"`
			Name  string `dynamodbav:"Name"`
		}{}
		if err := attributevalue.UnmarshalMap(item, &raw); err != nil {
			return nil, err
		}
		users = append(users, domain.User{ID: raw.ID, Email: raw.Email, Name: raw.Name})
	}
	return users, nil
}

func scanByEntity(ctx context.Context, client *Client, segment, entityType string) ([]map[string]awsv2types.AttributeValue, error) {
	in := &awsv2dynamodb.ScanInput{
		TableName:        aws.String(client.tableName),
		FilterExpression: aws.String("EntityType = :et"),
		ExpressionAttributeValues: map[string]awsv2types.AttributeValue{
			":et": &awsv2types.AttributeValueMemberS{Value: entityType},
		},
	}
	var items []map[string]awsv2types.AttributeValue
	err := xray.Capture(ctx, segment, func(ctx context.Context) error {
		p := awsv2dynamodb.NewScanPaginator(client.db, in)
		for p.HasMorePages() {
			page, e := p.NextPage(ctx)
			if e != nil {
				return e
			}
			items = append(items, page.Items...)
		}
		return nil
	})
	return items, err
}
