package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/members/store"
)

// TableAPI is the subset of the DynamoDB client needed to create tables.
type TableAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// TableDefinitions returns the create requests for every collection table and
// the unique constraint table. Owned tables get an owner index; the users
// table streams old images so removals can be swept.
func TableDefinitions(cfg store.Config) []*dynamodb.CreateTableInput {
	var defs []*dynamodb.CreateTableInput
	for _, c := range All() {
		in := &dynamodb.CreateTableInput{
			TableName:   aws.String(cfg.TablePrefix + string(c)),
			BillingMode: types.BillingModePayPerRequest,
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
			},
		}
		if field := OwnerField(c); field != "" {
			in.AttributeDefinitions = append(in.AttributeDefinitions, types.AttributeDefinition{
				AttributeName: aws.String(field), AttributeType: types.ScalarAttributeTypeS,
			})
			in.GlobalSecondaryIndexes = []types.GlobalSecondaryIndex{{
				IndexName: aws.String(IndexName(field)),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String(field), KeyType: types.KeyTypeHash},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			}}
		}
		if c == Users {
			in.StreamSpecification = &types.StreamSpecification{
				StreamEnabled:  aws.Bool(true),
				StreamViewType: types.StreamViewTypeOldImage,
			}
		}
		defs = append(defs, in)
	}

	uniqueTable := cfg.UniqueTable
	if uniqueTable == "" {
		uniqueTable = store.DefaultConfig().UniqueTable
	}
	defs = append(defs, &dynamodb.CreateTableInput{
		TableName:   aws.String(cfg.TablePrefix + uniqueTable),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("pk"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("sk"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("sk"), KeyType: types.KeyTypeRange},
		},
	})
	return defs
}

// CreateTables creates any missing tables. Tables that already exist are left
// untouched.
func CreateTables(ctx context.Context, api TableAPI, cfg store.Config) error {
	for _, in := range TableDefinitions(cfg) {
		_, err := api.CreateTable(ctx, in)
		var inUse *types.ResourceInUseException
		if err != nil && !errors.As(err, &inUse) {
			return fmt.Errorf("create table %s: %w", aws.ToString(in.TableName), err)
		}
	}
	return nil
}
