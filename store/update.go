package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/members/internal/shard"
)

// Update updates an entity with optimistic locking and returns the stored
// item after the write.
//
// Attributes in item are SET; attributes carrying a NULL value are REMOVEd.
// Store-managed attributes are ignored. If the entity implements
// UniqueFielder and unique fields change, old constraints are deleted and new
// ones created transactionally.
func (s *Store) Update(ctx context.Context, entity Entity, item map[string]types.AttributeValue, expectedVersion int64) (*Item, error) {
	if uf, ok := entity.(UniqueFielder); ok {
		return s.updateWithUniqueConstraints(ctx, entity, item, expectedVersion, uf)
	}

	// Fast path: simple update without unique constraint handling
	return s.updateSimple(ctx, entity, item, expectedVersion)
}

// updateExpr holds a built update expression with its placeholders.
type updateExpr struct {
	expr   string
	names  map[string]string
	values map[string]types.AttributeValue
}

// buildUpdateExpr builds SET/REMOVE clauses from item, skipping managed
// fields, and appends the managed version and timestamp updates.
// Attribute order is sorted so expressions are deterministic.
func buildUpdateExpr(item map[string]types.AttributeValue, expectedVersion int64, now string) updateExpr {
	u := updateExpr{
		names: map[string]string{
			"#updated_at": "updated_at",
			"#version":    "version",
		},
		values: map[string]types.AttributeValue{
			":updated_at":       &types.AttributeValueMemberS{Value: now},
			":one":              &types.AttributeValueMemberN{Value: "1"},
			":expected_version": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion, 10)},
		},
	}

	keys := make([]string, 0, len(item))
	for k := range item {
		if IsManagedAttr(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var setClauses, removeClauses []string
	for i, k := range keys {
		nameKey := fmt.Sprintf("#attr%d", i)
		u.names[nameKey] = k
		if _, isNull := item[k].(*types.AttributeValueMemberNULL); isNull {
			removeClauses = append(removeClauses, nameKey)
			continue
		}
		valueKey := fmt.Sprintf(":val%d", i)
		u.values[valueKey] = item[k]
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", nameKey, valueKey))
	}

	// Add managed field updates
	setClauses = append(setClauses, "#updated_at = :updated_at", "#version = #version + :one")

	u.expr = "SET " + strings.Join(setClauses, ", ")
	if len(removeClauses) > 0 {
		u.expr += " REMOVE " + strings.Join(removeClauses, ", ")
	}
	return u
}

// updateSimple performs a basic update without unique constraint handling.
func (s *Store) updateSimple(ctx context.Context, entity Entity, item map[string]types.AttributeValue, expectedVersion int64) (*Item, error) {
	u := buildUpdateExpr(item, expectedVersion, time.Now().UTC().Format(time.RFC3339))

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(s.TableName(entity.TableName())),
		Key:                                 entity.GetKey(),
		UpdateExpression:                    aws.String(u.expr),
		ConditionExpression:                 aws.String(VersionCondition()),
		ExpressionAttributeNames:            u.names,
		ExpressionAttributeValues:           u.values,
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			if condErr.Item == nil {
				return nil, ErrNotFound
			}
			return nil, ErrConcurrentModification
		}
		return nil, err
	}
	return s.unmarshalItem(out.Attributes), nil
}

// updateWithUniqueConstraints handles updates where unique fields may have changed.
func (s *Store) updateWithUniqueConstraints(ctx context.Context, entity Entity, item map[string]types.AttributeValue, expectedVersion int64, uf UniqueFielder) (*Item, error) {
	// Fetch current entity to get old unique field values
	current, err := s.Get(ctx, entity.TableName(), entity.GetKey())
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, ErrConcurrentModification
	}

	scope := uniqueScope(entity)
	entityType := entity.EntityType()
	newUniques := uf.UniqueFields()

	// Extract old unique values from current item
	oldUniques := make(map[string]string)
	for field := range newUniques {
		if v, ok := current.Raw[field].(*types.AttributeValueMemberS); ok {
			oldUniques[field] = v.Value
		}
	}

	// Check if any unique fields changed
	var changedFields []string
	for field, newValue := range newUniques {
		if oldValue, ok := oldUniques[field]; !ok || oldValue != newValue {
			changedFields = append(changedFields, field)
		}
	}
	sort.Strings(changedFields)

	// If no unique fields changed, use simple update
	if len(changedFields) == 0 {
		return s.updateSimple(ctx, entity, item, expectedVersion)
	}

	var items []types.TransactWriteItem
	var slots []txSlot

	// Compute all new unique PKs (including unchanged ones for _unique_pks update)
	var newUniquePKs []string
	for field, newValue := range newUniques {
		newUniquePKs = append(newUniquePKs, shard.UniqueConstraintPK(scope, entityType, field, newValue))
	}
	sort.Strings(newUniquePKs)

	// For each changed field: delete old constraint, create new constraint
	for _, field := range changedFields {
		oldValue := oldUniques[field]
		newValue := newUniques[field]

		if oldValue != "" {
			oldPK := shard.UniqueConstraintPK(scope, entityType, field, oldValue)
			items = append(items, types.TransactWriteItem{
				Delete: &types.Delete{
					TableName: aws.String(s.TableName(s.config.UniqueTable)),
					Key:       constraintKey(oldPK),
				},
			})
			slots = append(slots, slotOther)
		}

		newPK := shard.UniqueConstraintPK(scope, entityType, field, newValue)
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(s.TableName(s.config.UniqueTable)),
				Item:      s.constraintItem(newPK, scope, entity, field, newValue),
				// Fails if another entity already has this unique value
				ConditionExpression: aws.String("attribute_not_exists(pk)"),
			},
		})
		slots = append(slots, slotUnique)
	}

	u := buildUpdateExpr(item, expectedVersion, time.Now().UTC().Format(time.RFC3339))

	// Update _unique_pks with new PKs
	uniquePKsAttr, _ := attributevalue.MarshalList(newUniquePKs)
	u.names["#unique_pks"] = "_unique_pks"
	u.values[":unique_pks"] = &types.AttributeValueMemberL{Value: uniquePKsAttr}
	u.expr = addSetClause(u.expr, "#unique_pks = :unique_pks")

	items = append(items, types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 aws.String(s.TableName(entity.TableName())),
			Key:                       entity.GetKey(),
			UpdateExpression:          aws.String(u.expr),
			ConditionExpression:       aws.String(VersionCondition()),
			ExpressionAttributeNames:  u.names,
			ExpressionAttributeValues: u.values,
		},
	})
	slots = append(slots, slotEntityUpdate)

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err := mapTransactionError(err, slots); err != nil {
		return nil, err
	}

	return s.Get(ctx, entity.TableName(), entity.GetKey())
}

// addSetClause inserts clause into the SET section of an update expression
// built by buildUpdateExpr.
func addSetClause(expr, clause string) string {
	if i := strings.Index(expr, " REMOVE "); i >= 0 {
		return expr[:i] + ", " + clause + expr[i:]
	}
	return expr + ", " + clause
}
