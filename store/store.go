package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/members/internal/shard"
)

// maxTransactItems is the DynamoDB limit on items in one TransactWriteItems call.
const maxTransactItems = 100

// Store provides DynamoDB operations with ownership-aware entity support.
type Store struct {
	client   API
	config   Config
	registry *Registry
}

// New creates a new Store instance.
func New(client API, config Config) *Store {
	config.validate()
	return &Store{
		client: client,
		config: config,
	}
}

// NewWithRegistry creates a new Store instance with a relationship registry.
func NewWithRegistry(client API, config Config, registry *Registry) *Store {
	config.validate()
	return &Store{
		client:   client,
		config:   config,
		registry: registry,
	}
}

// Registry returns the relationship registry, or nil if not set.
func (s *Store) Registry() *Registry {
	return s.registry
}

// Config returns the validated store configuration.
func (s *Store) Config() Config {
	return s.config
}

// TableName returns the physical table name for a logical one.
func (s *Store) TableName(logical string) string {
	return s.config.TablePrefix + logical
}

// txSlot records what a transaction item guards, for error mapping.
type txSlot int

const (
	slotOther txSlot = iota
	slotParentCheck
	slotEntityPut
	slotEntityUpdate
	slotUnique
)

// Create creates a new entity with parent validation and unique constraints.
func (s *Store) Create(ctx context.Context, entity Entity, item map[string]types.AttributeValue) error {
	return s.CreateAll(ctx, Write{Entity: entity, Item: item})
}

// CreateAll creates several entities in one transaction: either every entity
// (with its parent checks, unique constraints) is written, or none is.
// Entities written together must not parent-check each other; DynamoDB
// rejects two operations on the same item within a transaction.
func (s *Store) CreateAll(ctx context.Context, writes ...Write) error {
	if len(writes) == 0 {
		return nil
	}

	now := time.Now()
	nowISO := now.UTC().Format(time.RFC3339)

	var items []types.TransactWriteItem
	var slots []txSlot

	for _, w := range writes {
		entity, item := w.Entity, w.Item
		if item == nil {
			item = map[string]types.AttributeValue{}
		}

		// 1. Add parent condition check if entity has a parent
		if checker, ok := entity.(ParentChecker); ok {
			if check := checker.ParentCheck(); check != nil {
				// Use custom condition expression if provided, otherwise use default
				condExpr := check.ConditionExpr
				if condExpr == "" {
					condExpr = ParentExistsCondition()
				}
				items = append(items, types.TransactWriteItem{
					ConditionCheck: &types.ConditionCheck{
						TableName:           aws.String(s.TableName(check.TableName)),
						Key:                 check.Key,
						ConditionExpression: aws.String(condExpr),
					},
				})
				slots = append(slots, slotParentCheck)
			}
		}

		// 2. Set store-managed fields
		for k, v := range entity.GetKey() {
			item[k] = v
		}
		item["entity_ref"] = &types.AttributeValueMemberS{Value: entity.EntityRef()}
		item["version"] = &types.AttributeValueMemberN{Value: "1"}
		item["created_at"] = &types.AttributeValueMemberS{Value: nowISO}
		item["updated_at"] = &types.AttributeValueMemberS{Value: nowISO}

		var parentRef string
		if checker, ok := entity.(ParentChecker); ok {
			parentRef = checker.ParentRef()
			if parentRef != "" {
				item["parent_ref"] = &types.AttributeValueMemberS{Value: parentRef}
			}
		}

		// 3. Handle unique constraints
		var uniquePKs []string
		if uf, ok := entity.(UniqueFielder); ok {
			scope := uniqueScope(entity)
			entityType := entity.EntityType()
			for field, value := range uf.UniqueFields() {
				constraintPK := shard.UniqueConstraintPK(scope, entityType, field, value)
				uniquePKs = append(uniquePKs, constraintPK)

				items = append(items, types.TransactWriteItem{
					Put: &types.Put{
						TableName:           aws.String(s.TableName(s.config.UniqueTable)),
						Item:                s.constraintItem(constraintPK, scope, entity, field, value),
						ConditionExpression: aws.String("attribute_not_exists(pk)"),
					},
				})
				slots = append(slots, slotUnique)
			}
		}

		// Store unique PKs on entity for delete cleanup
		if len(uniquePKs) > 0 {
			uniquePKsAttr, _ := attributevalue.MarshalList(uniquePKs)
			item["_unique_pks"] = &types.AttributeValueMemberL{Value: uniquePKsAttr}
		}

		// 4. Add the entity put
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(s.TableName(entity.TableName())),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			},
		})
		slots = append(slots, slotEntityPut)
	}

	if len(items) > maxTransactItems {
		return ErrTooManyWrites
	}

	// 5. Execute transaction
	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})

	return mapTransactionError(err, slots)
}

// constraintItem builds a unique constraint row.
func (s *Store) constraintItem(pk, scope string, entity Entity, field, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk":          &types.AttributeValueMemberS{Value: pk},
		"sk":          &types.AttributeValueMemberS{Value: "CONSTRAINT"},
		"scope":       &types.AttributeValueMemberS{Value: scope},
		"entity_type": &types.AttributeValueMemberS{Value: entity.EntityType()},
		"field_name":  &types.AttributeValueMemberS{Value: field},
		"field_value": &types.AttributeValueMemberS{Value: value},
		"entity_ref":  &types.AttributeValueMemberS{Value: entity.EntityRef()},
	}
}

// constraintKey returns the primary key of a unique constraint row.
func constraintKey(pk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: pk},
		"sk": &types.AttributeValueMemberS{Value: "CONSTRAINT"},
	}
}

// uniqueScope returns the scope unique values are checked in: the parent for
// child entities, the entity type for roots.
func uniqueScope(entity Entity) string {
	if pc, ok := entity.(ParentChecker); ok && pc.ParentRef() != "" {
		return pc.ParentRef()
	}
	return entity.EntityType()
}

// Get retrieves an entity by key, returning ErrNotFound if missing.
// Reads are strongly consistent.
func (s *Store) Get(ctx context.Context, table string, key PK) (*Item, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.TableName(table)),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}

	return s.unmarshalItem(result.Item), nil
}

// Query queries entities, paginating through all results.
func (s *Store) Query(ctx context.Context, input QueryInput) ([]*Item, error) {
	queryInput := &dynamodb.QueryInput{
		TableName:                 aws.String(s.TableName(input.TableName)),
		KeyConditionExpression:    aws.String(input.KeyConditionExpression),
		ExpressionAttributeValues: input.ExpressionAttributeValues,
	}

	if len(input.ExpressionAttributeNames) > 0 {
		queryInput.ExpressionAttributeNames = mergeExprNames(input.ExpressionAttributeNames)
	}

	if input.FilterExpression != "" {
		queryInput.FilterExpression = aws.String(input.FilterExpression)
	}
	if input.ProjectionExpression != "" {
		queryInput.ProjectionExpression = aws.String(input.ProjectionExpression)
	}
	if input.IndexName != "" {
		queryInput.IndexName = aws.String(input.IndexName)
	}
	if input.Limit > 0 {
		queryInput.Limit = aws.Int32(input.Limit)
	}
	if input.ScanIndexForward != nil {
		queryInput.ScanIndexForward = input.ScanIndexForward
	}

	// Paginate through all results
	var items []*Item
	paginator := dynamodb.NewQueryPaginator(s.client, queryInput)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			items = append(items, s.unmarshalItem(raw))
		}
	}

	return items, nil
}

// QueryByParent returns every row of rel's child table owned by parentID.
// The lookup goes through rel.IndexName, so results are eventually consistent.
func (s *Store) QueryByParent(ctx context.Context, rel Relationship, parentID string) ([]*Item, error) {
	return s.Query(ctx, parentQuery(rel, parentID, 0))
}

func parentQuery(rel Relationship, parentID string, limit int32) QueryInput {
	return QueryInput{
		TableName:              rel.ChildTableName,
		IndexName:              rel.IndexName,
		KeyConditionExpression: "#owner = :owner",
		ExpressionAttributeNames: map[string]string{
			"#owner": rel.ParentKeyAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: parentID},
		},
		Limit: limit,
	}
}

// Scan returns every item of a table.
func (s *Store) Scan(ctx context.Context, table string) ([]*Item, error) {
	var items []*Item
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName: aws.String(s.TableName(table)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			items = append(items, s.unmarshalItem(raw))
		}
	}
	return items, nil
}

// HasChildren checks whether any registered child table still holds a row
// owned by parentID. Child tables are probed concurrently; the first hit
// cancels the remaining probes.
func (s *Store) HasChildren(ctx context.Context, parentType, parentID string) (bool, error) {
	if s.registry == nil {
		return false, nil
	}
	rels := s.registry.ChildrenOf(parentType)
	if len(rels) == 0 {
		return false, nil
	}

	// Fast path for a single relationship
	if len(rels) == 1 {
		return s.hasChild(ctx, rels[0], parentID)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := make(chan bool, 1)
	errs := make(chan error, len(rels))
	var wg sync.WaitGroup

	for _, rel := range rels {
		wg.Add(1)
		go func(rel Relationship) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				return
			default:
			}

			ok, err := s.hasChild(ctx, rel, parentID)
			if err != nil {
				errs <- fmt.Errorf("%s: %w", rel.ChildTableName, err)
				return
			}
			if ok {
				select {
				case found <- true:
					cancel()
				default:
				}
			}
		}(rel)
	}

	go func() {
		wg.Wait()
		close(found)
		close(errs)
	}()

	select {
	case f := <-found:
		if f {
			return true, nil
		}
	case err := <-errs:
		// A canceled sibling means another probe found a row.
		if err != nil && !errors.Is(err, context.Canceled) {
			return false, err
		}
	}

	for err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return false, err
		}
	}

	// Both channels are closed now; found still holds a hit sent before
	// the cancellation errors were read.
	if <-found {
		return true, nil
	}
	return false, ctx.Err()
}

func (s *Store) hasChild(ctx context.Context, rel Relationship, parentID string) (bool, error) {
	in := parentQuery(rel, parentID, 1)
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.TableName(in.TableName)),
		IndexName:                 aws.String(in.IndexName),
		KeyConditionExpression:    aws.String(in.KeyConditionExpression),
		ExpressionAttributeNames:  in.ExpressionAttributeNames,
		ExpressionAttributeValues: in.ExpressionAttributeValues,
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return false, err
	}
	return len(result.Items) > 0, nil
}

// mapTransactionError maps DynamoDB transaction cancellation reasons to
// store errors using the slot recorded for each transaction item.
func mapTransactionError(err error, slots []txSlot) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code == nil || *reason.Code != "ConditionalCheckFailed" {
				continue
			}
			if i >= len(slots) {
				return err
			}
			switch slots[i] {
			case slotParentCheck:
				return ErrParentNotFound
			case slotEntityPut:
				return ErrAlreadyExists
			case slotEntityUpdate:
				return ErrConcurrentModification
			case slotUnique:
				return ErrDuplicateValue
			}
		}
	}

	return err
}

// unmarshalItem converts a DynamoDB item to an Item struct.
func (s *Store) unmarshalItem(raw map[string]types.AttributeValue) *Item {
	item := &Item{Raw: raw}

	if v, ok := raw["version"].(*types.AttributeValueMemberN); ok {
		item.Version, _ = strconv.ParseInt(v.Value, 10, 64)
	}
	if v, ok := raw["created_at"].(*types.AttributeValueMemberS); ok {
		item.CreatedAt = v.Value
	}
	if v, ok := raw["updated_at"].(*types.AttributeValueMemberS); ok {
		item.UpdatedAt = v.Value
	}
	if v, ok := raw["entity_ref"].(*types.AttributeValueMemberS); ok {
		item.EntityRef = v.Value
	}
	if v, ok := raw["parent_ref"].(*types.AttributeValueMemberS); ok {
		item.ParentRef = v.Value
	}

	return item
}

// uniquePKs extracts the constraint keys recorded on an item.
func uniquePKs(raw map[string]types.AttributeValue) []string {
	var pks []string
	if l, ok := raw["_unique_pks"].(*types.AttributeValueMemberL); ok {
		for _, v := range l.Value {
			if sv, ok := v.(*types.AttributeValueMemberS); ok {
				pks = append(pks, sv.Value)
			}
		}
	}
	return pks
}
