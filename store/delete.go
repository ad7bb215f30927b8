package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// maxBatchWriteItems is the DynamoDB limit on requests in one BatchWriteItem call.
const maxBatchWriteItems = 25

// DeleteOptions configures delete behavior.
type DeleteOptions struct {
	// OrphanProtect fails the delete with ErrHasChildren if any registered
	// child table still holds a row owned by the entity.
	OrphanProtect bool
}

// Delete removes an entity and its unique constraint rows in one transaction.
// Deleting an entity that does not exist is a no-op.
func (s *Store) Delete(ctx context.Context, entity Entity, opts DeleteOptions) error {
	if opts.OrphanProtect {
		id := keyString(entity.GetKey(), "id")
		hasChildren, err := s.HasChildren(ctx, entity.EntityType(), id)
		if err != nil {
			return err
		}
		if hasChildren {
			return ErrHasChildren
		}
	}

	current, err := s.Get(ctx, entity.TableName(), entity.GetKey())
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	items := []types.TransactWriteItem{{
		Delete: &types.Delete{
			TableName: aws.String(s.TableName(entity.TableName())),
			Key:       entity.GetKey(),
		},
	}}
	for _, pk := range uniquePKs(current.Raw) {
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(s.TableName(s.config.UniqueTable)),
				Key:       constraintKey(pk),
			},
		})
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return err
}

// DeleteByParent removes every row of rel's child table owned by parentID and
// returns how many rows were removed. An owner with no rows is a no-op.
//
// Rows are removed in batches; a failure part way leaves earlier batches
// deleted, and calling again resumes with whatever remains.
func (s *Store) DeleteByParent(ctx context.Context, rel Relationship, parentID string) (int, error) {
	in := parentQuery(rel, parentID, 0)
	in.ProjectionExpression = "id"
	rows, err := s.Query(ctx, in)
	if err != nil {
		return 0, fmt.Errorf("query %s: %w", rel.ChildTableName, err)
	}

	keys := make([]PK, 0, len(rows))
	for _, row := range rows {
		if id, ok := row.Raw["id"]; ok {
			keys = append(keys, PK{"id": id})
		}
	}

	deleted := 0
	for _, chunk := range chunkKeys(keys, maxBatchWriteItems) {
		if err := s.batchDelete(ctx, rel.ChildTableName, chunk); err != nil {
			return deleted, fmt.Errorf("delete %s: %w", rel.ChildTableName, err)
		}
		deleted += len(chunk)
	}
	return deleted, nil
}

// batchDelete deletes up to 25 keys, resubmitting unprocessed requests with
// exponential backoff.
func (s *Store) batchDelete(ctx context.Context, table string, keys []PK) error {
	physical := s.TableName(table)
	requests := make([]types.WriteRequest, 0, len(keys))
	for _, key := range keys {
		requests = append(requests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: key},
		})
	}

	backoff := 50 * time.Millisecond
	for attempt := 0; ; attempt++ {
		out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{physical: requests},
		})
		if err != nil {
			return err
		}

		requests = out.UnprocessedItems[physical]
		if len(requests) == 0 {
			return nil
		}
		if attempt >= s.config.MaxBatchRetries {
			return fmt.Errorf("%d unprocessed deletes after %d retries", len(requests), attempt)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// chunkKeys splits keys into slices of at most size elements.
func chunkKeys(keys []PK, size int) [][]PK {
	var chunks [][]PK
	for size < len(keys) {
		keys, chunks = keys[size:], append(chunks, keys[:size])
	}
	if len(keys) > 0 {
		chunks = append(chunks, keys)
	}
	return chunks
}

// keyString returns the string value of a key attribute.
func keyString(key PK, attr string) string {
	if v, ok := key[attr].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}
