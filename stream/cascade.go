// Package stream provides DynamoDB Streams handlers that finish the cascade
// for users removed outside the account service.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// Purger removes every record owned by a user.
type Purger interface {
	PurgeOwned(ctx context.Context, userID string) (int, error)
}

// Handler processes users table stream events.
type Handler struct {
	purger Purger
	logger *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(p Purger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		purger: p,
		logger: logger,
	}
}

// HandleUserRemoved purges the owned records of every user removed in the
// batch. Records that fail are reported back as batch item failures so only
// they are redelivered.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleUserRemoved(ctx context.Context, event events.DynamoDBEvent) (events.DynamoDBEventResponse, error) {
	var resp events.DynamoDBEventResponse
	for i := range event.Records {
		record := &event.Records[i]
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.DynamoDBBatchItemFailure{
				ItemIdentifier: record.Change.SequenceNumber,
			})
		}
	}
	return resp, nil
}

// processRecord processes a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record *events.DynamoDBEventRecord) error {
	if record.EventName != "REMOVE" {
		return nil
	}

	ref := getStringAttr(record.Change.OldImage, "entity_ref")
	if ref != "" && !strings.HasPrefix(ref, "user#") {
		return nil
	}

	id := getStringAttr(record.Change.Keys, "id")
	if id == "" {
		id = getStringAttr(record.Change.OldImage, "id")
	}
	if id == "" {
		h.logger.Warn("removed record has no id", "eventID", record.EventID)
		return nil
	}
	if h.purger == nil {
		return fmt.Errorf("no purger configured for user %s", id)
	}

	removed, err := h.purger.PurgeOwned(ctx, id)
	if err != nil {
		return fmt.Errorf("purge user %s: %w", id, err)
	}

	h.logger.Info("swept removed user",
		"userID", id,
		"version", getNumberAttr(record.Change.OldImage, "version"),
		"removed", removed,
	)
	return nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// getNumberAttr extracts a number attribute from a DynamoDB stream image.
func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeNumber {
		if n, err := strconv.ParseInt(v.Number(), 10, 64); err == nil {
			return n
		}
	}
	return 0
}
