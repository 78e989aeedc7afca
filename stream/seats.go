// Package stream provides DynamoDB Streams handlers that keep derived state
// in step with the document table.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/conference/announcement"
	"github.com/jacentio/conference/model"
	"github.com/jacentio/conference/store"
)

// Refresher recomputes the announcement.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// Handler processes DynamoDB stream events for conference seat changes.
type Handler struct {
	refresher Refresher
	logger    *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(r Refresher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		refresher: r,
		logger:    logger,
	}
}

// HandleSeatChanges refreshes the announcement once per batch if any record
// moved a conference into, out of, or within the nearly sold out range.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleSeatChanges(ctx context.Context, event events.DynamoDBEvent) error {
	refresh := false
	for _, record := range event.Records {
		if affectsAnnouncement(record) {
			h.logger.Debug("conference seats changed",
				"eventID", record.EventID,
				"key", keyPath(record.Change.Keys),
			)
			refresh = true
		}
	}
	if !refresh {
		return nil
	}

	text, err := h.refresher.Refresh(ctx)
	if err != nil {
		h.logger.Error("failed to refresh announcement", "records", len(event.Records), "error", err)
		return fmt.Errorf("refresh announcement: %w", err) // Will retry, eventually DLQ
	}
	h.logger.Info("announcement refreshed", "announcement", text)
	return nil
}

// affectsAnnouncement reports whether a record can change the announcement.
func affectsAnnouncement(record events.DynamoDBEventRecord) bool {
	oldImage, newImage := record.Change.OldImage, record.Change.NewImage

	image := newImage
	if record.EventName == "REMOVE" {
		image = oldImage
	}
	if getStringAttr(image, "kind") != model.KindConference {
		return false
	}

	oldSeats := getNumberAttr(getMapAttr(oldImage, "props"), "seatsAvailable")
	newSeats := getNumberAttr(getMapAttr(newImage, "props"), "seatsAvailable")

	switch record.EventName {
	case "INSERT":
		return nearlySoldOut(newSeats)
	case "REMOVE":
		return nearlySoldOut(oldSeats)
	case "MODIFY":
		if oldSeats != newSeats {
			return nearlySoldOut(oldSeats) || nearlySoldOut(newSeats)
		}
		oldName := getStringAttr(getMapAttr(oldImage, "props"), "name")
		newName := getStringAttr(getMapAttr(newImage, "props"), "name")
		return oldName != newName && nearlySoldOut(newSeats)
	}
	return false
}

func nearlySoldOut(seats int64) bool {
	return seats > 0 && seats <= announcement.NearlySoldOut
}

// keyPath returns the document path carried by a stream record key.
func keyPath(streamKey map[string]events.DynamoDBAttributeValue) string {
	pk, ok := ConvertStreamKey(streamKey)["pk"].(*types.AttributeValueMemberS)
	if !ok {
		return ""
	}
	key, err := store.ParsePath(pk.Value)
	if err != nil {
		return pk.Value
	}
	return key.Path()
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
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeNumber {
			n, _ := strconv.ParseInt(v.Number(), 10, 64)
			return n
		}
	}
	return 0
}

// getMapAttr extracts a map attribute from a DynamoDB stream image.
func getMapAttr(image map[string]events.DynamoDBAttributeValue, key string) map[string]events.DynamoDBAttributeValue {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeMap {
		return v.Map()
	}
	return nil
}

// ConvertStreamKey converts a DynamoDB stream key to a store.PK.
func ConvertStreamKey(streamKey map[string]events.DynamoDBAttributeValue) store.PK {
	result := make(store.PK)
	for k, v := range streamKey {
		switch v.DataType() {
		case events.DataTypeString:
			result[k] = &types.AttributeValueMemberS{Value: v.String()}
		case events.DataTypeNumber:
			result[k] = &types.AttributeValueMemberN{Value: v.Number()}
		case events.DataTypeBinary:
			result[k] = &types.AttributeValueMemberB{Value: v.Binary()}
		}
	}
	return result
}
