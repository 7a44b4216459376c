package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// ExtractTextTask is scheduled when a document payload is stored or
	// replaced.
	ExtractTextTask = "document:extract_text"
)

// ExtractPayload tells the worker which record and blob to process.
type ExtractPayload struct {
	DocumentID string `json:"document_id"`
	BlobRef    string `json:"blob_ref"`
	FileName   string `json:"file_name"`
}

// Enqueuer wraps an asynq client as a documents.Extractor.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer constructs an Enqueuer.
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// EnqueueExtract schedules a text-extraction job.
func (e *Enqueuer) EnqueueExtract(ctx context.Context, documentID, blobRef, fileName string) error {
	data, err := json.Marshal(ExtractPayload{
		DocumentID: documentID,
		BlobRef:    blobRef,
		FileName:   fileName,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(ExtractTextTask, data)
	if _, err := e.client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue extract task: %w", err)
	}
	return nil
}
