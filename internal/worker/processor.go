package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/dcervantes/foliovault/internal/blobstore"
	"github.com/dcervantes/foliovault/internal/documents"
	pdfutil "github.com/dcervantes/foliovault/internal/pdf"
	"github.com/dcervantes/foliovault/internal/queue"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	store documents.Store
	blobs blobstore.Store
}

// NewProcessor constructs a worker processor.
func NewProcessor(store documents.Store, blobs blobstore.Store) *Processor {
	return &Processor{store: store, blobs: blobs}
}

// Handler registers the extract job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ExtractTextTask, p.handleExtract)
	return mux
}

func (p *Processor) handleExtract(ctx context.Context, task *asynq.Task) error {
	var payload queue.ExtractPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	rc, err := p.blobs.Open(ctx, payload.BlobRef)
	if err != nil {
		// A deleted or replaced blob is not worth retrying.
		log.Printf("extract %s: open blob %s: %v", payload.DocumentID, payload.BlobRef, err)
		return fmt.Errorf("open blob: %v: %w", err, asynq.SkipRetry)
	}
	defer rc.Close()

	text, err := pdfutil.ExtractFromReader(rc)
	if err != nil {
		// Malformed PDFs fail deterministically; the record keeps empty
		// content and stays searchable by its structured fields.
		log.Printf("extract %s (%s): %v", payload.DocumentID, payload.FileName, err)
		return fmt.Errorf("extract text: %v: %w", err, asynq.SkipRetry)
	}

	if err := p.store.SetContent(ctx, payload.DocumentID, text); err != nil {
		return fmt.Errorf("store content: %w", err)
	}
	log.Printf("document %s indexed (%d bytes of text)", payload.DocumentID, len(text))
	return nil
}
