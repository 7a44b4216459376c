// Package extract runs text extraction through an in-process worker pool.
// It is the Redis-free alternative to the asynq worker: single-binary
// deployments enqueue here and the goroutine pool fills in extracted content
// as jobs complete.
package extract

import (
	"context"
	"errors"
	"log"

	"github.com/dcervantes/foliovault/internal/blobstore"
	"github.com/dcervantes/foliovault/internal/documents"
	pdfutil "github.com/dcervantes/foliovault/internal/pdf"
)

type job struct {
	documentID string
	blobRef    string
	fileName   string
}

// Pool consumes extraction jobs and updates record content.
type Pool struct {
	store   documents.Store
	blobs   blobstore.Store
	queue   chan job
	workers int
}

// NewPool builds a Pool with queue capacity tied to worker count.
func NewPool(store documents.Store, blobs blobstore.Store, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		store:   store,
		blobs:   blobs,
		queue:   make(chan job, workers*4),
		workers: workers,
	}
}

// Start launches the worker goroutines; they exit when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		go p.worker(ctx)
	}
}

// EnqueueExtract queues a job. A full queue drops the job: the record simply
// keeps empty content, which downstream treats the same as failed extraction.
func (p *Pool) EnqueueExtract(ctx context.Context, documentID, blobRef, fileName string) error {
	select {
	case p.queue <- job{documentID: documentID, blobRef: blobRef, fileName: fileName}:
		return nil
	default:
		return errors.New("extract queue full")
	}
}

func (p *Pool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.queue:
			p.process(ctx, j)
		}
	}
}

func (p *Pool) process(ctx context.Context, j job) {
	rc, err := p.blobs.Open(ctx, j.blobRef)
	if err != nil {
		log.Printf("extract %s: open blob %s: %v", j.documentID, j.blobRef, err)
		return
	}
	defer rc.Close()

	text, err := pdfutil.ExtractFromReader(rc)
	if err != nil {
		log.Printf("extract %s (%s): %v", j.documentID, j.fileName, err)
		return
	}
	if err := p.store.SetContent(ctx, j.documentID, text); err != nil {
		log.Printf("extract %s: store content: %v", j.documentID, err)
	}
}
