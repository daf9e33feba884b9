package pipeline

import (
	"context"
	"log"

	"github.com/ppiankov/medtrust/internal/model"
	"github.com/ppiankov/medtrust/internal/worker"
)

// BatchItem is the outcome of one question in a batch run. Either Report
// or Error is set.
type BatchItem struct {
	Question string             `json:"question"`
	Report   *model.TrustReport `json:"report,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// RunBatch runs the pipeline over many questions with bounded
// concurrency. One failed question does not stop the batch; results keep
// input order. Cancelling ctx stops in-flight questions and marks the
// rest failed.
func (p *Pipeline) RunBatch(ctx context.Context, questions []string, opts Options, workers int) []BatchItem {
	items := make([]BatchItem, len(questions))

	pool := worker.NewPool(ctx, workers)
	pool.Start()
	for i, q := range questions {
		items[i].Question = q
		pool.Submit(&questionJob{pipeline: p, opts: opts, question: q, slot: &items[i]})
	}
	pool.Wait()

	if err := ctx.Err(); err != nil {
		for i := range items {
			if items[i].Report == nil && items[i].Error == "" {
				items[i].Error = err.Error()
			}
		}
	}

	failed := 0
	for _, item := range items {
		if item.Error != "" {
			failed++
		}
	}
	log.Printf("batch: %d questions, %d failed", len(questions), failed)
	return items
}

// questionJob runs one question and records the outcome in its slot.
// Slots are distinct per job, so no locking is needed.
type questionJob struct {
	pipeline *Pipeline
	opts     Options
	question string
	slot     *BatchItem
}

type questionResult struct {
	err error
}

func (r *questionResult) GetError() error { return r.err }

func (j *questionJob) Execute(ctx context.Context) worker.Result {
	report, err := j.pipeline.Run(ctx, j.question, j.opts)
	if err != nil {
		log.Printf("batch: question failed: %v", err)
		j.slot.Error = err.Error()
		return &questionResult{err: err}
	}
	j.slot.Report = &report
	return &questionResult{}
}
