package imagegen

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"aichat_backend/db"
	"aichat_backend/logging"
)

// Result is a persisted generation. It is created once per successful run
// and never modified.
type Result struct {
	ID            string
	OwnerID       string
	Prompt        string
	ImageURL      string
	Mode          string
	CorrelationID string
	CreatedAt     time.Time

	// Set only when Mode is ModeDerived.
	Description    string
	SourceFilename string
}

// Gateway is the durable store for results.
type Gateway interface {
	Save(ctx context.Context, result Result) (string, error)
	FindRecent(ctx context.Context, ownerID string, limit int) ([]Result, error)
}

// RepositoryGateway stores results in the images table.
type RepositoryGateway struct {
	repo *db.Repository
}

// NewRepositoryGateway wraps repo.
func NewRepositoryGateway(repo *db.Repository) *RepositoryGateway {
	return &RepositoryGateway{repo: repo}
}

func (g *RepositoryGateway) Save(ctx context.Context, result Result) (string, error) {
	id, err := g.repo.InsertImage(ctx, db.ImageRecord{
		OwnerID:        result.OwnerID,
		Prompt:         result.Prompt,
		ImageURL:       result.ImageURL,
		Mode:           result.Mode,
		Description:    result.Description,
		SourceFilename: result.SourceFilename,
		CorrelationID:  result.CorrelationID,
	})
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

func (g *RepositoryGateway) FindRecent(ctx context.Context, ownerID string, limit int) ([]Result, error) {
	records, err := g.repo.QueryRecentImages(ctx, ownerID, limit)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(records))
	for _, rec := range records {
		results = append(results, Result{
			ID:             strconv.FormatInt(rec.ID, 10),
			OwnerID:        rec.OwnerID,
			Prompt:         rec.Prompt,
			ImageURL:       rec.ImageURL,
			Mode:           rec.Mode,
			CorrelationID:  rec.CorrelationID,
			CreatedAt:      rec.CreatedAt,
			Description:    rec.Description,
			SourceFilename: rec.SourceFilename,
		})
	}
	return results, nil
}

// FailureEntry describes one failed run for the journal.
type FailureEntry struct {
	CorrelationID string
	OwnerID       string
	Stage         Stage
	Kind          Kind
	Message       string
}

// FailureJournal records failed runs. Implementations must not block the
// request for long and their errors never reach the client.
type FailureJournal interface {
	Record(ctx context.Context, entry FailureEntry)
}

// AsyncFailureJournal queues entries onto a db.AsyncWriter and writes
// synchronously when the queue is full or the writer is stopped.
type AsyncFailureJournal struct {
	writer *db.AsyncWriter
	repo   *db.Repository
	logger *logging.Logger
}

// NewAsyncFailureJournal starts a background writer over repo.
// Call Close on shutdown to drain queued entries.
func NewAsyncFailureJournal(repo *db.Repository, logger *logging.Logger, capacity int) *AsyncFailureJournal {
	if logger == nil {
		logger = logging.NewNop()
	}
	j := &AsyncFailureJournal{repo: repo, logger: logger}
	j.writer = db.NewAsyncWriter(repo.FailureJournalHandler(), capacity, func(err error) {
		logger.Warnw("failure journal write failed", "error", err)
	})
	j.writer.Start()
	return j
}

func (j *AsyncFailureJournal) Record(ctx context.Context, entry FailureEntry) {
	rec := db.FailureRecord{
		CorrelationID: entry.CorrelationID,
		OwnerID:       entry.OwnerID,
		Stage:         string(entry.Stage),
		Kind:          string(entry.Kind),
		Message:       truncateText(entry.Message, 500),
	}
	if j.writer.Write(rec) {
		return
	}
	if _, err := j.repo.InsertFailure(context.WithoutCancel(ctx), rec); err != nil {
		j.logger.Warnw("failure journal write failed", "correlation_id", entry.CorrelationID, "error", err)
	}
}

// Close drains pending entries.
func (j *AsyncFailureJournal) Close() {
	j.writer.Stop()
}

// Pending reports queued entries; used by tests and shutdown logging.
func (j *AsyncFailureJournal) Pending() int {
	return j.writer.Pending()
}

type nopJournal struct{}

func (nopJournal) Record(context.Context, FailureEntry) {}

var _ Gateway = (*RepositoryGateway)(nil)
var _ FailureJournal = (*AsyncFailureJournal)(nil)

func persistenceError(stage Stage, err error) *GenerationError {
	return &GenerationError{
		Kind:  KindPersistenceError,
		Stage: stage,
		Err:   fmt.Errorf("imagegen: gateway: %w", err),
	}
}
