package chat

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"aichat_backend/db"
	"aichat_backend/logging"
	"aichat_backend/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultHistoryLimit is how many turns History returns.
const DefaultHistoryLimit = 50

// Store persists chat turns.
type Store interface {
	InsertChat(ctx context.Context, rec db.ChatRecord) (int64, error)
	QueryRecentChats(ctx context.Context, ownerID string, limit int) ([]db.ChatRecord, error)
}

// Reply is returned by Send.
type Reply struct {
	ChatID   string
	Response string
}

// Turn is one stored exchange.
type Turn struct {
	ID        string
	Message   string
	Response  string
	CreatedAt time.Time
}

// Service runs the chat pipeline.
type Service struct {
	completer    Completer
	store        Store
	logger       *logging.Logger
	metrics      *metrics.Collector
	historyLimit int
}

// NewService wires a chat service. logger and collector may be nil.
func NewService(completer Completer, store Store, logger *logging.Logger, collector *metrics.Collector, historyLimit int) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Service{
		completer:    completer,
		store:        store,
		logger:       logger,
		metrics:      collector,
		historyLimit: historyLimit,
	}
}

// Send validates message, asks the model and stores the exchange. Nothing is
// stored when the model call fails.
func (s *Service) Send(ctx context.Context, ownerID, message string) (*Reply, error) {
	started := time.Now()
	correlationID := uuid.NewString()
	logger := s.logger.With(zap.String("correlation_id", correlationID))

	reply, err := s.send(ctx, ownerID, message, logger)

	rec := metrics.RunRecord{
		ID:        correlationID,
		Type:      metrics.RunTypeChat,
		OwnerID:   ownerID,
		Status:    metrics.RunStatusSuccess,
		StartTime: started,
		EndTime:   time.Now(),
	}
	rec.Duration = rec.EndTime.Sub(started)
	if err != nil {
		rec.Status = metrics.RunStatusError
		rec.ErrorKind = string(err.Kind)
		if err.Kind.HTTPStatus() >= 500 {
			logger.Error("Chat request failed", zap.String("kind", string(err.Kind)), zap.Error(err))
		}
		s.metrics.RecordRun(rec)
		return nil, err
	}
	s.metrics.RecordRun(rec)
	return reply, nil
}

func (s *Service) send(ctx context.Context, ownerID, message string, logger *logging.Logger) (*Reply, *Error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, &Error{Kind: KindMissingIdentity}
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, &Error{Kind: KindEmptyMessage}
	}

	start := time.Now()
	response, err := s.completer.Complete(ctx, message)
	if err != nil {
		var chatErr *Error
		if !errors.As(err, &chatErr) {
			chatErr = &Error{Kind: KindProviderUnavailable, Err: err}
		}
		s.metrics.ObserveStage("chat_completion", time.Since(start), string(chatErr.Kind))
		return nil, chatErr
	}
	s.metrics.ObserveStage("chat_completion", time.Since(start), "")

	id, err := s.store.InsertChat(ctx, db.ChatRecord{
		OwnerID:  ownerID,
		Message:  message,
		Response: response,
	})
	if err != nil {
		return nil, &Error{Kind: KindPersistenceError, Err: err}
	}

	logger.Info("Chat message answered",
		zap.String("owner_id", ownerID),
		zap.Int64("chat_id", id),
		zap.Duration("duration", time.Since(start)))

	return &Reply{ChatID: strconv.FormatInt(id, 10), Response: response}, nil
}

// History returns the owner's most recent turns, newest first.
func (s *Service) History(ctx context.Context, ownerID string) ([]Turn, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, &Error{Kind: KindMissingIdentity}
	}
	records, err := s.store.QueryRecentChats(ctx, ownerID, s.historyLimit)
	if err != nil {
		s.logger.Error("Failed to load chat history", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, &Error{Kind: KindPersistenceError, Err: err}
	}
	turns := make([]Turn, 0, len(records))
	for _, rec := range records {
		turns = append(turns, Turn{
			ID:        strconv.FormatInt(rec.ID, 10),
			Message:   rec.Message,
			Response:  rec.Response,
			CreatedAt: rec.CreatedAt,
		})
	}
	return turns, nil
}
