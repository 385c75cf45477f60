package imagegen

import (
	"context"
	"errors"
	"time"

	"aichat_backend/logging"
	"aichat_backend/metrics"
	"aichat_backend/vision"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultHistoryLimit is how many results a history query returns.
const DefaultHistoryLimit = 20

// Output is what a successful run returns to the caller.
type Output struct {
	ImageID       string
	ImageURL      string
	Mode          string
	CorrelationID string

	// Description is the full intermediate prompt on the derived branch.
	Description string
}

// Pipeline orchestrates validation, the optional description stage,
// synthesis and persistence. Runs share no mutable state, so one Pipeline
// serves concurrent requests.
type Pipeline struct {
	validator   *Validator
	describer   Describer
	synthesizer Synthesizer
	gateway     Gateway
	journal     FailureJournal
	orphans     OrphanSink
	metrics     *metrics.Collector
	logger      *logging.Logger
	policies    StagePolicies
	stateHook   StateHook
	newID       func() string
	maxSide     int
	history     int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDescriber enables the derived branch. Without one, derived requests
// fail at the description stage with ProviderUnavailable.
func WithDescriber(d Describer) Option {
	return func(p *Pipeline) { p.describer = d }
}

func WithValidator(v *Validator) Option {
	return func(p *Pipeline) { p.validator = v }
}

func WithFailureJournal(j FailureJournal) Option {
	return func(p *Pipeline) { p.journal = j }
}

func WithOrphanSink(s OrphanSink) Option {
	return func(p *Pipeline) { p.orphans = s }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(p *Pipeline) { p.metrics = c }
}

func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func WithRetryPolicies(policies StagePolicies) Option {
	return func(p *Pipeline) { p.policies = policies }
}

// WithStateHook observes every state transition.
func WithStateHook(h StateHook) Option {
	return func(p *Pipeline) { p.stateHook = h }
}

// WithIDGenerator replaces the uuid correlation id generator.
func WithIDGenerator(f func() string) Option {
	return func(p *Pipeline) { p.newID = f }
}

// WithMaxImageSide sets the downscale threshold for uploads.
func WithMaxImageSide(px int) Option {
	return func(p *Pipeline) { p.maxSide = px }
}

func WithHistoryLimit(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.history = n
		}
	}
}

// NewPipeline wires a pipeline around a synthesizer and a persistence gateway.
//
// Parameters:
//   - synthesizer: produces image bytes from a prompt (required)
//   - gateway: stores and lists generated images (required)
//   - opts: optional collaborators; anything not supplied gets a no-op or
//     default (no describer, no journal, discarded orphans, single attempt)
//
// Returns an error if synthesizer or gateway is nil.
func NewPipeline(synthesizer Synthesizer, gateway Gateway, opts ...Option) (*Pipeline, error) {
	if synthesizer == nil {
		return nil, errors.New("imagegen: synthesizer is required")
	}
	if gateway == nil {
		return nil, errors.New("imagegen: gateway is required")
	}

	p := &Pipeline{
		validator:   NewValidator(DefaultMaxUploadSize),
		synthesizer: synthesizer,
		gateway:     gateway,
		journal:     nopJournal{},
		orphans:     discardOrphans{},
		logger:      logging.NewNop(),
		policies:    DefaultStagePolicies(),
		newID:       uuid.NewString,
		maxSide:     vision.DefaultMaxSide,
		history:     DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// run carries one request through the state machine.
type run struct {
	p       *Pipeline
	id      string
	owner   string
	mode    string
	state   State
	started time.Time
	logger  *logging.Logger
}

func (r *run) enter(s State) {
	r.state = s
	if r.p.stateHook != nil {
		r.p.stateHook(r.id, s)
	}
}

// Validator returns the request validator so callers can reject uploads
// before reading them fully.
func (p *Pipeline) Validator() *Validator { return p.validator }

// Generate runs the pipeline for one request. Every returned error is a
// *GenerationError; no partial result is ever persisted or returned.
func (p *Pipeline) Generate(ctx context.Context, raw RawRequest) (*Output, error) {
	r := &run{
		p:       p,
		id:      p.newID(),
		owner:   raw.Owner,
		mode:    ModeDirect,
		started: time.Now(),
	}
	if raw.Upload != nil {
		r.mode = ModeDerived
	}
	r.logger = p.logger.With(zap.String("correlation_id", r.id))

	r.enter(StateValidating)
	req, err := p.validator.Validate(raw)
	if err != nil {
		return nil, r.fail(ctx, asGenerationError(StageValidating, err))
	}
	r.owner = req.OwnerID()
	r.mode = req.Mode()

	r.enter(StateBranching)
	r.logger.Info("Starting image generation",
		zap.String("mode", r.mode),
		zap.String("owner_id", r.owner),
		zap.Int("prompt_length", len(req.UserPrompt())))

	var synthesisPrompt, description, sourceFilename string
	switch req := req.(type) {
	case DirectRequest:
		synthesisPrompt = req.Prompt
	case DerivedRequest:
		r.enter(StateDescribing)
		var genErr *GenerationError
		description, genErr = p.describe(ctx, r, req)
		if genErr != nil {
			return nil, r.fail(ctx, genErr)
		}
		synthesisPrompt = description
		sourceFilename = req.Image.Filename
	}

	r.enter(StateSynthesizing)
	data, genErr := p.synthesize(ctx, r, synthesisPrompt)
	if genErr != nil {
		return nil, r.fail(ctx, genErr)
	}

	r.enter(StatePersisting)
	result := Result{
		OwnerID:        r.owner,
		Prompt:         req.UserPrompt(),
		ImageURL:       EncodeDataURI(data),
		Mode:           r.mode,
		CorrelationID:  r.id,
		Description:    description,
		SourceFilename: sourceFilename,
	}
	persistStart := time.Now()
	imageID, err := p.gateway.Save(ctx, result)
	if err != nil {
		p.metrics.ObserveStage(string(StagePersisting), time.Since(persistStart), string(KindPersistenceError))
		p.keepOrphan(r, result, data)
		return nil, r.fail(ctx, persistenceError(StagePersisting, err))
	}
	p.metrics.ObserveStage(string(StagePersisting), time.Since(persistStart), "")

	r.enter(StateDone)
	r.record(nil)
	r.logger.Info("Image generation completed",
		zap.String("image_id", imageID),
		zap.Duration("duration", time.Since(r.started)))

	return &Output{
		ImageID:       imageID,
		ImageURL:      result.ImageURL,
		Mode:          r.mode,
		CorrelationID: r.id,
		Description:   description,
	}, nil
}

func (p *Pipeline) describe(ctx context.Context, r *run, req DerivedRequest) (string, *GenerationError) {
	start := time.Now()
	if p.describer == nil {
		genErr := &GenerationError{
			Kind:    KindProviderUnavailable,
			Stage:   StageDescribing,
			Message: "Image-to-image generation is not configured",
		}
		p.metrics.ObserveStage(string(StageDescribing), time.Since(start), string(genErr.Kind))
		return "", genErr
	}

	image, mediaType := req.Image.Data, req.Image.MediaType
	if prepared, err := vision.PrepareUpload(image, mediaType, p.maxSide); err != nil {
		r.logger.Warn("Sending upload without preprocessing", zap.Error(err))
	} else {
		if prepared.Resized {
			r.logger.Debug("Downscaled upload",
				zap.Int("width", prepared.Width), zap.Int("height", prepared.Height))
		}
		image, mediaType = prepared.Data, prepared.MediaType
	}

	in := DescribeInput{
		Instruction: BuildDescriptionInstruction(req.Prompt),
		Image:       image,
		MediaType:   mediaType,
	}

	var description string
	err := p.policies.Describe.Do(ctx, func(ctx context.Context) error {
		text, err := p.describer.Describe(ctx, in)
		if err != nil {
			return asGenerationError(StageDescribing, err)
		}
		description = text
		return nil
	}, r.retryLogger(StageDescribing))

	if err == nil {
		description = trimDescription(description)
		if description == "" {
			err = newProviderError(KindProviderEmptyResult, ProviderFailure{Stage: StageDescribing, Raw: "description is blank"}, nil)
		}
	}
	if err != nil {
		genErr := asGenerationError(StageDescribing, err)
		p.metrics.ObserveStage(string(StageDescribing), time.Since(start), string(genErr.Kind))
		return "", genErr
	}
	p.metrics.ObserveStage(string(StageDescribing), time.Since(start), "")
	r.logger.Debug("Description ready", zap.Int("description_length", len(description)))
	return description, nil
}

func (p *Pipeline) synthesize(ctx context.Context, r *run, prompt string) ([]byte, *GenerationError) {
	start := time.Now()

	var data []byte
	err := p.policies.Synthesize.Do(ctx, func(ctx context.Context) error {
		out, err := p.synthesizer.Synthesize(ctx, prompt)
		if err != nil {
			return asGenerationError(StageSynthesizing, err)
		}
		if len(out) == 0 {
			return badResponse("provider returned no image data")
		}
		data = out
		return nil
	}, r.retryLogger(StageSynthesizing))

	if err != nil {
		genErr := asGenerationError(StageSynthesizing, err)
		p.metrics.ObserveStage(string(StageSynthesizing), time.Since(start), string(genErr.Kind))
		return nil, genErr
	}
	p.metrics.ObserveStage(string(StageSynthesizing), time.Since(start), "")
	return data, nil
}

func (r *run) retryLogger(stage Stage) func(int, time.Duration, error) {
	return func(attempt int, delay time.Duration, err error) {
		r.logger.Warn("Retrying stage",
			zap.String("stage", string(stage)),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}
}

// keepOrphan stores bytes the user will not receive. Errors are logged only.
func (p *Pipeline) keepOrphan(r *run, result Result, data []byte) {
	path, err := p.orphans.Keep(Orphan{
		CorrelationID: r.id,
		OwnerID:       result.OwnerID,
		Prompt:        result.Prompt,
		Mode:          result.Mode,
		Description:   result.Description,
		MediaType:     DetectImageMediaType(data),
		CreatedAt:     time.Now().UTC(),
		Data:          data,
	})
	if err != nil {
		r.logger.Error("Failed to keep orphaned image", zap.Error(err))
		return
	}
	if path != "" {
		p.metrics.OrphanWritten()
		r.logger.Warn("Kept orphaned image for reconciliation", zap.String("path", path))
	}
}

func (r *run) fail(ctx context.Context, genErr *GenerationError) *GenerationError {
	failedAt := r.state
	r.enter(StateFailed)
	r.record(genErr)

	fields := []zap.Field{
		zap.String("state", string(failedAt)),
		zap.String("stage", string(genErr.Stage)),
		zap.String("kind", string(genErr.Kind)),
		zap.Error(genErr),
	}
	if genErr.Failure != nil {
		fields = append(fields, zap.Int("upstream_status", genErr.Failure.Status), zap.String("upstream_code", genErr.Failure.Code))
	}
	if genErr.Kind.IsInputError() {
		r.logger.Info("Rejected image generation request", fields...)
		return genErr
	}
	r.logger.Error("Image generation failed", fields...)

	r.p.journal.Record(ctx, FailureEntry{
		CorrelationID: r.id,
		OwnerID:       r.owner,
		Stage:         genErr.Stage,
		Kind:          genErr.Kind,
		Message:       genErr.Error(),
	})
	return genErr
}

func (r *run) record(genErr *GenerationError) {
	rec := metrics.RunRecord{
		ID:        r.id,
		Type:      runType(r.mode),
		OwnerID:   r.owner,
		Status:    metrics.RunStatusSuccess,
		StartTime: r.started,
		EndTime:   time.Now(),
	}
	rec.Duration = rec.EndTime.Sub(rec.StartTime)
	if genErr != nil {
		rec.Status = metrics.RunStatusError
		rec.ErrorKind = string(genErr.Kind)
		rec.FailedStage = string(genErr.Stage)
	}
	r.p.metrics.RecordRun(rec)
}

func runType(mode string) string {
	if mode == ModeDerived {
		return metrics.RunTypeImageDerived
	}
	return metrics.RunTypeImageDirect
}

// History returns the owner's most recent results, newest first.
func (p *Pipeline) History(ctx context.Context, ownerID string) ([]Result, error) {
	if ownerID == "" {
		return nil, newInputError(KindMissingIdentity, "")
	}
	results, err := p.gateway.FindRecent(ctx, ownerID, p.history)
	if err != nil {
		p.logger.Error("Failed to load image history", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, persistenceError(StagePersisting, err)
	}
	if len(results) > p.history {
		results = results[:p.history]
	}
	return results, nil
}
