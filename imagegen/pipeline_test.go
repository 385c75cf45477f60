package imagegen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"aichat_backend/logging"
	"aichat_backend/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"
)

// fakeDescriber counts calls and returns a fixed description or error.
type fakeDescriber struct {
	mu     sync.Mutex
	calls  int
	inputs []DescribeInput
	text   string
	err    error
	order  *[]string
}

func (f *fakeDescriber) Describe(_ context.Context, in DescribeInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.inputs = append(f.inputs, in)
	if f.order != nil {
		*f.order = append(*f.order, "describe")
	}
	return f.text, f.err
}

// fakeSynthesizer returns image bytes, or the queued errors first.
type fakeSynthesizer struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	errs    []error
	data    []byte
	order   *[]string
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, prompt string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.order != nil {
		*f.order = append(*f.order, "synthesize")
	}
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return f.data, nil
}

type memGateway struct {
	mu      sync.Mutex
	saved   []Result
	saveErr error
	findErr error
}

func (g *memGateway) Save(_ context.Context, r Result) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.saveErr != nil {
		return "", g.saveErr
	}
	g.saved = append(g.saved, r)
	return fmt.Sprint(len(g.saved)), nil
}

func (g *memGateway) FindRecent(_ context.Context, owner string, limit int) ([]Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.findErr != nil {
		return nil, g.findErr
	}
	var out []Result
	for i := len(g.saved) - 1; i >= 0 && len(out) < limit; i-- {
		if g.saved[i].OwnerID == owner {
			out = append(out, g.saved[i])
		}
	}
	return out, nil
}

type memJournal struct {
	mu      sync.Mutex
	entries []FailureEntry
}

func (j *memJournal) Record(_ context.Context, e FailureEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
}

type memOrphans struct {
	kept []Orphan
}

func (m *memOrphans) Keep(o Orphan) (string, error) {
	m.kept = append(m.kept, o)
	return "/orphans/" + o.CorrelationID + ".png", nil
}

func pngBytes(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 7 {
		img.Set(x, 0, color.RGBA{G: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type fixture struct {
	describer   *fakeDescriber
	synthesizer *fakeSynthesizer
	gateway     *memGateway
	journal     *memJournal
	orphans     *memOrphans
	states      []State
	pipeline    *Pipeline
}

func newFixture(t testing.TB, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		describer:   &fakeDescriber{text: "a landscape under a purple sky"},
		synthesizer: &fakeSynthesizer{data: pngBytes(t, 4, 4)},
		gateway:     &memGateway{},
		journal:     &memJournal{},
		orphans:     &memOrphans{},
	}
	base := []Option{
		WithDescriber(f.describer),
		WithFailureJournal(f.journal),
		WithOrphanSink(f.orphans),
		WithStateHook(func(_ string, s State) { f.states = append(f.states, s) }),
	}
	p, err := NewPipeline(f.synthesizer, f.gateway, append(base, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	f.pipeline = p
	return f
}

func assertStates(t *testing.T, got []State, want ...State) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("states = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("states = %v, want %v", got, want)
		}
	}
}

func TestPipeline_ScenarioA_DirectBranch(t *testing.T) {
	f := newFixture(t)

	out, err := f.pipeline.Generate(context.Background(), RawRequest{Owner: "7", Prompt: "a red bicycle"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if f.synthesizer.calls != 1 {
		t.Errorf("synthesis calls = %d, want 1", f.synthesizer.calls)
	}
	if f.describer.calls != 0 {
		t.Errorf("description calls = %d, want 0", f.describer.calls)
	}
	if f.synthesizer.prompts[0] != "a red bicycle" {
		t.Errorf("synthesis prompt = %q", f.synthesizer.prompts[0])
	}
	if len(f.gateway.saved) != 1 {
		t.Fatalf("saved = %d, want 1", len(f.gateway.saved))
	}
	saved := f.gateway.saved[0]
	if saved.Mode != ModeDirect || saved.Prompt != "a red bicycle" || saved.OwnerID != "7" {
		t.Errorf("unexpected result: %+v", saved)
	}
	if saved.Description != "" || saved.SourceFilename != "" {
		t.Error("direct results must not carry derived-only fields")
	}
	if !strings.HasPrefix(out.ImageURL, "data:image/png;base64,") {
		t.Errorf("image url = %.40s", out.ImageURL)
	}
	if out.ImageID != "1" || out.Mode != ModeDirect {
		t.Errorf("unexpected output: %+v", out)
	}
	assertStates(t, f.states, StateValidating, StateBranching, StateSynthesizing, StatePersisting, StateDone)
}

func TestPipeline_ScenarioB_DerivedBranch(t *testing.T) {
	var order []string
	f := newFixture(t)
	f.describer.order = &order
	f.synthesizer.order = &order

	// A small valid PNG padded to 2 MB; decoders stop at IEND.
	upload := append(pngBytes(t, 8, 8), make([]byte, 2<<20)...)

	out, err := f.pipeline.Generate(context.Background(), RawRequest{
		Owner:  "7",
		Prompt: "make the sky purple",
		Upload: &Upload{Filename: "beach.png", MediaType: "image/png", Data: upload},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if strings.Join(order, ",") != "describe,synthesize" {
		t.Errorf("call order = %v", order)
	}
	in := f.describer.inputs[0]
	if !strings.Contains(in.Instruction, "make the sky purple") {
		t.Error("instruction does not include the user's request")
	}
	if !bytes.Equal(in.Image, upload) || in.MediaType != "image/png" {
		t.Error("small upload should reach the describer unchanged")
	}
	if f.synthesizer.prompts[0] != f.describer.text {
		t.Errorf("synthesis prompt = %q, want the description", f.synthesizer.prompts[0])
	}

	saved := f.gateway.saved[0]
	if saved.Mode != ModeDerived || saved.Description != f.describer.text || saved.SourceFilename != "beach.png" {
		t.Errorf("unexpected result: %+v", saved)
	}
	if saved.Prompt != "make the sky purple" {
		t.Errorf("stored prompt = %q, want the user's prompt", saved.Prompt)
	}
	if out.Description != f.describer.text {
		t.Errorf("output description = %q", out.Description)
	}
	assertStates(t, f.states, StateValidating, StateBranching, StateDescribing, StateSynthesizing, StatePersisting, StateDone)
}

func TestPipeline_ScenarioC_BlankPrompt(t *testing.T) {
	f := newFixture(t)

	out, err := f.pipeline.Generate(context.Background(), RawRequest{Owner: "7", Prompt: "   "})
	if out != nil {
		t.Fatal("expected no output")
	}
	var genErr *GenerationError
	if !errors.As(err, &genErr) || genErr.Kind != KindEmptyPrompt {
		t.Fatalf("err = %v, want EmptyPrompt", err)
	}
	if genErr.HTTPStatus() != 400 {
		t.Errorf("status = %d", genErr.HTTPStatus())
	}
	if f.describer.calls+f.synthesizer.calls != 0 {
		t.Error("no provider may be called for invalid input")
	}
	if len(f.journal.entries) != 0 {
		t.Error("input errors are not journaled")
	}
	assertStates(t, f.states, StateValidating, StateFailed)
}

func TestPipeline_ScenarioD_SynthesisQuota(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg, nil)
	if err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, WithMetrics(collector))
	f.synthesizer.errs = []error{
		newProviderError(KindProviderQuotaExceeded, ProviderFailure{Stage: StageSynthesizing, Status: 429}, nil),
	}

	_, err = f.pipeline.Generate(context.Background(), RawRequest{Owner: "7", Prompt: "a red bicycle"})
	if kindOf(t, err) != KindProviderQuotaExceeded {
		t.Fatalf("err = %v", err)
	}
	if err.(*GenerationError).HTTPStatus() != 429 {
		t.Error("quota must map to 429")
	}
	if len(f.gateway.saved) != 0 {
		t.Error("nothing may be persisted after a synthesis failure")
	}
	if len(f.journal.entries) != 1 || f.journal.entries[0].Stage != StageSynthesizing {
		t.Errorf("journal = %+v", f.journal.entries)
	}
	assertStates(t, f.states, StateValidating, StateBranching, StateSynthesizing, StateFailed)

	expected := `
# HELP aichat_pipeline_runs_total Finished pipeline runs by mode and outcome.
# TYPE aichat_pipeline_runs_total counter
aichat_pipeline_runs_total{mode="image_direct",outcome="error"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "aichat_pipeline_runs_total"); err != nil {
		t.Error(err)
	}
}

func TestPipeline_ScenarioE_PersistenceFailure(t *testing.T) {
	f := newFixture(t)
	f.gateway.saveErr = errors.New("database is locked")

	out, err := f.pipeline.Generate(context.Background(), RawRequest{Owner: "7", Prompt: "a red bicycle"})

	if out != nil {
		t.Fatal("the generated image must not be returned when persistence fails")
	}
	var genErr *GenerationError
	if !errors.As(err, &genErr) || genErr.Kind != KindPersistenceError {
		t.Fatalf("err = %v, want PersistenceError", err)
	}
	if genErr.HTTPStatus() != 500 {
		t.Errorf("status = %d", genErr.HTTPStatus())
	}
	if strings.Contains(err.Error(), "base64") {
		t.Error("error text must not leak image data")
	}
	if f.synthesizer.calls != 1 {
		t.Errorf("synthesis calls = %d", f.synthesizer.calls)
	}
	if len(f.orphans.kept) != 1 || !bytes.Equal(f.orphans.kept[0].Data, f.synthesizer.data) {
		t.Fatal("generated bytes should be kept for reconciliation")
	}
	if f.orphans.kept[0].Prompt != "a red bicycle" {
		t.Errorf("orphan prompt = %q", f.orphans.kept[0].Prompt)
	}
	assertStates(t, f.states, StateValidating, StateBranching, StateSynthesizing, StatePersisting, StateFailed)
}

func TestPipeline_DescriptionFailureSkipsSynthesis(t *testing.T) {
	kinds := []Kind{KindProviderAuthError, KindProviderQuotaExceeded, KindProviderEmptyResult, KindProviderUnavailable}
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			f := newFixture(t)
			f.describer.err = newProviderError(kind, ProviderFailure{Stage: StageDescribing}, nil)

			_, err := f.pipeline.Generate(context.Background(), RawRequest{
				Owner:  "7",
				Prompt: "make it night",
				Upload: &Upload{MediaType: "image/png", Data: pngBytes(t, 2, 2)},
			})
			if kindOf(t, err) != kind {
				t.Fatalf("err = %v", err)
			}
			if f.synthesizer.calls != 0 {
				t.Errorf("synthesis calls = %d, want 0", f.synthesizer.calls)
			}
			if len(f.gateway.saved) != 0 {
				t.Error("nothing may be persisted")
			}
			assertStates(t, f.states, StateValidating, StateBranching, StateDescribing, StateFailed)
		})
	}
}

func TestPipeline_BlankDescriptionIsEmptyResult(t *testing.T) {
	f := newFixture(t)
	f.describer.text = "  \n\t "

	_, err := f.pipeline.Generate(context.Background(), RawRequest{
		Owner:  "7",
		Prompt: "make it night",
		Upload: &Upload{MediaType: "image/png", Data: pngBytes(t, 2, 2)},
	})
	if kindOf(t, err) != KindProviderEmptyResult {
		t.Fatalf("err = %v", err)
	}
	if f.synthesizer.calls != 0 {
		t.Error("synthesis must not run")
	}
}

func TestPipeline_DerivedWithoutDescriber(t *testing.T) {
	synth := &fakeSynthesizer{data: pngBytes(t, 2, 2)}
	p, err := NewPipeline(synth, &memGateway{})
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Generate(context.Background(), RawRequest{
		Owner: "7", Prompt: "x", Upload: &Upload{MediaType: "image/png", Data: pngBytes(t, 2, 2)},
	})
	if kindOf(t, err) != KindProviderUnavailable {
		t.Fatalf("err = %v", err)
	}
	if synth.calls != 0 {
		t.Error("synthesis must not run")
	}
}

func TestPipeline_LargeUploadIsDownscaled(t *testing.T) {
	f := newFixture(t, WithMaxImageSide(64))

	_, err := f.pipeline.Generate(context.Background(), RawRequest{
		Owner: "7", Prompt: "x", Upload: &Upload{MediaType: "image/png", Data: pngBytes(t, 256, 32)},
	})
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(f.describer.inputs[0].Image))
	if err != nil {
		t.Fatalf("describer received undecodable image: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 8 {
		t.Errorf("resized to %dx%d, want 64x8", b.Dx(), b.Dy())
	}
}

func TestPipeline_RetriesWarmingUpWithinOneState(t *testing.T) {
	policies := DefaultStagePolicies()
	policies.Synthesize.MaxAttempts = 3
	policies.Synthesize.InitialDelay = time.Millisecond
	policies.Synthesize.MaxDelay = 2 * time.Millisecond

	f := newFixture(t, WithRetryPolicies(policies))
	warming := newProviderError(KindProviderWarmingUp, ProviderFailure{Stage: StageSynthesizing, Status: 503}, nil)
	f.synthesizer.errs = []error{warming, warming}

	if _, err := f.pipeline.Generate(context.Background(), RawRequest{Owner: "7", Prompt: "x"}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if f.synthesizer.calls != 3 {
		t.Errorf("synthesis calls = %d, want 3", f.synthesizer.calls)
	}
	assertStates(t, f.states, StateValidating, StateBranching, StateSynthesizing, StatePersisting, StateDone)
}

func TestPipeline_DefaultPolicyDoesNotRetry(t *testing.T) {
	f := newFixture(t)
	f.synthesizer.errs = []error{
		newProviderError(KindProviderWarmingUp, ProviderFailure{Stage: StageSynthesizing, Status: 503}, nil),
	}

	_, err := f.pipeline.Generate(context.Background(), RawRequest{Owner: "7", Prompt: "x"})
	if kindOf(t, err) != KindProviderWarmingUp {
		t.Fatalf("err = %v", err)
	}
	if f.synthesizer.calls != 1 {
		t.Errorf("synthesis calls = %d, want 1", f.synthesizer.calls)
	}
}

func TestPipeline_UnclassifiedProviderErrorIsClassified(t *testing.T) {
	f := newFixture(t)
	f.synthesizer.errs = []error{errors.New("socket closed")}

	_, err := f.pipeline.Generate(context.Background(), RawRequest{Owner: "7", Prompt: "x"})
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected *GenerationError, got %T", err)
	}
	if genErr.Kind != KindProviderUnavailable || genErr.Stage != StageSynthesizing {
		t.Errorf("got %s at %s", genErr.Kind, genErr.Stage)
	}
}

func TestPipeline_LogsCorrelationID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	f := newFixture(t,
		WithLogger(logging.NewWithCore(core)),
		WithIDGenerator(func() string { return "corr-1" }))

	if _, err := f.pipeline.Generate(context.Background(), RawRequest{Owner: "7", Prompt: "x"}); err != nil {
		t.Fatal(err)
	}

	done := logs.FilterMessage("Image generation completed").All()
	if len(done) != 1 {
		t.Fatalf("expected one completion log, got %d", len(done))
	}
	if got := done[0].ContextMap()["correlation_id"]; got != "corr-1" {
		t.Errorf("correlation_id = %v", got)
	}
}

func TestPipeline_History(t *testing.T) {
	f := newFixture(t, WithHistoryLimit(2))
	for _, owner := range []string{"a", "b", "a", "a"} {
		if _, err := f.pipeline.Generate(context.Background(), RawRequest{Owner: owner, Prompt: "p-" + owner}); err != nil {
			t.Fatal(err)
		}
	}

	results, err := f.pipeline.History(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("len = %d, want 2", len(results))
	}
	for _, r := range results {
		if r.OwnerID != "a" {
			t.Errorf("leaked result of owner %s", r.OwnerID)
		}
	}

	if _, err := f.pipeline.History(context.Background(), ""); kindOf(t, err) != KindMissingIdentity {
		t.Error("anonymous history should be rejected")
	}

	f.gateway.findErr = errors.New("disk I/O error")
	if _, err := f.pipeline.History(context.Background(), "a"); kindOf(t, err) != KindPersistenceError {
		t.Error("store failure should be PersistenceError")
	}
}

func TestPipeline_BlankPromptNeverCallsProviders(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		prompt := rapid.StringMatching(`[ \t\r\n]{0,20}`).Draw(rt, "prompt")
		withUpload := rapid.Bool().Draw(rt, "withUpload")

		f := newFixture(t)
		raw := RawRequest{Owner: "owner", Prompt: prompt}
		if withUpload {
			raw.Upload = &Upload{MediaType: "image/png", Data: []byte{1, 2, 3}}
		}

		_, err := f.pipeline.Generate(context.Background(), raw)
		var genErr *GenerationError
		if !errors.As(err, &genErr) || genErr.Kind != KindEmptyPrompt {
			rt.Fatalf("prompt %q: err = %v", prompt, err)
		}
		if f.describer.calls != 0 || f.synthesizer.calls != 0 {
			rt.Fatalf("prompt %q reached a provider", prompt)
		}
	})
}

func TestPipeline_SamePromptTwiceCreatesTwoResults(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		prompt := rapid.StringMatching(`[a-z][a-z ]{0,30}`).Draw(rt, "prompt")

		f := newFixture(t)
		first, err := f.pipeline.Generate(context.Background(), RawRequest{Owner: "o", Prompt: prompt})
		if err != nil {
			rt.Fatal(err)
		}
		second, err := f.pipeline.Generate(context.Background(), RawRequest{Owner: "o", Prompt: prompt})
		if err != nil {
			rt.Fatal(err)
		}
		if first.ImageID == second.ImageID || first.CorrelationID == second.CorrelationID {
			rt.Fatalf("runs were deduplicated: %+v %+v", first, second)
		}
		if len(f.gateway.saved) != 2 {
			rt.Fatalf("saved = %d, want 2", len(f.gateway.saved))
		}
	})
}

func TestNewPipeline_RequiresCollaborators(t *testing.T) {
	if _, err := NewPipeline(nil, &memGateway{}); err == nil {
		t.Error("expected error without synthesizer")
	}
	if _, err := NewPipeline(&fakeSynthesizer{}, nil); err == nil {
		t.Error("expected error without gateway")
	}
}
