package diag_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"diagflow/pkg/diag"
	apperrors "diagflow/pkg/errors"
	"diagflow/pkg/filter"
	"diagflow/pkg/listener"
	"diagflow/pkg/logger"
	"diagflow/pkg/logging"
	"diagflow/pkg/models"
	"diagflow/pkg/settings"
	"diagflow/pkg/strtable"
)

const testNamespace = "diagflow/pkg/diag_test"

type sink struct {
	*listener.Func

	mu  sync.Mutex
	got []*models.Message
}

func newSink(id int) *sink {
	s := &sink{}
	s.Func = listener.NewFunc(id, "sink", func(ctx context.Context, msg *models.Message) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.got = append(s.got, msg)
		return nil
	})
	return s
}

func (s *sink) messages() []*models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Message(nil), s.got...)
}

type fakeNotifier struct {
	enabled bool
	err     error

	mu  sync.Mutex
	got []*models.Message
}

func (n *fakeNotifier) Enabled() bool { return n.enabled }

func (n *fakeNotifier) Notify(ctx context.Context, msg *models.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, msg)
	return n.err
}

type fakePlatform struct {
	mu    sync.Mutex
	texts []string
}

func (p *fakePlatform) Log(ctx context.Context, msg *models.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts = append(p.texts, msg.Text)
}

func newPipeline(t *testing.T, opts ...diag.Option) (*diag.Pipeline, *sink) {
	t.Helper()
	p, err := diag.New(opts...)
	require.NoError(t, err)
	s := newSink(1)
	require.NoError(t, p.AddListener(s))
	t.Cleanup(func() { p.Close() })
	return p, s
}

func TestNewRejectsCapacity(t *testing.T) {
	_, err := diag.New(diag.WithCapacity(0))
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidArgument(err))

	p, err := diag.New(diag.WithCapacity(3), diag.WithName("orders"))
	require.NoError(t, err)
	assert.Equal(t, 3, p.Capacity())
	assert.Equal(t, "orders", p.Name())

	err = p.SetCapacity(-1)
	require.Error(t, err)
	assert.Equal(t, 3, p.Capacity())
}

func TestReportStoresAndDispatches(t *testing.T) {
	ctx := context.Background()
	p, s := newPipeline(t)

	p.ReportWarning(ctx, "cache miss for %s", "user:42")

	require.Equal(t, 1, p.StoredCount())
	msg := p.StoredAt(0)
	assert.Equal(t, models.KindWarning, msg.Kind)
	assert.Equal(t, "cache miss for user:42", msg.Text)
	assert.Equal(t, testNamespace, msg.Origin.Namespace)
	assert.Equal(t, "TestReportStoresAndDispatches", msg.Origin.Method)
	assert.False(t, msg.HasTrace)
	assert.NotEmpty(t, msg.ID)
	assert.NotZero(t, msg.ThreadID)

	got := s.messages()
	require.Len(t, got, 1)
	assert.Same(t, msg, got[0])
	assert.True(t, s.IsOpen())
}

func TestReportEmptyFormatIsIgnored(t *testing.T) {
	p, s := newPipeline(t)

	p.ReportError(context.Background(), "")
	p.Report(context.Background(), models.KindUnknown, "")

	assert.Zero(t, p.StoredCount())
	assert.Empty(t, s.messages())
}

func TestDisabledPipelineHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	notifier := &fakeNotifier{enabled: true}
	platform := &fakePlatform{}
	p, s := newPipeline(t, diag.WithNotifier(notifier), diag.WithPlatformLogger(platform))
	p.SetPlatformLog(true)
	p.SetAssertShouldThrow(true)
	p.SetEnabled(false)

	p.ReportError(ctx, "boom")
	p.ReportJSON(ctx, map[string]int{"a": 1}, "payload")
	assert.NoError(t, p.Assert(ctx, false, "must hold"))
	assert.NoError(t, p.AssertNotNull(ctx, nil, ""))

	assert.Zero(t, p.StoredCount())
	assert.Empty(t, s.messages())
	assert.Empty(t, notifier.got)
	assert.Empty(t, platform.texts)
}

func TestAssertReturnsErrorAfterSideEffects(t *testing.T) {
	ctx := context.Background()
	p, s := newPipeline(t)
	p.SetAssertShouldThrow(true)

	require.NoError(t, p.Assert(ctx, true, "never reported"))
	assert.Zero(t, p.StoredCount())

	err := p.Assert(ctx, false, "balance %d below zero", -5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAssertion))
	assert.Equal(t, "ASSERTION_FAILED: balance -5 below zero", err.Error())

	var assertErr *diag.AssertionError
	require.True(t, errors.As(err, &assertErr))
	assert.Equal(t, models.KindError, assertErr.Message.Kind)

	// the message was stored and dispatched before the error came back
	require.Equal(t, 1, p.StoredCount())
	assert.Same(t, assertErr.Message, p.StoredAt(0))
	require.Len(t, s.messages(), 1)

	p.SetAssertShouldThrow(false)
	assert.NoError(t, p.Assert(ctx, false, "quiet"))
	assert.Equal(t, 2, p.StoredCount())
}

func TestAssertDefaultTexts(t *testing.T) {
	ctx := context.Background()
	var nilMap map[string]int
	var nilPtr *int

	tests := []struct {
		name string
		call func(p *diag.Pipeline) error
		want string
	}{
		{"assert", func(p *diag.Pipeline) error { return p.Assert(ctx, false, "") }, diag.DefaultAssertText},
		{"nil interface", func(p *diag.Pipeline) error { return p.AssertNotNull(ctx, nil, "") }, diag.DefaultAssertNullText},
		{"nil map", func(p *diag.Pipeline) error { return p.AssertNotNull(ctx, nilMap, "") }, diag.DefaultAssertNullText},
		{"typed nil pointer", func(p *diag.Pipeline) error { return p.AssertNotNull(ctx, nilPtr, "") }, diag.DefaultAssertNullText},
		{"type", func(p *diag.Pipeline) error {
			return p.AssertType(ctx, "text", reflect.TypeOf(0), "")
		}, diag.DefaultAssertTypeText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newPipeline(t)
			require.NoError(t, tt.call(p))
			require.Equal(t, 1, p.StoredCount())
			assert.Equal(t, tt.want, p.StoredAt(0).Text)
			assert.Equal(t, models.KindError, p.StoredAt(0).Kind)
		})
	}
}

func TestAssertTypeSkipsNil(t *testing.T) {
	ctx := context.Background()
	p, _ := newPipeline(t)
	p.SetAssertShouldThrow(true)

	assert.NoError(t, p.AssertType(ctx, nil, reflect.TypeOf(0), "x"))
	assert.NoError(t, p.AssertType(ctx, 1, nil, "x"))
	assert.NoError(t, p.AssertType(ctx, 7, reflect.TypeOf(0), "x"))
	assert.NoError(t, p.AssertType(ctx, errors.New("e"), reflect.TypeFor[error](), "x"))
	assert.Zero(t, p.StoredCount())

	assert.NoError(t, p.AssertNotNull(ctx, &struct{}{}, "x"))
	assert.Zero(t, p.StoredCount())
}

func TestFormatFailureAbortsCall(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.DebugLevel)
	p, s := newPipeline(t, diag.WithLogger(logger.FromZap(zap.New(core))))
	p.SetAssertShouldThrow(true)

	tests := []struct {
		name   string
		format string
		args   []interface{}
	}{
		{"bad verb", "%d items", []interface{}{"many"}},
		{"missing argument", "%s and %s", []interface{}{"one"}},
		{"extra argument", "done", []interface{}{42}},
		{"unknown string key", "@missing", nil},
		{"panicking stringer", "state %v", []interface{}{brokenStringer{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p.ReportError(ctx, tt.format, tt.args...)
			assert.NoError(t, p.Assert(ctx, false, tt.format, tt.args...))
		})
	}

	assert.Zero(t, p.StoredCount())
	assert.Empty(t, s.messages())
	assert.Equal(t, 2*len(tests), logs.FilterMessage("Message formatting failed").Len())

	p.ReportError(ctx, "100%% done")
	require.Equal(t, 1, p.StoredCount())
	assert.Equal(t, "100% done", p.StoredAt(0).Text)
}

type brokenStringer struct{}

func (brokenStringer) String() string { panic("boom") }

type markerStringer struct{}

func (markerStringer) String() string { return "%!d(string=raw)" }

func TestFormatArgumentsMayContainMarkers(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.DebugLevel)
	p, s := newPipeline(t, diag.WithLogger(logger.FromZap(zap.New(core))))

	tests := []struct {
		format string
		args   []interface{}
		want   string
	}{
		{"disk usage %s", []interface{}{"95%!"}, "disk usage 95%!"},
		{"%q then %d%%", []interface{}{"%!(EXTRA)", 7}, `"%!(EXTRA)" then 7%`},
		{"state %v", []interface{}{markerStringer{}}, "state %!d(string=raw)"},
		{"%*d|", []interface{}{4, 2}, "   2|"},
		{"%[2]s %[1]s", []interface{}{"b", "a"}, "a b"},
		{"%v", []interface{}{(*markerStringer)(nil)}, "<nil>"},
	}

	for _, tt := range tests {
		p.ReportWarning(ctx, tt.format, tt.args...)
	}

	assert.Zero(t, logs.FilterMessage("Message formatting failed").Len())
	require.Equal(t, len(tests), p.StoredCount())
	require.Len(t, s.messages(), len(tests))
	for i, tt := range tests {
		assert.Equal(t, tt.want, p.StoredAt(i).Text, tt.format)
	}
}

func TestStringTableFormats(t *testing.T) {
	ctx := context.Background()
	table := strtable.New()
	require.NoError(t, table.Add("order.missing", "order %d not found"))
	p, _ := newPipeline(t, diag.WithStringTable(table))

	p.ReportWarning(ctx, "@order.missing", 17)

	require.Equal(t, 1, p.StoredCount())
	assert.Equal(t, "order 17 not found", p.StoredAt(0).Text)
	assert.Same(t, table, p.StringTable())
}

func TestFilterChainWithholdsFromListeners(t *testing.T) {
	ctx := context.Background()
	p, s := newPipeline(t)
	require.NoError(t, p.AddFilter(filter.NewKindFilter(1, filter.And, models.KindError)))
	require.NoError(t, p.AddFilter(filter.NewKindFilter(2, filter.Or, models.KindWarning)))

	p.ReportError(ctx, "error")
	p.ReportWarning(ctx, "warning")
	p.Report(ctx, models.KindUnknown, "unknown")

	got := s.messages()
	require.Len(t, got, 1)
	assert.Equal(t, "unknown", got[0].Text)
	assert.Equal(t, 3, p.StoredCount(), "filters do not affect the store")

	assert.Equal(t, 2, p.FilterCount())
	assert.Equal(t, 2, p.FilterAt(1).ID())
	assert.Equal(t, 1, p.Filter(1).ID())
	assert.Nil(t, p.FilterAt(5))
	assert.True(t, p.RemoveFilter(2))
	assert.False(t, p.RemoveFilter(2))
	p.ReportWarning(ctx, "warning again")
	assert.Len(t, s.messages(), 2)

	p.RemoveAllFilters()
	p.RemoveAllFilters()
	assert.Zero(t, p.FilterCount())
}

func TestPayloadFilter(t *testing.T) {
	ctx := context.Background()
	p, s := newPipeline(t)
	require.NoError(t, p.AddFilter(filter.NewPayloadFilter(1, filter.Or, "user.role", "bot")))

	p.ReportJSON(ctx, map[string]interface{}{"user": map[string]string{"role": "bot"}}, "crawler hit")
	p.ReportJSON(ctx, `{"user":{"role":"admin"}}`, "admin hit")

	got := s.messages()
	require.Len(t, got, 1)
	assert.Equal(t, "admin hit", got[0].Text)
	assert.Equal(t, models.PayloadJSON, got[0].PayloadKind)
}

func TestDisabledListenerIsSkipped(t *testing.T) {
	ctx := context.Background()
	p, s := newPipeline(t)
	other := newSink(2)
	require.NoError(t, p.AddListener(other))

	s.SetEnabled(false)
	p.ReportError(ctx, "first")

	assert.Empty(t, s.messages())
	assert.False(t, s.IsOpen())
	assert.Len(t, other.messages(), 1)

	s.SetEnabled(true)
	p.ReportError(ctx, "second")
	assert.Len(t, s.messages(), 1)
}

func TestListenerManagement(t *testing.T) {
	p, s := newPipeline(t)

	err := p.AddListener(newSink(1))
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	require.Error(t, p.AddListener(s))

	assert.Equal(t, 1, p.ListenerCount())
	assert.Same(t, s, p.Listener(1))
	assert.Same(t, s, p.ListenerAt(0))
	assert.Nil(t, p.Listener(9))
	assert.Nil(t, p.ListenerAt(4))

	p.ReportError(context.Background(), "open it")
	require.True(t, s.IsOpen())

	p.RemoveAllListeners()
	p.RemoveAllListeners()
	assert.Zero(t, p.ListenerCount())
	assert.False(t, s.IsOpen())
	assert.False(t, p.RemoveListener(1))
}

func TestReportDataVariants(t *testing.T) {
	ctx := context.Background()
	p, s := newPipeline(t)

	p.ReportData(ctx, models.PayloadXML, "<a/>", "xml %s", "doc")
	p.ReportText(ctx, "body", "text")
	p.ReportBinary(ctx, []byte{1, 2}, "binary")
	p.ReportJSON(ctx, struct {
		N int `json:"n"`
	}{N: 3}, "json")

	got := s.messages()
	require.Len(t, got, 4)
	for _, msg := range got {
		assert.Equal(t, models.KindError, msg.Kind)
	}
	assert.Equal(t, models.PayloadXML, got[0].PayloadKind)
	assert.Equal(t, "xml doc", got[0].Text)
	assert.Equal(t, models.PayloadText, got[1].PayloadKind)
	assert.Equal(t, "body", got[1].Payload)
	assert.Equal(t, models.PayloadBinary, got[2].PayloadKind)
	assert.JSONEq(t, `{"n":3}`, string(got[3].Payload.(json.RawMessage)))
}

func TestReportJSONEncodingFailure(t *testing.T) {
	p, s := newPipeline(t)

	p.ReportJSON(context.Background(), make(chan int), "unencodable")

	assert.Zero(t, p.StoredCount())
	assert.Empty(t, s.messages())
}

func TestScopesAndTaskNames(t *testing.T) {
	ctx := logging.WithTaskName(context.Background(), "importer")
	p, _ := newPipeline(t)

	_, _, err := p.EnterScope(ctx, "")
	require.Error(t, err)

	outer, exitOuter, err := p.EnterScope(ctx, "import")
	require.NoError(t, err)
	inner, exitInner, err := p.EnterScope(outer, "row")
	require.NoError(t, err)

	p.ReportWarning(inner, "inner")
	exitInner()
	p.ReportWarning(outer, "outer")
	exitOuter()
	p.ReportWarning(ctx, "none")

	msgs := p.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, &models.Scope{Name: "row", Depth: 2}, msgs[0].Scope)
	assert.Equal(t, &models.Scope{Name: "import", Depth: 1}, msgs[1].Scope)
	assert.Nil(t, msgs[2].Scope)
	assert.Equal(t, "importer", msgs[0].ThreadName)
	assert.Nil(t, p.CurrentScope(ctx))
}

func TestExitScopeThenDeferredExit(t *testing.T) {
	ctx := context.Background()
	p, _ := newPipeline(t)

	outer, exitOuter, err := p.EnterScope(ctx, "import")
	require.NoError(t, err)
	defer exitOuter()
	inner, exitInner, err := p.EnterScope(outer, "row")
	require.NoError(t, err)

	p.ExitScope(inner)
	exitInner()
	p.ReportWarning(inner, "after both exits")

	msgs := p.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, &models.Scope{Name: "import", Depth: 1}, msgs[0].Scope)
}

func TestColor(t *testing.T) {
	ctx := context.Background()
	p, _ := newPipeline(t)

	p.SetColor(models.ColorTeal)
	p.ReportWarning(ctx, "teal")
	p.ResetColor()
	p.ReportWarning(ctx, "default")

	msgs := p.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.ColorTeal, msgs[0].Color)
	assert.Equal(t, models.DefaultColor, msgs[1].Color)
}

func TestNotifierAndPlatformLog(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.WarnLevel)
	notifier := &fakeNotifier{enabled: true, err: errors.New("display unavailable")}
	platform := &fakePlatform{}
	p, s := newPipeline(t,
		diag.WithLogger(logger.FromZap(zap.New(core))),
		diag.WithNotifier(notifier),
		diag.WithPlatformLogger(platform),
	)

	p.ReportError(ctx, "first")
	assert.Empty(t, platform.texts, "platform logging is off by default")

	p.SetPlatformLog(true)
	p.ReportError(ctx, "second")

	assert.Len(t, notifier.got, 2)
	assert.Equal(t, []string{"second"}, platform.texts)
	assert.Len(t, s.messages(), 2, "notifier failures do not abort the call")
	assert.Equal(t, 2, logs.FilterMessage("Notifier launch failed").Len())

	notifier.enabled = false
	p.ReportError(ctx, "third")
	assert.Len(t, notifier.got, 2)

	p.SetNotifier(nil)
	assert.Nil(t, p.Notifier())
	p.ReportError(ctx, "fourth")
	assert.Equal(t, 4, p.StoredCount())
}

type worker struct {
	p *diag.Pipeline
}

func (w *worker) Run(ctx context.Context) {
	w.p.ReportWarning(ctx, "run")
}

func (w *worker) Stop(ctx context.Context) {
	w.p.ReportWarning(ctx, "stop")
}

func TestSettingsOverrides(t *testing.T) {
	ctx := context.Background()
	p, s := newPipeline(t)
	w := &worker{p: p}
	typeKey := testNamespace + ".worker"

	p.Resolver().SetTypeOverride(typeKey, settings.Override{
		ShouldStore:        settings.Bool(false),
		ShouldCaptureStack: settings.Bool(true),
	})
	p.Resolver().SetMethodOverride(typeKey, "Run", settings.Override{
		ShouldStore: settings.Bool(true),
	})

	w.Run(ctx)
	w.Stop(ctx)

	msgs := p.Messages()
	require.Len(t, msgs, 1, "only the method override re-enables the store")
	assert.Equal(t, "run", msgs[0].Text)
	assert.Equal(t, "worker", msgs[0].Origin.Type)
	assert.True(t, msgs[0].HasTrace)
	require.NotEmpty(t, msgs[0].Trace)
	assert.Equal(t, "Run", msgs[0].Trace[0].Method)

	got := s.messages()
	require.Len(t, got, 2)
	assert.Equal(t, "stop", got[1].Text)
	assert.True(t, got[1].HasTrace)

	quiet := settings.WithOverride(ctx, settings.Override{ShouldNotifyListeners: settings.Bool(false)})
	w.Run(quiet)
	assert.Len(t, s.messages(), 2)
	assert.Len(t, p.Messages(), 2)

	off := settings.WithOverride(ctx, settings.Override{Enabled: settings.Bool(false)})
	w.Run(off)
	assert.Len(t, p.Messages(), 2)
}

func TestCapacityEviction(t *testing.T) {
	ctx := context.Background()
	p, _ := newPipeline(t, diag.WithCapacity(2))

	p.ReportWarning(ctx, "one")
	p.ReportWarning(ctx, "two")
	p.ReportWarning(ctx, "three")

	msgs := p.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[0].Text)
	assert.Equal(t, "three", msgs[1].Text)

	require.NoError(t, p.SetCapacity(1))
	require.Equal(t, 1, p.StoredCount())
	assert.Equal(t, "three", p.StoredAt(0).Text)

	p.SetStoreEnabled(false)
	p.ReportWarning(ctx, "four")
	assert.Equal(t, "three", p.StoredAt(0).Text)

	p.ClearStore()
	assert.Zero(t, p.StoredCount())
}

func TestConcurrentReports(t *testing.T) {
	ctx := context.Background()
	p, s := newPipeline(t, diag.WithCapacity(1000))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				p.ReportWarning(ctx, "worker %d item %d", n, j)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 400, p.StoredCount())
	assert.Len(t, s.messages(), 400)
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p, _ := newPipeline(t)
	p.SetCaptureStack(true)
	p.ReportWarning(ctx, "first")
	p.ReportText(ctx, "details", "second")

	plain := filepath.Join(dir, "dump.json")
	packed := filepath.Join(dir, "dump.msgpack")
	compressed := filepath.Join(dir, "dump.bin")
	require.NoError(t, p.Save(plain))
	require.NoError(t, p.Save(packed))
	require.NoError(t, p.SaveCompressed(compressed))

	for _, path := range []string{plain, packed, compressed} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			q, err := diag.New(diag.WithCapacity(10))
			require.NoError(t, err)
			require.NoError(t, q.Load(path))

			msgs := q.Messages()
			require.Len(t, msgs, 2)
			assert.Equal(t, "first", msgs[0].Text)
			assert.Equal(t, "second", msgs[1].Text)
			assert.Equal(t, p.StoredAt(0).ID, msgs[0].ID)
			assert.True(t, msgs[0].HasTrace)
			assert.Equal(t, p.StoredAt(0).Trace, msgs[0].Trace)
		})
	}

	require.Error(t, p.Load(filepath.Join(dir, "missing.json")))
}

func TestStats(t *testing.T) {
	p, _ := newPipeline(t, diag.WithCapacity(5))
	require.NoError(t, p.AddFilter(filter.NewKindFilter(1, filter.Or, models.KindUnknown)))
	p.ReportError(context.Background(), "x")

	st := p.Stats()
	assert.Equal(t, "default", st.Name)
	assert.Equal(t, 1, st.Stored)
	assert.Equal(t, 5, st.Capacity)
	assert.Equal(t, 1, st.Listeners)
	assert.Equal(t, 1, st.Filters)
	assert.True(t, st.Defaults.Enabled)
}
