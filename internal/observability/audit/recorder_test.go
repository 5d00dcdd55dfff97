package audit

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/correlation"
	domainaudit "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/audit"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/mocks"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/observability/metrics"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/ports"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/testutil"
)

type collectingSink struct {
	mu     sync.Mutex
	events []domainaudit.Event
}

func (s *collectingSink) Write(_ context.Context, ev domainaudit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *collectingSink) all() []domainaudit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domainaudit.Event(nil), s.events...)
}

func closeRecorder(t *testing.T, r *Recorder) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Close(ctx))
}

func TestRecorder_DeliversToAllSinks(t *testing.T) {
	a, b := &collectingSink{}, &collectingSink{}
	r := NewRecorder(Options{
		Logger: testutil.DiscardLogger(),
		Sinks:  []SinkRegistration{{Name: "a", Sink: a}, {Name: "b", Sink: b}, {Name: "nil"}},
		Clock:  testutil.NewClock(),
	})

	ctx := correlation.WithID(context.Background(), "corr-1")
	r.Record(ctx, domainaudit.Event{Kind: domainaudit.KindAccessDenied, Actor: "viewer1", Action: "MAIL:SEND", Route: "/api/mail/send"})
	closeRecorder(t, r)

	for _, sink := range []*collectingSink{a, b} {
		got := sink.all()
		require.Len(t, got, 1)
		assert.NotEmpty(t, got[0].ID)
		assert.Equal(t, testutil.TestTime(), got[0].Time)
		assert.Equal(t, "corr-1", got[0].CorrelationID)
		assert.Equal(t, "MAIL:SEND", got[0].Action)
		assert.Equal(t, "/api/mail/send", got[0].Route)
	}
}

func TestRecorder_SinkFailuresAreSwallowed(t *testing.T) {
	m := metrics.New(nil)
	good := &collectingSink{}
	r := NewRecorder(Options{
		Logger:  testutil.DiscardLogger(),
		Metrics: m,
		Sinks: []SinkRegistration{
			{Name: "failing", Sink: SinkFunc(func(context.Context, domainaudit.Event) error { return errors.New("disk full") })},
			{Name: "panicking", Sink: SinkFunc(func(context.Context, domainaudit.Event) error { panic("boom") })},
			{Name: "good", Sink: good},
		},
	})

	assert.NotPanics(t, func() {
		r.Record(context.Background(), domainaudit.Event{Kind: domainaudit.KindLoginFailed, Actor: "x"})
	})
	closeRecorder(t, r)

	assert.Len(t, good.all(), 1)
	assert.InDelta(t, 2, promtest.ToFloat64(m.AuditDropped), 0)
}

func TestRecorder_FullQueueDropsWithoutBlocking(t *testing.T) {
	m := metrics.New(nil)
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	blocking := SinkFunc(func(context.Context, domainaudit.Event) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	})
	r := NewRecorder(Options{
		Logger:    testutil.DiscardLogger(),
		Metrics:   m,
		QueueSize: 1,
		Sinks:     []SinkRegistration{{Name: "blocking", Sink: blocking}},
	})

	r.Record(context.Background(), domainaudit.Event{Kind: domainaudit.KindLogout})
	<-started
	r.Record(context.Background(), domainaudit.Event{Kind: domainaudit.KindLogout})

	done := make(chan struct{})
	go func() {
		r.Record(context.Background(), domainaudit.Event{Kind: domainaudit.KindLogout})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full queue")
	}
	assert.InDelta(t, 1, promtest.ToFloat64(m.AuditDropped), 0)

	close(release)
	closeRecorder(t, r)
}

func TestRecorder_RecordAfterCloseAndNil(t *testing.T) {
	r := NewRecorder(Options{Logger: testutil.DiscardLogger()})
	closeRecorder(t, r)
	closeRecorder(t, r)

	assert.NotPanics(t, func() {
		r.Record(context.Background(), domainaudit.Event{Kind: domainaudit.KindLogout})
	})

	var nilRec *Recorder
	assert.NotPanics(t, func() {
		nilRec.Record(context.Background(), domainaudit.Event{})
	})
	assert.NoError(t, nilRec.Close(context.Background()))
}

func TestRecorder_SinkSeesDetachedContext(t *testing.T) {
	var sawErr error
	sink := SinkFunc(func(ctx context.Context, _ domainaudit.Event) error {
		sawErr = ctx.Err()
		return nil
	})
	r := NewRecorder(Options{Logger: testutil.DiscardLogger(), Sinks: []SinkRegistration{{Sink: sink}}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Record(ctx, domainaudit.Event{Kind: domainaudit.KindLogout})
	closeRecorder(t, r)

	assert.NoError(t, sawErr)
}

func TestLogSink_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink{Logger: testutil.CaptureLogger(&buf)}

	require.NoError(t, sink.Write(context.Background(), domainaudit.Event{
		ID: "a-1", Kind: domainaudit.KindAccessDenied, Actor: "viewer1", Action: "MAIL:SEND", Route: "/api/mail/send",
	}))

	out := buf.String()
	assert.Contains(t, out, `"kind":"access_denied"`)
	assert.Contains(t, out, `"action":"MAIL:SEND"`)
	assert.Contains(t, out, `"route":"/api/mail/send"`)
}

func TestBackendSink_ForwardsSignedCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockBackendClient(ctrl)

	client.EXPECT().
		Call(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, call ports.BackendCall) (*ports.BackendResponse, error) {
			assert.Equal(t, BackendAction, call.Action)
			assert.Empty(t, call.AuthToken)
			p, ok := call.Payload.(backendAuditPayload)
			require.True(t, ok)
			assert.Equal(t, "access_denied", p.Kind)
			assert.Equal(t, testutil.TestTime().UnixMilli(), p.Time)
			return &ports.BackendResponse{OK: true}, nil
		})

	err := BackendSink{Client: client}.Write(context.Background(), domainaudit.Event{
		ID: "a-1", Time: testutil.TestTime(), Kind: domainaudit.KindAccessDenied,
	})
	require.NoError(t, err)
}
