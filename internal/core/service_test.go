package core_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/testsets/internal/core"
	"github.com/JonMunkholm/testsets/internal/store/memory"
)

func newService(connect core.Connector, cfg core.ServiceConfig, m *core.Metrics) *core.Service {
	if cfg.Retry == nil {
		p := fastPolicy()
		cfg.Retry = &p
	}
	return core.NewService(connect, cfg, m)
}

func TestSaveTestSet_Success(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := memory.New()
	svc := newService(core.StaticConnector(s), core.ServiceConfig{}, core.NewMetrics(reg))

	res := svc.SaveTestSet(context.Background(), loadDocument(t, "sample_test_set.json"))

	require.True(t, res.Succeeded(), res.Message)
	assert.Equal(t, 13, res.RowsUpserted)
	_, err := uuid.Parse(res.SubmissionID)
	assert.NoError(t, err)

	assert.Equal(t, 1.0, submissionCount(t, reg, "success"))
}

func submissionCount(t *testing.T, reg *prometheus.Registry, status string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "testset_submissions_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "status" && l.GetValue() == status {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestSaveTestSet_ConfigurationError(t *testing.T) {
	s := memory.New()
	connect := func(context.Context) (core.Store, error) {
		return nil, errors.New("SUPABASE_URL and SUPABASE_API_KEY must be set")
	}
	svc := newService(connect, core.ServiceConfig{}, nil)

	res := svc.SaveTestSet(context.Background(), &core.Document{TestForms: []core.TestForm{{}}})

	assert.Equal(t, core.StatusError, res.Status)
	assert.Zero(t, res.RowsUpserted)
	assert.Equal(t, "Store configuration error: SUPABASE_URL and SUPABASE_API_KEY must be set", res.Message)
	var cfgErr *core.ConfigurationError
	assert.ErrorAs(t, res.Err, &cfgErr)
	assert.Zero(t, s.Calls())
	assert.NotEmpty(t, res.SubmissionID)
}

func TestSaveTestSet_ConfigurationErrorBeforeValidation(t *testing.T) {
	connect := func(context.Context) (core.Store, error) {
		return nil, &core.ConfigurationError{Err: errors.New("missing key")}
	}
	svc := newService(connect, core.ServiceConfig{}, nil)

	res := svc.SaveTestSet(context.Background(), &core.Document{})
	assert.Equal(t, "CFG001", core.MapError(res.Err).Code)
	assert.Equal(t, "Store configuration error: missing key", res.Message)
}

func TestSaveTestSet_MissingRoot(t *testing.T) {
	s := memory.New()
	svc := newService(core.StaticConnector(s), core.ServiceConfig{}, nil)

	res := svc.SaveTestSet(context.Background(), &core.Document{})

	assert.Equal(t, "No test_forms data provided", res.Message)
	assert.Zero(t, res.RowsUpserted)
	assert.Zero(t, s.Calls())
}

func TestSaveTestSet_Timeout(t *testing.T) {
	s := memory.New()
	s.InjectFault(func(call int, _ core.UpsertRequest) error {
		if call == 2 {
			time.Sleep(60 * time.Millisecond)
		}
		return nil
	})
	svc := newService(core.StaticConnector(s), core.ServiceConfig{Timeout: 30 * time.Millisecond}, nil)

	res := svc.SaveTestSet(context.Background(), loadDocument(t, "sample_test_set.json"))

	assert.Equal(t, core.StatusError, res.Status)
	assert.Equal(t, 2, res.RowsUpserted)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func TestSaveTestSet_RejectsWhenBusy(t *testing.T) {
	s := memory.New()
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	s.InjectFault(func(int, core.UpsertRequest) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	})
	svc := newService(core.StaticConnector(s), core.ServiceConfig{MaxWait: 20 * time.Millisecond}, nil)

	done := make(chan core.Result, 1)
	go func() {
		done <- svc.SaveTestSet(context.Background(), &core.Document{TestForms: []core.TestForm{{}}})
	}()
	<-started
	assert.Equal(t, 1, svc.LimiterStatus().Active)

	busy := svc.SaveTestSet(context.Background(), &core.Document{TestForms: []core.TestForm{{}}})
	assert.ErrorIs(t, busy.Err, core.ErrTooManySubmissions)
	assert.Equal(t, "SUB001", core.MapError(busy.Err).Code)

	close(release)
	first := <-done
	assert.True(t, first.Succeeded())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, svc.WaitForSubmissions(ctx))
}

func TestResult_MarshalJSON(t *testing.T) {
	svc := newService(core.StaticConnector(memory.New()), core.ServiceConfig{}, nil)

	ok := svc.SaveTestSet(context.Background(), &core.Document{TestForms: []core.TestForm{{}}})
	raw, err := json.Marshal(ok)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Successfully upserted 1 rows of test data", body["message"])
	assert.EqualValues(t, 1, body["rows_upserted"])
	assert.Equal(t, ok.SubmissionID, body["submission_id"])
	assert.NotContains(t, body, "code")

	bad := svc.SaveTestSet(context.Background(), &core.Document{})
	raw, err = json.Marshal(bad)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "VAL001", body["code"])
	assert.EqualValues(t, 0, body["rows_upserted"])
}
