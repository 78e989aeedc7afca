package metrics_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/conference/internal/metrics"
	"github.com/jacentio/conference/model"
	"github.com/jacentio/conference/registration"
	"github.com/jacentio/conference/store"
	"github.com/jacentio/conference/store/memory"
)

func TestMetrics_WiredIntoStoreAndCoordinator(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	cfg := store.DefaultConfig()
	cfg.Observer = m
	s := memory.New(cfg, model.Registry())
	coord := registration.New(s, nil, registration.WithRecorder(m))
	ctx := context.Background()

	capacity := 1
	conf, err := model.NewConference(store.NewKey(model.KindConference, "1", model.ProfileKey("org")), "org", model.ConferenceForm{
		Name:         "GopherCon",
		MaxAttendees: &capacity,
	})
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, conf.Document()))

	_, err = coord.Register(ctx, "u1", conf.Key.Encode())
	require.NoError(t, err)
	_, err = coord.Register(ctx, "u2", conf.Key.Encode())
	require.Error(t, err)

	count, err := testutil.GatherAndCount(reg,
		"conference_store_transaction_attempts_total",
		"conference_registration_operations_total",
	)
	require.NoError(t, err)
	assert.Equal(t, 3, count) // one attempts series, two outcome series

	m.TxConflict()
	m.TxExhausted()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range mfs {
		for _, metric := range mf.GetMetric() {
			values[mf.GetName()] += metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 2.0, values["conference_store_transaction_attempts_total"])
	assert.Equal(t, 1.0, values["conference_store_transaction_conflicts_total"])
	assert.Equal(t, 1.0, values["conference_store_transaction_exhausted_total"])
	assert.Equal(t, 2.0, values["conference_registration_operations_total"])
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.New(reg)
	require.NoError(t, err)

	_, err = metrics.New(reg)
	assert.Error(t, err)
}
