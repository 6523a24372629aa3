package experiment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zine-studio/zine-landing/internal/persist"
	"github.com/zine-studio/zine-landing/internal/telemetry"
)

type recordedEvent struct {
	name  string
	props telemetry.Props
}

type fakeEmitter struct {
	events []recordedEvent
}

func (f *fakeEmitter) Emit(_ context.Context, name string, props telemetry.Props) {
	f.events = append(f.events, recordedEvent{name: name, props: props})
}

func TestRecordOnce_Dedup(t *testing.T) {
	em := &fakeEmitter{}
	tr := NewExposureTracker(persist.NewMemory(), em)
	a := Assignment{Experiment: LandingDesign, Value: "zen", Source: SourceRandom}

	assert.True(t, tr.RecordOnce(context.Background(), a))
	assert.False(t, tr.RecordOnce(context.Background(), a))

	require.Len(t, em.events, 1)
	assert.Equal(t, "ab_test_view", em.events[0].name)
	assert.Equal(t, telemetry.Props{
		"category":  "experiment",
		"label":     "landing_design_zen",
		"test_name": "landing_design",
		"variant":   "zen",
	}, em.events[0].props)
}

func TestRecordOnce_PerValueKey(t *testing.T) {
	em := &fakeEmitter{}
	markers := persist.NewMemory()
	tr := NewExposureTracker(markers, em)

	tr.RecordOnce(context.Background(), Assignment{Experiment: LandingDesign, Value: "zen"})
	tr.RecordOnce(context.Background(), Assignment{Experiment: LandingDesign, Value: "hybrid"})

	assert.Len(t, em.events, 2)
	_, ok, _ := markers.Get("ab_variant_session_tracked_zen")
	assert.True(t, ok)
	_, ok, _ = markers.Get("ab_variant_session_tracked_hybrid")
	assert.True(t, ok)
}

func TestRecordOnce_PriceCarriesNumericValue(t *testing.T) {
	em := &fakeEmitter{}
	tr := NewExposureTracker(persist.NewMemory(), em)

	tr.RecordOnce(context.Background(), Assignment{Experiment: PriceTest, Value: "40"})

	require.Len(t, em.events, 1)
	assert.Equal(t, 40, em.events[0].props["price"])
	assert.Equal(t, "40", em.events[0].props["variant"])
	assert.Equal(t, "price_test_40", em.events[0].props["label"])
}

func TestRecordOnce_StorageFailureIsSilent(t *testing.T) {
	em := &fakeEmitter{}
	tr := NewExposureTracker(persist.Failing{}, em)

	assert.NotPanics(t, func() {
		tr.RecordOnce(context.Background(), Assignment{Experiment: LandingDesign, Value: "zen"})
	})
	assert.Empty(t, em.events)
}

func TestRecordOnce_NilEmitter(t *testing.T) {
	tr := NewExposureTracker(nil, nil)
	assert.NotPanics(t, func() {
		tr.RecordOnce(context.Background(), Assignment{Experiment: LandingDesign, Value: "zen"})
	})
}

func TestMarkerKey(t *testing.T) {
	assert.Equal(t, "ab_price_session_tracked_15", MarkerKey(PriceTest, "15"))
}
