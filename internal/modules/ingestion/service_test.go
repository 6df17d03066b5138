package ingestion

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hoangnph/vnstock-sub000/internal/clock"
	"github.com/Hoangnph/vnstock-sub000/internal/database"
	"github.com/Hoangnph/vnstock-sub000/internal/domain"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/prices"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/tracking"
)

// fakeProvider replays canned responses and records the windows it was
// asked for.
type fakeProvider struct {
	responses []fakeResponse
	calls     []fakeCall
}

type fakeResponse struct {
	result *domain.FetchResult
	err    error
}

type fakeCall struct {
	from, to string
}

func (p *fakeProvider) Source() domain.Source { return domain.SourceVND }

func (p *fakeProvider) FetchDaily(ctx context.Context, symbol string, from, to time.Time) (*domain.FetchResult, error) {
	p.calls = append(p.calls, fakeCall{from: domain.DateString(from), to: domain.DateString(to)})
	if len(p.responses) == 0 {
		return &domain.FetchResult{}, nil
	}
	next := p.responses[0]
	p.responses = p.responses[1:]
	if next.err != nil {
		return nil, next.err
	}
	return next.result, nil
}

func mustDate(s string) time.Time {
	ts, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return ts
}

func bar(date string, o, h, l, c float64, v int64) domain.Bar {
	return domain.Bar{
		Symbol: "ACB",
		Time:   mustDate(date),
		Open:   o, High: h, Low: l, Close: c,
		Volume: v,
		Source: domain.SourceVND,
	}
}

type harness struct {
	svc      *Service
	provider *fakeProvider
	prices   *prices.Repository
	tracking *tracking.Repository
}

func newHarness(t *testing.T, provider *fakeProvider) *harness {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		Profile: database.ProfileStandard,
		Name:    "market",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	// 2024-01-05 10:00 UTC is 17:00 in Ho Chi Minh, session closed
	clk := domain.ClockFunc(func() time.Time {
		return time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	})
	cal := clock.MustCalendar(clock.DefaultTimezone, clock.DefaultCloseHour)
	log := zerolog.Nop()

	priceRepo := prices.NewRepository(db.Conn(), clk, log)
	foreignRepo := prices.NewForeignRepository(db.Conn(), clk, log)
	trackingRepo := tracking.NewRepository(db.Conn(), clk, log)

	svc := NewService(provider, priceRepo, foreignRepo, trackingRepo,
		prices.NewSanitizer(log), db.Conn(), cal, clk, nil,
		Config{
			Genesis:           mustDate("2024-01-01"),
			EmptyWindowStride: 30,
			MaxEmptyWindows:   3,
		}, log)

	return &harness{svc: svc, provider: provider, prices: priceRepo, tracking: trackingRepo}
}

func (h *harness) watermark(t *testing.T) *domain.Watermark {
	t.Helper()
	wm, err := h.tracking.GetOrCreate("ACB", domain.SourceVND, mustDate("2024-01-01"))
	require.NoError(t, err)
	return wm
}

func TestIngest_ColdStart(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{{
		result: &domain.FetchResult{
			Bars: []domain.Bar{
				bar("2024-01-02", 10, 11, 9, 10.5, 1000),
				bar("2024-01-03", 10.5, 10.6, 10.2, 10.4, 800),
			},
			Foreign: []domain.ForeignFlow{{
				Symbol: "ACB", Time: mustDate("2024-01-02"),
				BuyVolume: 100, SellVolume: 40, Source: domain.SourceVND,
			}},
		},
	}}}
	h := newHarness(t, provider)

	result, err := h.svc.Ingest(context.Background(), "ACB", mustDate("2024-01-03"))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, 2, result.Stored)
	assert.Equal(t, 1, result.ForeignStored)
	assert.Equal(t, "2024-01-03", domain.DateString(result.LastDate))

	// First window starts at genesis
	require.Len(t, provider.calls, 1)
	assert.Equal(t, "2024-01-01", provider.calls[0].from)
	assert.Equal(t, "2024-01-03", provider.calls[0].to)

	wm := h.watermark(t)
	assert.Equal(t, "2024-01-03", domain.DateString(wm.LastUpdatedDate))
	assert.Equal(t, domain.UpdateSuccess, wm.LastUpdateStatus)
	assert.Equal(t, int64(2), wm.TotalRecords)
}

func TestIngest_RerunSameTargetIsNoop(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{{
		result: &domain.FetchResult{Bars: []domain.Bar{
			bar("2024-01-02", 10, 11, 9, 10.5, 1000),
			bar("2024-01-03", 10.5, 10.6, 10.2, 10.4, 800),
		}},
	}}}
	h := newHarness(t, provider)

	_, err := h.svc.Ingest(context.Background(), "ACB", mustDate("2024-01-03"))
	require.NoError(t, err)

	// Re-run for the same target: start would be past the effective end,
	// so the provider is not called and nothing changes.
	result, err := h.svc.Ingest(context.Background(), "ACB", mustDate("2024-01-03"))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Stored)
	assert.Len(t, provider.calls, 1)

	count, err := h.prices.Count("ACB")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestIngest_EmptyResponseKeepsWatermark(t *testing.T) {
	// Seed one bar so the run is not a cold start, then return empty for
	// the follow-up window.
	provider := &fakeProvider{responses: []fakeResponse{
		{result: &domain.FetchResult{Bars: []domain.Bar{
			bar("2024-01-02", 10, 11, 9, 10.5, 1000),
		}}},
		{result: &domain.FetchResult{}},
	}}
	h := newHarness(t, provider)

	_, err := h.svc.Ingest(context.Background(), "ACB", mustDate("2024-01-02"))
	require.NoError(t, err)

	result, err := h.svc.Ingest(context.Background(), "ACB", mustDate("2024-01-04"))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Stored)

	wm := h.watermark(t)
	assert.Equal(t, "2024-01-02", domain.DateString(wm.LastUpdatedDate))
	assert.Equal(t, domain.UpdateSuccess, wm.LastUpdateStatus)

	// The empty window is re-covered on the next run
	require.Len(t, provider.calls, 2)
	assert.Equal(t, "2024-01-03", provider.calls[1].from)
	assert.Equal(t, "2024-01-04", provider.calls[1].to)
}

func TestIngest_IrreparableBarDropped(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{{
		result: &domain.FetchResult{Bars: []domain.Bar{
			bar("2024-01-02", 10, 11, 9, 10.5, 1000),
			// open=10 high=9 low=11 close=0 volume=-5: unrepairable
			bar("2024-01-03", 10, 9, 11, 0, -5),
		}},
	}}}
	h := newHarness(t, provider)

	result, err := h.svc.Ingest(context.Background(), "ACB", mustDate("2024-01-03"))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, 1, result.Stored)
	assert.Equal(t, 1, result.Dropped)
	assert.Equal(t, "2024-01-02", domain.DateString(result.LastDate))

	wm := h.watermark(t)
	assert.Equal(t, "2024-01-02", domain.DateString(wm.LastUpdatedDate))
}

func TestIngest_AllBarsInvalidIsZeroRowSuccess(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{{
		result: &domain.FetchResult{Bars: []domain.Bar{
			bar("2024-01-02", 0, 0, 0, 0, -1),
		}},
	}}}
	h := newHarness(t, provider)

	result, err := h.svc.Ingest(context.Background(), "ACB", mustDate("2024-01-02"))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Stored)
	assert.Equal(t, 1, result.Dropped)

	wm := h.watermark(t)
	assert.Equal(t, "2024-01-01", domain.DateString(wm.LastUpdatedDate))
}

func TestIngest_IncrementalPreservesCreatedAt(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{
		{result: &domain.FetchResult{Bars: []domain.Bar{
			bar("2024-01-02", 10, 11, 9, 10.5, 1000),
		}}},
		{result: &domain.FetchResult{Bars: []domain.Bar{
			// Provider overlap re-delivers the stored bar
			bar("2024-01-02", 10, 11, 9, 10.5, 1000),
			bar("2024-01-03", 10.5, 10.6, 10.2, 10.4, 800),
		}}},
	}}
	h := newHarness(t, provider)

	_, err := h.svc.Ingest(context.Background(), "ACB", mustDate("2024-01-02"))
	require.NoError(t, err)

	createdBefore, err := h.prices.CreatedAt("ACB", mustDate("2024-01-02"))
	require.NoError(t, err)

	result, err := h.svc.Ingest(context.Background(), "ACB", mustDate("2024-01-03"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stored, "only the new bar counts as stored")

	createdAfter, err := h.prices.CreatedAt("ACB", mustDate("2024-01-02"))
	require.NoError(t, err)
	assert.Equal(t, createdBefore, createdAfter)

	wm := h.watermark(t)
	assert.Equal(t, "2024-01-03", domain.DateString(wm.LastUpdatedDate))
	assert.Equal(t, int64(2), wm.TotalRecords)
}

func TestIngest_ProviderFailureMarksErrorAndRetryResumes(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{
		{err: &domain.TransportError{StatusCode: 503, Err: fmt.Errorf("unavailable")}},
		{result: &domain.FetchResult{Bars: []domain.Bar{
			bar("2024-01-02", 10, 11, 9, 10.5, 1000),
		}}},
	}}
	h := newHarness(t, provider)

	_, err := h.svc.Ingest(context.Background(), "ACB", mustDate("2024-01-02"))
	require.Error(t, err)

	wm := h.watermark(t)
	assert.Equal(t, domain.UpdateError, wm.LastUpdateStatus)
	assert.Contains(t, wm.LastErrorMessage, "unavailable")
	assert.Equal(t, "2024-01-01", domain.DateString(wm.LastUpdatedDate))

	// Retry fetches the same window and clears the error
	result, err := h.svc.Ingest(context.Background(), "ACB", mustDate("2024-01-02"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stored)
	assert.Equal(t, provider.calls[0], provider.calls[1])

	wm = h.watermark(t)
	assert.Equal(t, domain.UpdateSuccess, wm.LastUpdateStatus)
	assert.Empty(t, wm.LastErrorMessage)
}

func TestIngest_ColdStartProbesEarlierWindows(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{
		{result: &domain.FetchResult{}}, // main window empty
		{result: &domain.FetchResult{}}, // probe 1 empty
		{result: &domain.FetchResult{Bars: []domain.Bar{ // probe 2 has data
			bar("2023-11-15", 10, 11, 9, 10.5, 1000),
		}}},
	}}
	h := newHarness(t, provider)

	result, err := h.svc.Ingest(context.Background(), "ACB", mustDate("2024-01-03"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stored)
	assert.Equal(t, "2023-11-15", domain.DateString(result.LastDate))

	require.Len(t, provider.calls, 3)
	// Probes walk backward in 30-day strides from the day before genesis
	assert.Equal(t, fakeCall{from: "2023-12-02", to: "2023-12-31"}, provider.calls[1])
	assert.Equal(t, fakeCall{from: "2023-11-02", to: "2023-12-01"}, provider.calls[2])

	wm := h.watermark(t)
	assert.Equal(t, "2023-11-15", domain.DateString(wm.LastUpdatedDate))
}

func TestIngest_ProbesGiveUpAfterMaxEmptyWindows(t *testing.T) {
	provider := &fakeProvider{} // every response empty
	h := newHarness(t, provider)

	result, err := h.svc.Ingest(context.Background(), "ACB", mustDate("2024-01-03"))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Stored)
	assert.Len(t, provider.calls, 4, "main window plus three probes")

	wm := h.watermark(t)
	assert.Equal(t, "2024-01-01", domain.DateString(wm.LastUpdatedDate))
}

func TestIngest_Cancelled(t *testing.T) {
	provider := &fakeProvider{}
	h := newHarness(t, provider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.svc.Ingest(ctx, "ACB", mustDate("2024-01-03"))
	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Empty(t, provider.calls)
}
