package audit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caltrack/caltrack/internal/platform/httpx"
)

type stubTimelineRepo struct {
	rows []TimelineRow
	last Query
	err  error
}

func (s *stubTimelineRepo) Timeline(_ context.Context, q Query) ([]TimelineRow, error) {
	s.last = q
	if s.err != nil {
		return nil, s.err
	}
	end := q.Offset + q.Limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	if q.Offset >= len(s.rows) {
		return nil, nil
	}
	return s.rows[q.Offset:end], nil
}

func sampleRows(n int) []TimelineRow {
	base := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	rows := make([]TimelineRow, n)
	for i := range rows {
		rows[i] = TimelineRow{
			ID:       int64(n - i),
			At:       base.Add(-time.Duration(i) * time.Hour),
			ActorID:  "admin",
			Action:   "user.delete",
			Entity:   "user",
			EntityID: fmt.Sprintf("u-%d", i),
		}
	}
	return rows
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{rows: sampleRows(3)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 2)
	assert.Equal(t, PagingInfo{Page: 1, PageSize: 2, HasNext: true, NextPage: 2}, result.Paging)
	assert.Equal(t, 3, repo.last.Limit)
	assert.Equal(t, 0, repo.last.Offset)

	result, err = svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 1)
	assert.Equal(t, PagingInfo{Page: 2, PageSize: 2, PrevPage: 1}, result.Paging)
	assert.Equal(t, 2, repo.last.Offset)
}

func TestTimelineDefaultsAndFilters(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc := NewService(repo)
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	result, err := svc.Timeline(context.Background(), TimelineFilters{From: from, Actor: "  admin ", PageSize: 1000})
	require.NoError(t, err)
	assert.NotNil(t, result.Rows)
	assert.Empty(t, result.Rows)
	assert.Equal(t, maxPageSize+1, repo.last.Limit)
	assert.Equal(t, "admin", repo.last.Actor)
	require.NotNil(t, repo.last.From)
	assert.True(t, from.Equal(*repo.last.From))
	assert.Nil(t, repo.last.To)

	_, err = svc.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	assert.Equal(t, defaultPageSize+1, repo.last.Limit)
}

func TestTimelineRepositoryError(t *testing.T) {
	svc := NewService(&stubTimelineRepo{err: errors.New("boom")})
	_, err := svc.Timeline(context.Background(), TimelineFilters{})
	assert.EqualError(t, err, "boom")

	_, err = NewService(nil).Timeline(context.Background(), TimelineFilters{})
	assert.Error(t, err)
}

func TestHandlerTimelineValidation(t *testing.T) {
	h := NewHandler(nil, NewService(&stubTimelineRepo{rows: sampleRows(1)}))
	route := h.Routes()[0]

	for _, query := range []string{"from=yesterday", "page=-1", "pageSize=x", "from=2024-03-02T00:00:00Z&to=2024-03-01T00:00:00Z"} {
		rec := httptest.NewRecorder()
		route.Handler(rec, httptest.NewRequest(http.MethodGet, "/api/audit?"+query, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}

	rec := httptest.NewRecorder()
	route.Handler(rec, httptest.NewRequest(http.MethodGet, "/api/audit?action=user.delete&from=2024-03-01T00:00:00Z", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"entityId":"u-0"`)
}

func TestParseFiltersErrorsAreValidation(t *testing.T) {
	_, err := parseFilters(map[string][]string{"page": {"abc"}})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}
