package imports

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kweber84/erpimport/internal/db"
	"github.com/kweber84/erpimport/internal/sources"
)

// stubSource emits canned items, optionally failing partway through.
type stubSource struct {
	items   []sources.RawItem
	failAt  int // 0 = never
	failErr error
}

func (s *stubSource) Name() string                              { return "stub" }
func (s *stubSource) Describe(sources.FetchOptions) string      { return "stub: canned items" }
func (s *stubSource) Fetch(ctx context.Context, opts sources.FetchOptions, emit func(sources.RawItem) error) error {
	for i, item := range s.items {
		if s.failAt > 0 && i+1 == s.failAt {
			return s.failErr
		}
		if err := emit(item); err != nil {
			return err
		}
	}
	return nil
}

func TestCaptureRun(t *testing.T) {
	s := newTestStore(t)
	_, sup, st := seedScope(t, s)

	src := &stubSource{items: []sources.RawItem{
		{LineNumber: 1, Payload: map[string]any{"Material": "A1"}, Reference: "A1"},
		{LineNumber: 2, Payload: map[string]any{"Material": "B2"}, Reference: "B2"},
	}}

	c := NewCapturer(zerolog.Nop(), s)
	res, err := c.Run(context.Background(), src, sup, st, sources.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Captured)

	run, err := s.RunByID(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, db.RunStatusSuccess, run.Status)
	require.NotNil(t, run.TotalRecords)
	assert.Equal(t, 2, *run.TotalRecords)

	var recs []db.ImportRawRecord
	require.NoError(t, s.DB().Where("import_run_id = ?", res.RunID).Order("line_number").Find(&recs).Error)
	require.Len(t, recs, 2)
	assert.Equal(t, "A1", recs[0].SupplierProductReference)
	assert.JSONEq(t, `{"Material":"A1"}`, recs[0].Payload)

	// payload round-trips through the record helper
	m, err := recs[1].PayloadMap()
	require.NoError(t, err)
	assert.Equal(t, "B2", m["Material"])
}

func TestCaptureRunSourceFailureMarksRunFailed(t *testing.T) {
	s := newTestStore(t)
	_, sup, st := seedScope(t, s)

	src := &stubSource{
		items: []sources.RawItem{
			{LineNumber: 1, Payload: map[string]any{"A": "x"}},
			{LineNumber: 2, Payload: map[string]any{"A": "y"}},
		},
		failAt:  2,
		failErr: errors.New("connection reset"),
	}

	c := NewCapturer(zerolog.Nop(), s)
	_, err := c.Run(context.Background(), src, sup, st, sources.FetchOptions{})
	require.ErrorContains(t, err, "connection reset")

	var run db.ImportRun
	require.NoError(t, s.DB().Order("id DESC").Take(&run).Error)
	assert.Equal(t, db.RunStatusFailed, run.Status)
}

func TestCapturePreviewWritesNothing(t *testing.T) {
	s := newTestStore(t)
	seedScope(t, s)

	src := &stubSource{items: []sources.RawItem{
		{LineNumber: 1, Payload: map[string]any{"A": "x"}},
		{LineNumber: 2, Payload: map[string]any{"A": "y"}},
		{LineNumber: 3, Payload: map[string]any{"A": "z"}},
	}}

	c := NewCapturer(zerolog.Nop(), s)
	items, err := c.Preview(context.Background(), src, sources.FetchOptions{}, 2)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	var runs int64
	require.NoError(t, s.DB().Model(&db.ImportRun{}).Count(&runs).Error)
	assert.Zero(t, runs)
}
