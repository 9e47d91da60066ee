package numerator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corenumerator "purchasing/internal/core/numerator"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates the sys_sequences upsert: args are (key) for strict
// and (key, increment) for range reservation.
type mockQuerier struct {
	mu      sync.Mutex
	current int64
	calls   int
	err     error
}

func (m *mockQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return &mockRow{err: m.err}
	}
	increment := int64(1)
	if len(args) == 2 {
		if v, ok := args[1].(int64); ok {
			increment = v
		}
	}
	m.current += increment
	return &mockRow{val: m.current}
}

var period = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func TestGetNextNumber_Strict(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	cfg := corenumerator.DefaultConfig("PO")

	first, err := svc.GetNextNumber(context.Background(), cfg, nil, period)
	require.NoError(t, err)
	second, err := svc.GetNextNumber(context.Background(), cfg, nil, period)
	require.NoError(t, err)

	assert.Equal(t, "PO-2026-00001", first)
	assert.Equal(t, "PO-2026-00002", second)
	assert.Equal(t, 2, q.calls)
}

func TestGetNextNumber_CachedReservesRanges(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	cfg := corenumerator.DefaultConfig("PO")
	opts := &corenumerator.Options{Strategy: corenumerator.StrategyCached, RangeSize: 10}

	var last string
	for i := 0; i < 15; i++ {
		n, err := svc.GetNextNumber(context.Background(), cfg, opts, period)
		require.NoError(t, err)
		last = n
	}

	assert.Equal(t, "PO-2026-00015", last)
	assert.Equal(t, 2, q.calls, "two ranges of 10 cover 15 numbers")
}

func TestGetNextNumber_CachedIsConcurrencySafe(t *testing.T) {
	svc := New(&mockQuerier{})
	cfg := corenumerator.DefaultConfig("PO")
	opts := &corenumerator.Options{Strategy: corenumerator.StrategyCached, RangeSize: 7}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := svc.GetNextNumber(context.Background(), cfg, opts, period)
			assert.NoError(t, err)
			mu.Lock()
			seen[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50)
}

func TestGetNextNumber_PropagatesQueryError(t *testing.T) {
	svc := New(&mockQuerier{err: errors.New("relation sys_sequences does not exist")})

	_, err := svc.GetNextNumber(context.Background(), corenumerator.DefaultConfig("PO"), nil, period)
	assert.ErrorContains(t, err, "strict next")
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		name string
		cfg  corenumerator.Config
		num  int64
		want string
	}{
		{"default", corenumerator.DefaultConfig("PO"), 7, "PO-2026-00007"},
		{"no year", corenumerator.Config{Prefix: "PO", PadWidth: 3}, 42, "PO-042"},
		{"zero pad means five", corenumerator.Config{Prefix: "PO"}, 1, "PO-00001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatNumber(tt.cfg, period, tt.num))
		})
	}
}

func TestParseNumber(t *testing.T) {
	assert.Equal(t, int64(12), ParseNumber("PO-2026-00012"))
	assert.Equal(t, int64(3), ParseNumber("PO-00003"))
	assert.Equal(t, int64(-1), ParseNumber("garbage"))
}

func TestBuildKey(t *testing.T) {
	assert.Equal(t, "PO_2026", buildKey(corenumerator.Config{Prefix: "PO", ResetPeriod: "year"}, period))
	assert.Equal(t, "PO_2026_03", buildKey(corenumerator.Config{Prefix: "PO", ResetPeriod: "month"}, period))
	assert.Equal(t, "PO", buildKey(corenumerator.Config{Prefix: "PO", ResetPeriod: "never"}, period))
}

func TestMemory_SequencesPerPeriod(t *testing.T) {
	m := NewMemory()
	cfg := corenumerator.DefaultConfig("PO")

	a, _ := m.GetNextNumber(context.Background(), cfg, nil, period)
	b, _ := m.GetNextNumber(context.Background(), cfg, nil, period)
	c, _ := m.GetNextNumber(context.Background(), cfg, nil, period.AddDate(1, 0, 0))

	assert.Equal(t, "PO-2026-00001", a)
	assert.Equal(t, "PO-2026-00002", b)
	assert.Equal(t, "PO-2027-00001", c)

	require.NoError(t, m.SetNextNumber(context.Background(), cfg, period, 99))
	d, _ := m.GetNextNumber(context.Background(), cfg, nil, period)
	assert.Equal(t, "PO-2026-00100", d)
}
