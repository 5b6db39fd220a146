package elevation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoLooker：高程等于纬度；纬度为负时失败
type echoLooker struct {
	calls atomic.Int64
}

func (e *echoLooker) Lookup(_ context.Context, lat, lng float64) Result {
	e.calls.Add(1)
	if lat < 0 {
		return failure(lat, lng, ReasonDataset)
	}
	return success(lat, lng, lat)
}

func TestLookupManyPreservesOrder(t *testing.T) {
	lk := &echoLooker{}
	svc := NewService(lk, Options{Workers: 3})

	var pts []Point
	var want []Result
	for i := 0; i < 100; i++ {
		lat := float64(i)
		if i%7 == 0 {
			lat = -lat - 1
		}
		pts = append(pts, Point{Lat: lat, Lng: float64(i)})
		if lat < 0 {
			want = append(want, failure(lat, float64(i), ReasonDataset))
		} else {
			want = append(want, success(lat, float64(i), lat))
		}
	}

	got, err := svc.LookupMany(context.Background(), pts)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("LookupMany mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, int64(100), lk.calls.Load())
}

func TestLookupManyEmpty(t *testing.T) {
	svc := NewService(&echoLooker{}, Options{})
	got, err := svc.LookupMany(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLookupManyTooMany(t *testing.T) {
	lk := &echoLooker{}
	svc := NewService(lk, Options{MaxPoints: 2})
	_, err := svc.LookupMany(context.Background(), make([]Point, 3))
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "Too many locations (3 > 2).", pe.Msg)
	assert.Zero(t, lk.calls.Load())
}

func TestNewServiceDefaults(t *testing.T) {
	svc := NewService(&echoLooker{}, Options{})
	assert.Equal(t, DefaultMaxPoints, svc.MaxPoints())
	assert.Equal(t, DefaultWorkers, svc.opts.Workers)
}
