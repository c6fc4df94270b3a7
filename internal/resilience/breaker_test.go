package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pos/internal/resilience"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestBreakerTransitions(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	var seen []string
	breaker := resilience.NewBreaker(2, 0.5, time.Minute)
	breaker.Now = c.now
	breaker.Target = "tasks"
	breaker.OnTransition = func(target string, from, to resilience.State) {
		seen = append(seen, target+":"+from.String()+">"+to.String())
	}
	ctx := context.Background()

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.Equal(t, resilience.Open, breaker.State())
	require.False(t, breaker.Allow(ctx))

	c.t = c.t.Add(time.Minute)
	require.True(t, breaker.Allow(ctx), "cool-off elapsed admits a probe")
	require.False(t, breaker.Allow(ctx), "only one probe while half-open")
	breaker.Report(ctx, true)
	require.Equal(t, resilience.Closed, breaker.State())

	require.Equal(t, []string{"tasks:closed>open", "tasks:open>half_open", "tasks:half_open>closed"}, seen)
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	breaker := resilience.NewBreaker(1, 1, time.Second)
	breaker.Now = c.now
	ctx := context.Background()

	breaker.Report(ctx, false)
	require.Equal(t, resilience.Open, breaker.State())
	c.t = c.t.Add(2 * time.Second)
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.Equal(t, resilience.Open, breaker.State())
	require.False(t, breaker.Allow(ctx))
}

func TestBreakerDo(t *testing.T) {
	breaker := resilience.NewBreaker(1, 0.5, time.Hour)
	ctx := context.Background()
	benign := errors.New("duplicate")
	boom := errors.New("boom")
	isFailure := func(err error) bool { return !errors.Is(err, benign) }

	err := breaker.Do(ctx, func(context.Context) error { return benign }, isFailure)
	require.ErrorIs(t, err, benign)
	require.Equal(t, resilience.Closed, breaker.State())

	err = breaker.Do(ctx, func(context.Context) error { return boom }, isFailure)
	require.ErrorIs(t, err, boom)
	require.Equal(t, resilience.Open, breaker.State())

	called := false
	err = breaker.Do(ctx, func(context.Context) error { called = true; return nil }, isFailure)
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
	require.False(t, called)

	var nilBreaker *resilience.Breaker
	require.NoError(t, nilBreaker.Do(ctx, func(context.Context) error { return nil }, nil))
}
