package discovery

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocker struct {
	containers []container.Summary
	listErr    error
	lastList   container.ListOptions

	msgs chan events.Message
	errs chan error
}

func (f *fakeDocker) ContainerList(_ context.Context, options container.ListOptions) ([]container.Summary, error) {
	f.lastList = options
	return f.containers, f.listErr
}

func (f *fakeDocker) Events(context.Context, events.ListOptions) (<-chan events.Message, <-chan error) {
	return f.msgs, f.errs
}

func (f *fakeDocker) Ping(context.Context) (types.Ping, error) {
	return types.Ping{}, nil
}

func (f *fakeDocker) Close() error { return nil }

func TestScan_ConvertsSummaries(t *testing.T) {
	api := &fakeDocker{containers: []container.Summary{{
		ID:     "0123456789abcdef",
		Names:  []string{"/lobby"},
		Labels: map[string]string{"dockbridge.autoregister": "true"},
		Ports:  []container.Port{{PrivatePort: 25565, PublicPort: 30000, Type: "tcp"}},
	}}}
	o := &DockerObserver{api: api, endpoint: "unix:///test.sock"}

	got, err := o.Scan(context.Background(), "dockbridge.autoregister", "true")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "0123456789abcdef", got[0].ID)
	assert.Equal(t, []string{"/lobby"}, got[0].Names)
	assert.Equal(t, []Port{{Private: 25565, Public: 30000, Protocol: "tcp"}}, got[0].Ports)
	assert.False(t, api.lastList.All)
	assert.Equal(t, []string{"dockbridge.autoregister=true"}, api.lastList.Filters.Get("label"))
}

func TestScan_EmptyIsNotAFailure(t *testing.T) {
	o := &DockerObserver{api: &fakeDocker{}}

	got, err := o.Scan(context.Background(), "k", "v")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScan_TransportErrorIsDiscoveryFailed(t *testing.T) {
	o := &DockerObserver{api: &fakeDocker{listErr: errors.New("connection refused")}}

	got, err := o.Scan(context.Background(), "k", "v")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDiscoveryFailed))
	assert.Nil(t, got)
}

func TestResource_ShortIDAndPrimaryName(t *testing.T) {
	assert.Equal(t, "0123456789ab", Resource{ID: "0123456789abcdef"}.ShortID())
	assert.Equal(t, "abc", Resource{ID: "abc"}.ShortID())
	assert.Equal(t, UnknownID, Resource{}.ShortID())

	name, ok := Resource{Names: []string{"/web", "/alias"}}.PrimaryName()
	assert.True(t, ok)
	assert.Equal(t, "web", name)

	_, ok = Resource{}.PrimaryName()
	assert.False(t, ok)
}

func TestWatch_TriggersAndResubscribes(t *testing.T) {
	api := &fakeDocker{
		msgs: make(chan events.Message, 2),
		errs: make(chan error, 1),
	}
	o := &DockerObserver{api: api}

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api.msgs <- events.Message{Action: events.ActionStart, Actor: events.Actor{ID: "abc"}}
	api.msgs <- events.Message{Action: events.ActionDie, Actor: events.Actor{ID: "abc"}}

	done := make(chan struct{})
	go func() {
		o.Watch(ctx, "k", "v", time.Millisecond, func() { calls.Add(1) })
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	api.errs <- errors.New("stream reset")
	api.msgs <- events.Message{Action: events.ActionStop, Actor: events.Actor{ID: "abc"}}
	require.Eventually(t, func() bool { return calls.Load() == 3 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}
