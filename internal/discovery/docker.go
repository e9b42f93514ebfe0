package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog/log"
)

// dockerAPI is the subset of the Docker client used here.
type dockerAPI interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	Events(ctx context.Context, options events.ListOptions) (<-chan events.Message, <-chan error)
	Ping(ctx context.Context) (types.Ping, error)
	Close() error
}

// DockerObserver lists running containers through the Docker Engine API.
type DockerObserver struct {
	api        dockerAPI
	endpoint   string
	timeout    time.Duration // per request, not applied to the event stream
	logMatches bool
}

// NewDockerObserver creates an observer for the given daemon endpoint
// (e.g. unix:///var/run/docker.sock or tcp://host:2375).
func NewDockerObserver(endpoint string, timeout time.Duration, logMatches bool) (*DockerObserver, error) {
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	// No client-wide timeout: it would also cut the long-lived /events stream.
	cli, err := client.NewClientWithOpts(
		client.WithHost(endpoint),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client for %s: %w", endpoint, err)
	}

	return &DockerObserver{
		api:        cli,
		endpoint:   endpoint,
		timeout:    timeout,
		logMatches: logMatches,
	}, nil
}

// Ping checks that the daemon is reachable. Failures are only logged.
func (o *DockerObserver) Ping(ctx context.Context) {
	ctx, cancel := o.requestContext(ctx)
	defer cancel()

	if _, err := o.api.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("endpoint", o.endpoint).Msg("Docker ping failed")
		return
	}
	log.Info().Str("endpoint", o.endpoint).Msg("Docker ping successful")
}

// Scan returns the running containers labelled key=value.
// An empty result with a nil error means nothing matches; transport errors
// are returned wrapped in ErrDiscoveryFailed.
func (o *DockerObserver) Scan(ctx context.Context, key, value string) ([]Resource, error) {
	ctx, cancel := o.requestContext(ctx)
	defer cancel()

	summaries, err := o.api.ContainerList(ctx, container.ListOptions{
		All:     false,
		Filters: labelFilter(key, value),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list containers on %s: %v", ErrDiscoveryFailed, o.endpoint, err)
	}

	resources := make([]Resource, 0, len(summaries))
	for _, s := range summaries {
		r := fromSummary(s)
		if o.logMatches {
			log.Info().
				Str("id", r.ShortID()).
				Str("names", strings.Join(r.Names, ",")).
				Msg("Matched container")
		}
		resources = append(resources, r)
	}
	return resources, nil
}

func (o *DockerObserver) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.timeout)
}

// Close releases the underlying client.
func (o *DockerObserver) Close() error {
	return o.api.Close()
}

func labelFilter(key, value string) filters.Args {
	return filters.NewArgs(filters.Arg("label", key+"="+value))
}

func fromSummary(s container.Summary) Resource {
	r := Resource{
		ID:     s.ID,
		Names:  append([]string(nil), s.Names...),
		Labels: make(map[string]string, len(s.Labels)),
	}
	for k, v := range s.Labels {
		r.Labels[k] = v
	}
	for _, p := range s.Ports {
		r.Ports = append(r.Ports, Port{
			Private:  p.PrivatePort,
			Public:   p.PublicPort,
			Protocol: p.Type,
		})
	}
	return r
}
