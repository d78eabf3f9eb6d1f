package definition

import (
	"context"
	"strconv"
	"time"

	"github.com/testcontainers/testcontainers-go"
)

type ContainerOpts struct {
	ImageName string

	Port           string
	NetworkAliases []string

	EnableLogging  bool
	LoggingTimeout time.Duration
}

func (o *ContainerOpts) Setup(opts ...ContainerOption) {
	timeoutOpt := WithLoggingTimeout(DefaultLogProductionTimeout)
	timeoutOpt(o)

	for _, opt := range opts {
		opt(o)
	}
}

// Configure applies the options to a container request attached to ntwk.
func (o *ContainerOpts) Configure(
	ctx context.Context,
	ntwk *testcontainers.DockerNetwork,
	containerRequest *testcontainers.ContainerRequest,
) {
	if o.EnableLogging {
		containerRequest.LogConsumerCfg = LogConfig(ctx, o.LoggingTimeout)
	}

	containerRequest.ExposedPorts = []string{o.Port + "/tcp"}

	if ntwk != nil {
		containerRequest.Networks = []string{ntwk.Name}
		containerRequest.NetworkAliases = map[string][]string{
			ntwk.Name: o.NetworkAliases,
		}
	}
}

// ContainerOption is a type that can be used to configure the container creation request.
type ContainerOption func(req *ContainerOpts)

// WithImageName allows to set the image name to use for testing.
func WithImageName(imageName string) ContainerOption {
	return func(original *ContainerOpts) {
		original.ImageName = imageName
	}
}

// WithPort allows to set the port to use for testing.
func WithPort(port int) ContainerOption {
	return func(original *ContainerOpts) {
		original.Port = strconv.Itoa(port)
	}
}

// WithNetworkAliases allows to set the network aliases to use for testing.
func WithNetworkAliases(networkAliases []string) ContainerOption {
	return func(original *ContainerOpts) {
		original.NetworkAliases = networkAliases
	}
}

// WithEnableLogging forwards container output to the test logger.
func WithEnableLogging(enableLogging bool) ContainerOption {
	return func(original *ContainerOpts) {
		original.EnableLogging = enableLogging
	}
}

// WithLoggingTimeout allows to set the logging timeout to use for testing.
func WithLoggingTimeout(loggingTimeout time.Duration) ContainerOption {
	return func(original *ContainerOpts) {
		original.LoggingTimeout = loggingTimeout
	}
}
