package definition

import (
	"context"
	"time"

	"github.com/pitabwire/util"
	"github.com/testcontainers/testcontainers-go"
)

const (
	ContainerFileMode = 0o644

	DefaultLogProductionTimeout = 10 * time.Second
)

// DataSource is the address a test dependency is reachable on.
type DataSource string

func (d DataSource) String() string {
	return string(d)
}

type DependancyRes interface {
	Name() string
	Setup(ctx context.Context, network *testcontainers.DockerNetwork) error
	Cleanup(ctx context.Context)
	Container() testcontainers.Container
}

type DependancyConn interface {
	Name() string
	GetDS(ctx context.Context) DataSource
	GetInternalDS(ctx context.Context) DataSource
}

type TestResource interface {
	DependancyRes
	DependancyConn
}

type StdoutLogConsumer struct {
	log *util.LogEntry
}

func LogConfig(ctx context.Context, timeout time.Duration) *testcontainers.LogConsumerConfig {
	return &testcontainers.LogConsumerConfig{
		Opts: []testcontainers.LogProductionOption{testcontainers.WithLogProductionTimeout(timeout)},
		Consumers: []testcontainers.LogConsumer{&StdoutLogConsumer{
			log: util.Log(ctx),
		}},
	}
}

// Accept forwards container output to the test logger.
func (s *StdoutLogConsumer) Accept(l testcontainers.Log) {
	if l.LogType == "STDOUT" {
		s.log.Info(string(l.Content))
	}
	if l.LogType == "STDERR" {
		s.log.Error(string(l.Content))
	}
}
