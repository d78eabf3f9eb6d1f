package backendtests

import (
	"context"
	"testing"

	"github.com/pitabwire/util"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"

	"github.com/pitabwire/bucketbackend/backendtests/definition"
)

// BaseTestSuite starts the containers a suite depends on and removes them
// once the suite is done. Suites are skipped in short mode.
type BaseTestSuite struct {
	suite.Suite
	Network   *testcontainers.DockerNetwork
	resources []definition.TestResource

	InitResourceFunc func(ctx context.Context) []definition.TestResource
}

// SetupSuite initialises the test environment for the test suite.
func (s *BaseTestSuite) SetupSuite() {
	t := s.T()
	if testing.Short() {
		t.Skip("skipping container backed suite in short mode")
	}

	ctx := t.Context()
	log := util.Log(ctx)

	require.NotNil(t, s.InitResourceFunc, "InitResourceFunc is required")

	net, err := network.New(ctx)
	require.NoError(t, err, "could not create network")
	s.Network = net

	s.resources = s.InitResourceFunc(ctx)

	for _, dep := range s.resources {
		log.WithField("image", dep.Name()).Info("Setting up container...")
		err = dep.Setup(ctx, net)
		require.NoError(t, err, "could not setup tests")
	}
}

func (s *BaseTestSuite) Resources() []definition.DependancyConn {
	var deps []definition.DependancyConn
	for _, dep := range s.resources {
		deps = append(deps, dep)
	}

	return deps
}

// TearDownSuite cleans up resources after all tests are completed.
func (s *BaseTestSuite) TearDownSuite() {
	t := s.T()
	ctx := context.WithoutCancel(t.Context())

	for _, dep := range s.resources {
		dep.Cleanup(ctx)
	}

	if s.Network != nil {
		err := s.Network.Remove(ctx)
		require.NoError(t, err, "could not remove network")
	}
}
