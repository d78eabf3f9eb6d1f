package testgcs

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"path"
	"strings"

	"github.com/pitabwire/util"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pitabwire/bucketbackend/backendtests/definition"
)

const (
	// FakeGCSImage is the Google Cloud Storage emulator image.
	FakeGCSImage = "fsouza/fake-gcs-server:1.49.1"
	FakeGCSPort  = "4443"

	// dataDir is where the emulator loads its initial buckets from, one directory per bucket.
	dataDir = "/data"
)

// Object is a file preloaded into the emulator.
type Object struct {
	Bucket  string
	Key     string
	Content []byte
}

type dependancy struct {
	opts    definition.ContainerOpts
	objects []Object

	container testcontainers.Container
}

// New returns an emulator resource holding objects.
func New(objects ...Object) definition.TestResource {
	return NewWithOpts(objects)
}

func NewWithOpts(objects []Object, containerOpts ...definition.ContainerOption) definition.TestResource {
	opts := definition.ContainerOpts{
		ImageName:      FakeGCSImage,
		Port:           FakeGCSPort,
		NetworkAliases: []string{"gcs", "storage-gcs"},
	}
	opts.Setup(containerOpts...)

	return &dependancy{
		opts:    opts,
		objects: objects,
	}
}

func (d *dependancy) Name() string {
	return d.opts.ImageName
}

func (d *dependancy) Container() testcontainers.Container {
	return d.container
}

func (d *dependancy) Setup(ctx context.Context, ntwk *testcontainers.DockerNetwork) error {
	files := make([]testcontainers.ContainerFile, 0, len(d.objects))
	for _, obj := range d.objects {
		files = append(files, testcontainers.ContainerFile{
			Reader:            bytes.NewReader(obj.Content),
			ContainerFilePath: path.Join(dataDir, obj.Bucket, obj.Key),
			FileMode:          definition.ContainerFileMode,
		})
	}

	containerRequest := testcontainers.ContainerRequest{
		Image:      d.opts.ImageName,
		Entrypoint: []string{"/bin/fake-gcs-server"},
		Cmd:        []string{"-scheme", "http", "-port", d.opts.Port, "-data", dataDir},
		Files:      files,
		WaitingFor: wait.ForLog("server started"),
	}

	d.opts.Configure(ctx, ntwk, &containerRequest)

	gcsContainer, err := testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: containerRequest,
			Started:          true,
		})
	if err != nil {
		return fmt.Errorf("failed to start gcsContainer: %w", err)
	}

	d.container = gcsContainer
	return nil
}

// GetDS returns the emulator's http endpoint as seen from the host.
func (d *dependancy) GetDS(ctx context.Context) definition.DataSource {
	conn, err := d.container.Endpoint(ctx, "http")
	if err != nil {
		util.Log(ctx).WithField("image", d.opts.ImageName).WithError(err).
			Error("failed to get connection for Container")
		return ""
	}

	return definition.DataSource(strings.Replace(conn, "localhost", "127.0.0.1", 1))
}

func (d *dependancy) GetInternalDS(ctx context.Context) definition.DataSource {
	internalIP, err := d.container.ContainerIP(ctx)
	if err != nil {
		util.Log(ctx).WithField("image", d.opts.ImageName).WithError(err).
			Error("failed to get internal host ip for Container")
		return ""
	}

	return definition.DataSource(fmt.Sprintf("http://%s", net.JoinHostPort(internalIP, d.opts.Port)))
}

func (d *dependancy) Cleanup(ctx context.Context) {
	if d.container != nil {
		if err := d.container.Terminate(ctx); err != nil {
			util.Log(ctx).WithError(err).Error("Failed to terminate gcs container")
		}
	}
}
