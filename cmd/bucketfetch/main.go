// Command bucketfetch reads one translation resource from a bucket and prints
// it as JSON.
//
//	bucketfetch read --bucket my-translations --project my-project --lng nb-NO --ns backend
//	bucketfetch read --bucket-url file:///srv/locales --key nb-NO/backend.json
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pitabwire/util"
	"github.com/urfave/cli/v2"

	"github.com/pitabwire/bucketbackend"
	"github.com/pitabwire/bucketbackend/config"
	"github.com/pitabwire/bucketbackend/format"
	"github.com/pitabwire/bucketbackend/loadpath"
	"github.com/pitabwire/bucketbackend/telemetry"
	"github.com/pitabwire/bucketbackend/version"
)

var flagConfig = &cli.StringFlag{
	Name:  "config",
	Usage: "Path to a .yaml or .toml file holding bucket options",
}

var flagBucket = &cli.StringFlag{
	Name:  "bucket",
	Usage: "Bucket holding the translation resources",
}

var flagProject = &cli.StringFlag{
	Name:  "project",
	Usage: "Google Cloud project owning the bucket",
}

var flagCredentials = &cli.StringFlag{
	Name:  "credentials",
	Usage: "Path to a service account JSON file",
}

var flagEndpoint = &cli.StringFlag{
	Name:  "endpoint",
	Usage: "Alternate storage API endpoint, for example an emulator",
}

var flagBucketURL = &cli.StringFlag{
	Name:  "bucket-url",
	Usage: "Open the bucket through a URL (mem://, file://, gs://, s3://) instead of the Cloud Storage client",
}

var flagLoadPath = &cli.StringFlag{
	Name:  "load-path",
	Value: loadpath.DefaultTemplate,
	Usage: "Template of the object key, {{lng}} and {{ns}} are replaced",
}

var flagLanguage = &cli.StringFlag{
	Name:    "lng",
	Aliases: []string{"language"},
	Usage:   "Language to read",
}

var flagNamespace = &cli.StringFlag{
	Name:  "ns",
	Usage: "Namespace to read",
}

var flagKey = &cli.StringFlag{
	Name:  "key",
	Usage: "Read this object key directly, --lng and --ns are ignored",
}

var flagDebug = &cli.BoolFlag{
	Name:  "debug",
	Usage: "Log every step of the read",
}

var flagTimeout = &cli.DurationFlag{
	Name:  "timeout",
	Value: 30 * time.Second,
	Usage: "Give up after this long",
}

var flagTelemetry = &cli.BoolFlag{
	Name:    "telemetry",
	EnvVars: []string{"BUCKETFETCH_TELEMETRY"},
	Usage:   "Export traces, metrics and logs through the OTEL_* exporters",
}

var flagLogLevel = &cli.StringFlag{
	Name:  "log-level",
	Value: "info",
	Usage: "Log level (debug, info, warn, error)",
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		util.Log(context.Background()).WithError(err).Fatal("bucketfetch failed")
	}
}

func newApp() *cli.App {
	var telemetryManager telemetry.Manager

	return &cli.App{
		Name:    "bucketfetch",
		Usage:   "read translation resources from a storage bucket",
		Version: version.String(),
		Flags:   []cli.Flag{flagLogLevel, flagTelemetry},
		Before: func(cCtx *cli.Context) error {
			opts := []util.Option{util.WithLogOutput(cCtx.App.ErrWriter)}
			if level, err := util.ParseLevel(cCtx.String(flagLogLevel.Name)); err == nil {
				opts = append(opts, util.WithLogLevel(level))
			}

			if cCtx.Bool(flagTelemetry.Name) {
				manager, err := setupTelemetry(cCtx.Context)
				if err != nil {
					return err
				}
				telemetryManager = manager
				if handler := manager.LogHandler(); handler != nil {
					opts = append(opts, util.WithLogHandler(handler))
				}
			}

			cCtx.Context = util.ContextWithLogger(cCtx.Context, util.NewLogger(cCtx.Context, opts...))
			return nil
		},
		After: func(cCtx *cli.Context) error {
			if telemetryManager == nil {
				return nil
			}
			return telemetryManager.Shutdown(context.WithoutCancel(cCtx.Context))
		},
		Commands: []*cli.Command{
			{
				Name:  "read",
				Usage: "Read one resource and print it as JSON",
				Flags: []cli.Flag{
					flagConfig,
					flagBucket,
					flagProject,
					flagCredentials,
					flagEndpoint,
					flagBucketURL,
					flagLoadPath,
					flagLanguage,
					flagNamespace,
					flagKey,
					flagDebug,
					flagTimeout,
				},
				Action: func(cCtx *cli.Context) error {
					ctx, cancel := context.WithTimeout(cCtx.Context, cCtx.Duration(flagTimeout.Name))
					defer cancel()

					return runRead(ctx, cCtx, cCtx.App.Writer)
				},
			},
		},
	}
}

func setupTelemetry(ctx context.Context) (telemetry.Manager, error) {
	cfg, err := config.FromEnv[telemetry.Config]()
	if err != nil {
		return nil, fmt.Errorf("could not read telemetry configuration: %w", err)
	}

	manager := telemetry.NewManager(ctx, cfg,
		telemetry.WithServiceName("bucketfetch"),
		telemetry.WithServiceVersion(version.Version))
	if err = manager.Init(ctx); err != nil {
		return nil, fmt.Errorf("could not set up telemetry: %w", err)
	}
	return manager, nil
}

func connectionOptions(cCtx *cli.Context) (config.Partial, error) {
	var partial config.Partial
	if path := cCtx.String(flagConfig.Name); path != "" {
		fromFile, err := loadOptionsFile(path)
		if err != nil {
			return partial, err
		}
		partial = fromFile
	}

	return overlay(partial, config.Partial{
		BucketName:      cCtx.String(flagBucket.Name),
		GoogleProject:   cCtx.String(flagProject.Name),
		CredentialsPath: cCtx.String(flagCredentials.Name),
		APIEndpoint:     cCtx.String(flagEndpoint.Name),
		BucketURL:       cCtx.String(flagBucketURL.Name),
	}), nil
}

func runRead(ctx context.Context, cCtx *cli.Context, out io.Writer) error {
	partial, err := connectionOptions(cCtx)
	if err != nil {
		return err
	}

	backend, err := bucketbackend.New(ctx,
		&bucketbackend.Services{Interpolator: loadpath.TemplateInterpolator{}},
		bucketbackend.WithBucketName(partial.BucketName),
		bucketbackend.WithGoogleProject(partial.GoogleProject),
		bucketbackend.WithCredentialsPath(partial.CredentialsPath),
		bucketbackend.WithAPIEndpoint(partial.APIEndpoint),
		bucketbackend.WithBucketURL(partial.BucketURL),
		bucketbackend.WithLoadPath(cCtx.String(flagLoadPath.Name)),
		bucketbackend.WithDebugLog(cCtx.Bool(flagDebug.Name)),
		bucketbackend.WithLogger(util.Log(ctx)),
	)
	if err != nil {
		return err
	}
	defer util.CloseAndLogOnError(ctx, backend, "could not close bucket backend")

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")

	if key := cCtx.String(flagKey.Name); key != "" {
		loaded, readErr := backend.ReadFile(ctx, key)
		if readErr != nil {
			return readErr
		}
		return encoder.Encode(map[string]any{
			"key":           loaded.Key,
			"last_modified": loaded.LastModified,
			"data":          loaded.Data,
		})
	}

	lng := cCtx.String(flagLanguage.Name)
	if lng == "" {
		return fmt.Errorf("--%s or --%s is required", flagLanguage.Name, flagKey.Name)
	}

	var result error
	backend.Read(ctx, lng, cCtx.String(flagNamespace.Name), func(readErr error, data format.Resource) {
		if readErr != nil {
			result = readErr
			return
		}
		result = encoder.Encode(data)
	})
	return result
}
