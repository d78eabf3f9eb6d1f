package telemetry

// Config is the telemetry configuration read from the environment.
type Config struct {
	Disabled      bool    `env:"OTEL_SDK_DISABLED"       envDefault:"false"`
	SamplingRatio float64 `env:"OTEL_TRACES_SAMPLER_ARG" envDefault:"1.0"`
	Environment   string  `env:"BACKEND_ENVIRONMENT"     envDefault:"development"`
}
