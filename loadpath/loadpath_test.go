package loadpath_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/bucketbackend/loadpath"
)

type fixedInterpolator struct {
	calls int
}

func (f *fixedInterpolator) Interpolate(_ string, _ map[string]string, lng string, _ map[string]any) string {
	f.calls++
	return lng + ".json"
}

type LoadPathTestSuite struct {
	suite.Suite
}

func TestLoadPathTestSuite(t *testing.T) {
	suite.Run(t, new(LoadPathTestSuite))
}

func (s *LoadPathTestSuite) TestFallbackResolution() {
	testCases := []struct {
		name     string
		spec     loadpath.Spec
		lng      string
		ns       string
		expected string
	}{
		{
			name:     "empty load path without namespace",
			spec:     loadpath.Literal(""),
			lng:      "nb-NO",
			expected: "nb-NO.json",
		},
		{
			name:     "prefix without namespace",
			spec:     loadpath.Literal("somepath"),
			lng:      "en-US",
			expected: "somepath/en-US.json",
		},
		{
			name:     "empty load path with namespace",
			spec:     loadpath.Literal(""),
			lng:      "sv-SV",
			ns:       "backend",
			expected: "sv-SV/backend.json",
		},
		{
			name:     "prefix with namespace",
			spec:     loadpath.Literal("locales"),
			lng:      "de-DE",
			ns:       "common",
			expected: "locales/de-DE/common.json",
		},
		{
			name:     "zero spec is the empty literal",
			spec:     loadpath.Spec{},
			lng:      "nb-NO",
			expected: "nb-NO.json",
		},
		{
			name: "sync function result is the prefix",
			spec: loadpath.Sync(func(lng, _ string) string {
				return "by-lang/" + lng
			}),
			lng:      "en-US",
			expected: "by-lang/en-US/en-US.json",
		},
		{
			name: "async function result is the prefix",
			spec: loadpath.Async(func(_ context.Context, _, _ string) (string, error) {
				return "", nil
			}),
			lng:      "sv-SV",
			ns:       "backend",
			expected: "sv-SV/backend.json",
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			key, err := loadpath.Resolve(s.T().Context(), tc.spec, nil, tc.lng, tc.ns)
			s.Require().NoError(err)
			s.Equal(tc.expected, key)
		})
	}
}

func (s *LoadPathTestSuite) TestInterpolatorResultIsUsedVerbatim() {
	interp := &fixedInterpolator{}

	key, err := loadpath.Resolve(s.T().Context(), loadpath.Literal("ignored/{{lng}}"), interp, "nb-NO", "")
	s.Require().NoError(err)
	s.Equal("nb-NO.json", key)
	s.Equal(1, interp.calls)
}

func (s *LoadPathTestSuite) TestTemplateInterpolator() {
	testCases := []struct {
		name     string
		template string
		expected string
	}{
		{name: "default template", template: loadpath.DefaultTemplate, expected: "nb-NO/translation.json"},
		{name: "spaced placeholders", template: "{{ lng }}-{{ ns }}.json", expected: "nb-NO-translation.json"},
		{name: "unknown placeholder kept", template: "{{lng}}/{{version}}.json", expected: "nb-NO/{{version}}.json"},
		{name: "no placeholders", template: "static.json", expected: "static.json"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			key, err := loadpath.Resolve(
				s.T().Context(), loadpath.Literal(tc.template), loadpath.TemplateInterpolator{}, "nb-NO", "translation")
			s.Require().NoError(err)
			s.Equal(tc.expected, key)
		})
	}
}

func (s *LoadPathTestSuite) TestFunctionsReceiveLanguageAndNamespace() {
	var gotLng, gotNs string
	spec := loadpath.Async(func(_ context.Context, lng, ns string) (string, error) {
		gotLng, gotNs = lng, ns
		return "{{lng}}/{{ns}}.json", nil
	})

	key, err := loadpath.Resolve(s.T().Context(), spec, loadpath.TemplateInterpolator{}, "en-US", "common")
	s.Require().NoError(err)
	s.Equal("en-US/common.json", key)
	s.Equal("en-US", gotLng)
	s.Equal("common", gotNs)
}

func (s *LoadPathTestSuite) TestAsyncErrorPropagates() {
	cause := errors.New("lookup failed")
	spec := loadpath.Async(func(_ context.Context, _, _ string) (string, error) {
		return "", cause
	})

	_, err := loadpath.Resolve(s.T().Context(), spec, nil, "en-US", "")
	s.Require().ErrorIs(err, cause)
	s.Contains(err.Error(), "en-US")
}

func (s *LoadPathTestSuite) TestResolutionIsIdempotent() {
	specs := []loadpath.Spec{
		loadpath.Literal("somepath"),
		loadpath.Sync(func(lng, ns string) string { return lng + "-" + ns }),
		loadpath.Async(func(_ context.Context, _, ns string) (string, error) { return ns, nil }),
	}

	for _, spec := range specs {
		first, err := loadpath.Resolve(s.T().Context(), spec, nil, "sv-SV", "backend")
		s.Require().NoError(err)
		second, err := loadpath.Resolve(s.T().Context(), spec, nil, "sv-SV", "backend")
		s.Require().NoError(err)
		s.Equal(first, second, spec.String())
	}
}

func (s *LoadPathTestSuite) TestSpecDescription() {
	s.Equal("somepath", loadpath.Literal("somepath").String())
	s.Equal("func(lng, ns)", loadpath.Sync(func(_, _ string) string { return "" }).String())
	s.Equal("func(ctx, lng, ns)", loadpath.Async(nil).String())
}
