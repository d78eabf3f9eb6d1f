package localization_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/stretchr/testify/suite"
	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"
	"golang.org/x/text/language"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/pitabwire/bucketbackend"
	"github.com/pitabwire/bucketbackend/config"
	"github.com/pitabwire/bucketbackend/format"
	"github.com/pitabwire/bucketbackend/localization"
	lgrpc "github.com/pitabwire/bucketbackend/localization/interceptors/grpc"
	lhttp "github.com/pitabwire/bucketbackend/localization/interceptors/http"
	"github.com/pitabwire/bucketbackend/storage"
	"github.com/pitabwire/bucketbackend/workerpool"
)

var translations = map[string]string{
	"en/common.json": `{
		"Example": "{{Name}} has nothing",
		"greeting": {"hello": "Hello {{name}}"},
		"apples": {"one": "One apple", "other": "{{Count}} apples"}
	}`,
	"sw/common.json": `{
		"Example": "{{Name}} haina chochote",
		"greeting": {"hello": "Habari {{name}}"},
		"apples": {"one": "Tufaha moja", "other": "Matufaha {{Count}}"}
	}`,
	"en/errors.json": `{"missing": "Not found"}`,
}

// LocalizationTestSuite fills translation bundles from an in memory bucket.
type LocalizationTestSuite struct {
	suite.Suite

	bucket  *blob.Bucket
	backend *bucketbackend.Backend
}

func TestLocalizationSuite(t *testing.T) {
	suite.Run(t, &LocalizationTestSuite{})
}

func (s *LocalizationTestSuite) SetupTest() {
	ctx := s.T().Context()

	s.bucket = memblob.OpenBucket(nil)
	for key, content := range translations {
		s.Require().NoError(s.bucket.WriteAll(ctx, key, []byte(content), nil))
	}

	bucket := s.bucket
	backend, err := bucketbackend.New(ctx, nil,
		bucketbackend.WithEnviron(map[string]string{}),
		bucketbackend.WithBucketName("translations"),
		bucketbackend.WithGoogleProject("localization-test"),
		bucketbackend.WithLoadPath(""),
		bucketbackend.WithConnector(func(_ context.Context, descriptor config.Descriptor) (storage.Store, error) {
			return storage.NewBlobStore(descriptor.BucketName(), bucket), nil
		}),
	)
	s.Require().NoError(err)
	s.backend = backend
}

func (s *LocalizationTestSuite) TearDownTest() {
	s.Require().NoError(s.backend.Close())
}

func (s *LocalizationTestSuite) TestTranslations() {
	testCases := []struct {
		name         string
		messageID    string
		templateData map[string]any
		pluralCount  int
		expectedEn   string
		expectedSw   string
	}{
		{
			name:         "template data",
			messageID:    "common:Example",
			templateData: map[string]any{"Name": "Air"},
			pluralCount:  1,
			expectedEn:   "Air has nothing",
			expectedSw:   "Air haina chochote",
		},
		{
			name:         "nested key",
			messageID:    "common:greeting.hello",
			templateData: map[string]any{"name": "Juma"},
			pluralCount:  1,
			expectedEn:   "Hello Juma",
			expectedSw:   "Habari Juma",
		},
		{
			name:         "plural one",
			messageID:    "common:apples",
			templateData: map[string]any{"Count": 1},
			pluralCount:  1,
			expectedEn:   "One apple",
			expectedSw:   "Tufaha moja",
		},
		{
			name:         "plural other",
			messageID:    "common:apples",
			templateData: map[string]any{"Count": 4},
			pluralCount:  4,
			expectedEn:   "4 apples",
			expectedSw:   "Matufaha 4",
		},
	}

	manager, err := localization.NewManager(s.T().Context(), s.backend, []string{"en", "sw"}, "common")
	s.Require().NoError(err)

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			for lang, expected := range map[string]string{"en": tc.expectedEn, "sw": tc.expectedSw} {
				localizer := i18n.NewLocalizer(manager.Bundle(), lang)
				translated, localizeErr := localizer.Localize(&i18n.LocalizeConfig{
					MessageID:    tc.messageID,
					TemplateData: tc.templateData,
					PluralCount:  tc.pluralCount,
				})
				s.Require().NoError(localizeErr)
				s.Equal(expected, translated)
			}
		})
	}
}

func (s *LocalizationTestSuite) TestManagerTranslate() {
	ctx := s.T().Context()
	manager, err := localization.NewManager(ctx, s.backend, []string{"en", "sw"}, "common")
	s.Require().NoError(err)

	s.Equal("Air haina chochote",
		manager.TranslateWithMap(ctx, "sw", "common:Example", map[string]any{"Name": "Air"}))
	s.Equal("Matufaha 3",
		manager.TranslateWithMapAndCount(ctx, []string{"sw"}, "common:apples", map[string]any{"Count": 3}, 3))

	req := httptest.NewRequest(http.MethodGet, "/?lang=sw", nil)
	s.Equal("Habari Asha", manager.TranslateWithMap(ctx, req, "common:greeting.hello", map[string]any{"name": "Asha"}))

	grpcCtx := metadata.NewIncomingContext(ctx, metadata.Pairs("accept-language", "sw"))
	s.Equal("Habari Asha", manager.TranslateWithMap(ctx, grpcCtx, "common:greeting.hello", map[string]any{"name": "Asha"}))

	s.Equal("common:unknown", manager.Translate(ctx, "en", "common:unknown"))
	s.Equal("common:Example", manager.Translate(ctx, 42, "common:Example"))
}

func (s *LocalizationTestSuite) TestTranslateWithContextLanguage() {
	ctx := s.T().Context()
	manager, err := localization.NewManager(ctx, s.backend, []string{"en", "sw"}, "common")
	s.Require().NoError(err)

	ctx = localization.ToContext(ctx, []string{"sw"})
	s.Equal("Habari Bahati",
		manager.TranslateWithMap(ctx, []string{}, "common:greeting.hello", map[string]any{"name": "Bahati"}))
	s.Equal([]string{"sw"}, localization.FromContext(ctx))
}

func (s *LocalizationTestSuite) TestLoadAllNamespaces() {
	ctx := s.T().Context()
	bundle := i18n.NewBundle(language.English)

	err := localization.NewLoader(s.backend, bundle).LoadAll(ctx, []string{"en"}, "common", "errors")
	s.Require().NoError(err)

	localizer := i18n.NewLocalizer(bundle, "en")
	translated, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: "errors:missing"})
	s.Require().NoError(err)
	s.Equal("Not found", translated)
}

func (s *LocalizationTestSuite) TestLoadFailures() {
	ctx := s.T().Context()
	bundle := i18n.NewBundle(language.English)
	loader := localization.NewLoader(s.backend, bundle)

	err := loader.LoadAll(ctx, []string{"en", "sw"}, "common", "errors")
	s.Require().ErrorIs(err, bucketbackend.ErrObjectNotFound)

	localizer := i18n.NewLocalizer(bundle, "sw")
	translated, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    "common:Example",
		TemplateData: map[string]any{"Name": "Air"},
	})
	s.Require().NoError(err)
	s.Equal("Air haina chochote", translated)

	s.Require().Error(loader.Load(ctx, "not a language!", "common"))

	_, err = localization.NewManager(ctx, s.backend, []string{"fr"}, "common")
	s.Require().ErrorIs(err, bucketbackend.ErrObjectNotFound)
}

func (s *LocalizationTestSuite) TestLoadUninitialized() {
	backend, err := bucketbackend.New(s.T().Context(), nil)
	s.Require().NoError(err)

	err = localization.NewLoader(backend, i18n.NewBundle(language.English)).Load(s.T().Context(), "en", "common")
	s.Require().ErrorIs(err, bucketbackend.ErrNotInitialized)
}

func (s *LocalizationTestSuite) TestMessages() {
	resource := format.Resource{
		"title": "Welcome",
		"count": float64(3),
		"empty": nil,
		"menu": map[string]any{
			"file": "File",
			"edit": map[string]any{"undo": "Undo {{ action }}"},
		},
		"items": []any{"first", "second"},
		"cats": map[string]any{"one": "{{count}} cat", "other": "{{count}} cats", "description": "cats"},
		"notPlural": map[string]any{"other": "x", "unknown": "y"},
	}

	messages := localization.Messages("app", resource)

	byID := make(map[string]*i18n.Message, len(messages))
	ids := make([]string, 0, len(messages))
	for _, msg := range messages {
		byID[msg.ID] = msg
		ids = append(ids, msg.ID)
	}

	s.Equal([]string{
		"app:cats",
		"app:count",
		"app:items.0",
		"app:items.1",
		"app:menu.edit.undo",
		"app:menu.file",
		"app:notPlural.other",
		"app:notPlural.unknown",
		"app:title",
	}, ids)

	s.Equal("Welcome", byID["app:title"].Other)
	s.Equal("3", byID["app:count"].Other)
	s.Equal("Undo {{.action}}", byID["app:menu.edit.undo"].Other)
	s.Equal("{{.count}} cat", byID["app:cats"].One)
	s.Equal("{{.count}} cats", byID["app:cats"].Other)
	s.Equal("cats", byID["app:cats"].Description)

	withoutNamespace := localization.Messages("", format.Resource{"title": "Welcome"})
	s.Require().Len(withoutNamespace, 1)
	s.Equal("title", withoutNamespace[0].ID)
}

func (s *LocalizationTestSuite) TestLanguageHTTPMiddleware() {
	testCases := []struct {
		name         string
		requestPath  string
		acceptLang   string
		expectedLang string
	}{
		{
			name:         "accept-language header",
			requestPath:  "/test",
			acceptLang:   "en-US,en;q=0.9",
			expectedLang: "en-US,en;q=0.9",
		},
		{
			name:         "query parameter first",
			requestPath:  "/test?lang=sw",
			acceptLang:   "en",
			expectedLang: "sw,en",
		},
		{
			name:         "no language",
			requestPath:  "/test",
			expectedLang: "",
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			middleware := lhttp.LanguageHTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(strings.Join(localization.FromContext(r.Context()), ",")))
			}))

			req := httptest.NewRequest(http.MethodGet, tc.requestPath, nil)
			if tc.acceptLang != "" {
				req.Header.Set("Accept-Language", tc.acceptLang)
			}

			w := httptest.NewRecorder()
			middleware.ServeHTTP(w, req)

			s.Equal(tc.expectedLang, w.Body.String())
		})
	}
}

func (s *LocalizationTestSuite) TestLanguageGrpcInterceptors() {
	testCases := []struct {
		name         string
		metadataLang string
		expectedLang []string
	}{
		{
			name:         "english metadata",
			metadataLang: "en",
			expectedLang: []string{"en"},
		},
		{
			name:         "several languages",
			metadataLang: "sw,en",
			expectedLang: []string{"sw", "en"},
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			ctx := metadata.NewIncomingContext(s.T().Context(), metadata.Pairs("accept-language", tc.metadataLang))

			unary := lgrpc.LanguageUnaryInterceptor()
			_, err := unary(ctx, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, _ any) (any, error) {
				s.Equal(tc.expectedLang, localization.FromContext(ctx))
				return nil, nil
			})
			s.Require().NoError(err)

			stream := lgrpc.LanguageStreamInterceptor()
			err = stream(nil, &fakeServerStream{ctx: ctx}, &grpc.StreamServerInfo{},
				func(_ any, ss grpc.ServerStream) error {
					s.Equal(tc.expectedLang, localization.FromContext(ss.Context()))
					return nil
				})
			s.Require().NoError(err)
		})
	}

	s.Run("no metadata", func() {
		s.Empty(localization.ExtractLanguageFromGrpcRequest(s.T().Context()))
	})
}

type fakeServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f *fakeServerStream) Context() context.Context {
	return f.ctx
}

func (s *LocalizationTestSuite) TestLoadAllOnWorkerPool() {
	ctx := s.T().Context()

	pool, err := workerpool.New(ctx, workerpool.WithCapacity(2))
	s.Require().NoError(err)
	defer pool.Shutdown()

	bundle := i18n.NewBundle(language.English)
	loader := localization.NewLoader(s.backend, bundle, localization.WithWorkerPool(pool))

	err = loader.LoadAll(ctx, []string{"en", "sw"}, "common", "errors")
	s.Require().ErrorIs(err, bucketbackend.ErrObjectNotFound)

	for lang, expected := range map[string]string{"en": "Hello Neema", "sw": "Habari Neema"} {
		translated, localizeErr := i18n.NewLocalizer(bundle, lang).Localize(&i18n.LocalizeConfig{
			MessageID:    "common:greeting.hello",
			TemplateData: map[string]any{"name": "Neema"},
		})
		s.Require().NoError(localizeErr)
		s.Equal(expected, translated)
	}
}
