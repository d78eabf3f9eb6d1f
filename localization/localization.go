package localization

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pitabwire/util"
	"golang.org/x/text/language"
	"google.golang.org/grpc/metadata"

	"github.com/pitabwire/bucketbackend"
	"github.com/pitabwire/bucketbackend/format"
	"github.com/pitabwire/bucketbackend/workerpool"
)

type contextKey string

func (c contextKey) String() string {
	return "bucketbackend/localization/" + string(c)
}

const ctxKeyLanguage = contextKey("languageKey")

// namespaceSeparator joins a namespace and a message key into a message ID.
const namespaceSeparator = ":"

// ToContext adds language to the current supplied context.
func ToContext(ctx context.Context, lang []string) context.Context {
	return context.WithValue(ctx, ctxKeyLanguage, lang)
}

// FromContext extracts language from the supplied context if any exist.
func FromContext(ctx context.Context) []string {
	languages, ok := ctx.Value(ctxKeyLanguage).([]string)
	if !ok {
		return nil
	}

	return languages
}

// Reader is the read contract of a resource backend, *bucketbackend.Backend implements it.
type Reader interface {
	Read(ctx context.Context, lng, ns string, callback bucketbackend.ReadCallback)
}

// Loader fills an i18n bundle with resources read from a Reader.
type Loader struct {
	reader Reader
	pool   workerpool.WorkerPool

	mu     sync.Mutex
	bundle *i18n.Bundle
}

// LoaderOption configures a Loader.
type LoaderOption func(l *Loader)

// WithWorkerPool reads the resources of LoadAll concurrently on pool.
func WithWorkerPool(pool workerpool.WorkerPool) LoaderOption {
	return func(l *Loader) {
		l.pool = pool
	}
}

func NewLoader(reader Reader, bundle *i18n.Bundle, opts ...LoaderOption) *Loader {
	l := &Loader{reader: reader, bundle: bundle}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the resource of lng and ns and adds its messages to the bundle.
func (l *Loader) Load(ctx context.Context, lng, ns string) error {
	tag, err := language.Parse(lng)
	if err != nil {
		return fmt.Errorf("invalid language %q: %w", lng, err)
	}

	var resource format.Resource
	var readErr error
	l.reader.Read(ctx, lng, ns, func(err error, data format.Resource) {
		resource, readErr = data, err
	})
	if readErr != nil {
		return readErr
	}

	messages := Messages(ns, resource)

	l.mu.Lock()
	err = l.bundle.AddMessages(tag, messages...)
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("could not add messages of %s/%s: %w", lng, ns, err)
	}

	util.Log(ctx).WithField("language", lng).WithField("namespace", ns).
		WithField("messages", len(messages)).Debug("loaded translations from bucket")
	return nil
}

// LoadAll loads every language and namespace combination, an empty namespace
// list loads the resources without namespace. Failures are collected, the
// remaining resources are still loaded.
func (l *Loader) LoadAll(ctx context.Context, languages []string, namespaces ...string) error {
	if len(namespaces) == 0 {
		namespaces = []string{""}
	}

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	record := func(lng, ns string, err error) {
		util.Log(ctx).WithError(err).WithField("language", lng).WithField("namespace", ns).
			Warn("could not load translations")
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	for _, lng := range languages {
		for _, ns := range namespaces {
			if l.pool == nil {
				if err := l.Load(ctx, lng, ns); err != nil {
					record(lng, ns, err)
				}
				continue
			}

			wg.Add(1)
			err := l.pool.Submit(ctx, func() {
				defer wg.Done()
				if loadErr := l.Load(ctx, lng, ns); loadErr != nil {
					record(lng, ns, loadErr)
				}
			})
			if err != nil {
				wg.Done()
				record(lng, ns, err)
			}
		}
	}
	wg.Wait()

	return errors.Join(errs...)
}

//nolint:gochecknoglobals // lookup tables shared by every loader
var pluralForms = map[string]bool{
	"zero": true, "one": true, "two": true, "few": true, "many": true, "other": true, "description": true,
}

//nolint:gochecknoglobals // compiled once
var placeholderPattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// Messages flattens a resource into bundle messages. Nested keys are joined
// with "." and prefixed by "ns:" when a namespace is given. Mappings made only
// of plural forms (one, other, ...) become a single plural message.
func Messages(ns string, resource format.Resource) []*i18n.Message {
	prefix := ""
	if ns != "" {
		prefix = ns + namespaceSeparator
	}

	var messages []*i18n.Message
	flatten(prefix, "", resource, &messages)

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].ID < messages[j].ID
	})
	return messages
}

func flatten(prefix, path string, value any, messages *[]*i18n.Message) {
	switch v := value.(type) {
	case map[string]any:
		if msg, ok := pluralMessage(prefix+path, v); ok {
			*messages = append(*messages, msg)
			return
		}
		for key, child := range v {
			flatten(prefix, joinKey(path, key), child, messages)
		}
	case []any:
		for i, child := range v {
			flatten(prefix, joinKey(path, fmt.Sprint(i)), child, messages)
		}
	case string:
		*messages = append(*messages, &i18n.Message{ID: prefix + path, Other: templateText(v)})
	case nil:
	default:
		*messages = append(*messages, &i18n.Message{ID: prefix + path, Other: fmt.Sprint(v)})
	}
}

func joinKey(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func pluralMessage(id string, m map[string]any) (*i18n.Message, bool) {
	if _, ok := m["other"]; !ok {
		return nil, false
	}

	forms := make(map[string]string, len(m))
	for key, value := range m {
		text, isString := value.(string)
		if !pluralForms[key] || !isString {
			return nil, false
		}
		forms[key] = templateText(text)
	}

	return &i18n.Message{
		ID:          id,
		Description: forms["description"],
		Zero:        forms["zero"],
		One:         forms["one"],
		Two:         forms["two"],
		Few:         forms["few"],
		Many:        forms["many"],
		Other:       forms["other"],
	}, true
}

// templateText rewrites {{name}} placeholders into the {{.name}} form the bundle's templates expect.
func templateText(text string) string {
	return placeholderPattern.ReplaceAllString(text, "{{.$1}}")
}

type Manager interface {
	Bundle() *i18n.Bundle
	Translate(ctx context.Context, request any, messageID string) string
	TranslateWithMap(
		ctx context.Context,
		request any,
		messageID string,
		variables map[string]any,
	) string
	TranslateWithMapAndCount(
		ctx context.Context,
		request any,
		messageID string,
		variables map[string]any,
		count int,
	) string
}

type managerImpl struct {
	bundle *i18n.Bundle
}

// NewManager builds a bundle from the resources of languages and namespaces
// held in the reader's bucket. The first language is the bundle's default.
func NewManager(ctx context.Context, reader Reader, languages []string, namespaces ...string) (Manager, error) {
	defaultTag := language.English
	if len(languages) > 0 {
		tag, err := language.Parse(languages[0])
		if err != nil {
			return nil, fmt.Errorf("invalid default language %q: %w", languages[0], err)
		}
		defaultTag = tag
	}

	bundle := i18n.NewBundle(defaultTag)
	if err := NewLoader(reader, bundle).LoadAll(ctx, languages, namespaces...); err != nil {
		return nil, err
	}

	return &managerImpl{bundle: bundle}, nil
}

// Bundle Access the translation bundle instatiated in the system.
func (s *managerImpl) Bundle() *i18n.Bundle {
	return s.bundle
}

// Translate performs a quick translation based on the supplied message id.
func (s *managerImpl) Translate(ctx context.Context, request any, messageID string) string {
	return s.TranslateWithMap(ctx, request, messageID, map[string]any{})
}

// TranslateWithMap performs a translation with variables based on the supplied message id.
func (s *managerImpl) TranslateWithMap(
	ctx context.Context,
	request any,
	messageID string,
	variables map[string]any,
) string {
	return s.TranslateWithMapAndCount(ctx, request, messageID, variables, 1)
}

// TranslateWithMapAndCount performs a translation with variables based on the supplied message id and can pluralize.
func (s *managerImpl) TranslateWithMapAndCount(
	ctx context.Context,
	request any,
	messageID string,
	variables map[string]any,
	count int,
) string {
	var languageSlice []string

	switch v := request.(type) {
	case *http.Request:
		languageSlice = ExtractLanguageFromHTTPRequest(v)

	case context.Context:
		languageSlice = ExtractLanguageFromGrpcRequest(v)

	case string:
		languageSlice = []string{v}

	case []string:
		languageSlice = v

	default:
		logger := util.Log(ctx).WithField("messageID", messageID).WithField("variables", variables)
		logger.Warn("TranslateWithMapAndCount -- no valid request object found, use string, []string, context or http.Request")
		return messageID
	}

	if fromCtx := FromContext(ctx); len(fromCtx) > 0 {
		languageSlice = append(languageSlice, fromCtx...)
	}

	localizer := i18n.NewLocalizer(s.Bundle(), languageSlice...)

	translated, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: variables,
		PluralCount:  count,
	})
	if err != nil {
		util.Log(ctx).WithError(err).WithField("messageID", messageID).
			Debug("TranslateWithMapAndCount -- could not perform translation")
		return messageID
	}

	return translated
}

func ExtractLanguageFromHTTPRequest(req *http.Request) []string {
	lang := req.FormValue("lang")

	acceptedLang := ExtractLanguageFromHTTPHeader(req.Header)

	var languages []string
	if lang != "" {
		languages = append(languages, lang)
	}

	return append(languages, acceptedLang...)
}

func ExtractLanguageFromHTTPHeader(req http.Header) []string {
	acceptLanguageHeader := req.Get("Accept-Language")
	if acceptLanguageHeader == "" {
		return nil
	}
	return strings.Split(acceptLanguageHeader, ",")
}

func ExtractLanguageFromGrpcRequest(ctx context.Context) []string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return []string{}
	}

	header, ok := md["accept-language"]
	if !ok || len(header) == 0 {
		return []string{}
	}
	acceptLangHeader := header[0]
	return strings.Split(acceptLangHeader, ",")
}
