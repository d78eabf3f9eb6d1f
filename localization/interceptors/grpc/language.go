package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/pitabwire/bucketbackend/localization"
)

// LanguageUnaryInterceptor stores the accept-language metadata of a call in its context.
func LanguageUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any,
		_ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if languages := localization.ExtractLanguageFromGrpcRequest(ctx); len(languages) > 0 {
			ctx = localization.ToContext(ctx, languages)
		}

		return handler(ctx, req)
	}
}

// LanguageStreamInterceptor is the streaming counterpart of LanguageUnaryInterceptor.
func LanguageStreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		languages := localization.ExtractLanguageFromGrpcRequest(ss.Context())
		if len(languages) == 0 {
			return handler(srv, ss)
		}

		return handler(srv, &languageStream{
			ctx:          localization.ToContext(ss.Context(), languages),
			ServerStream: ss,
		})
	}
}

type languageStream struct {
	ctx context.Context
	grpc.ServerStream
}

func (s *languageStream) Context() context.Context {
	return s.ctx
}
