package logger

import (
	"context"
	"path"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// grpcLogLevel 상태 코드에 따른 로그 레벨.
// 클라이언트/일시적 실패는 Warn, 그 외 실패는 Error입니다.
func grpcLogLevel(code codes.Code) zapcore.Level {
	switch code {
	case codes.OK:
		return zapcore.InfoLevel
	case codes.Canceled, codes.DeadlineExceeded, codes.ResourceExhausted,
		codes.Aborted, codes.Unavailable, codes.NotFound, codes.InvalidArgument:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if st, ok := status.FromError(err); ok {
		return st.Code()
	}
	return codes.Unknown
}

func splitMethod(fullMethod string) (string, string) {
	return path.Dir(fullMethod)[1:], path.Base(fullMethod)
}

// NewGrpcUnaryServerInterceptor 단일 요청/응답 gRPC 메서드에 대한 로깅 인터셉터를 생성합니다.
func NewGrpcUnaryServerInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		startTime := time.Now()
		service, method := splitMethod(info.FullMethod)

		resp, err := handler(ctx, req)

		code := grpcCode(err)
		fields := []zap.Field{
			zap.String("grpc.service", service),
			zap.String("grpc.method", method),
			zap.String("grpc.code", code.String()),
			zap.Duration("grpc.duration", time.Since(startTime)),
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		if ce := logger.Check(grpcLogLevel(code), "gRPC request"); ce != nil {
			ce.Write(fields...)
		}

		return resp, err
	}
}

// NewGrpcStreamServerInterceptor 스트리밍 gRPC 메서드에 대한 로깅 인터셉터를 생성합니다.
// health Watch 같은 스트림의 송수신 횟수를 함께 기록합니다.
func NewGrpcStreamServerInterceptor(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		startTime := time.Now()
		service, method := splitMethod(info.FullMethod)

		wrapped := &wrappedServerStream{ServerStream: ss}
		err := handler(srv, wrapped)

		code := grpcCode(err)
		fields := []zap.Field{
			zap.String("grpc.service", service),
			zap.String("grpc.method", method),
			zap.String("grpc.code", code.String()),
			zap.Int("grpc.recv_count", wrapped.recvCount),
			zap.Int("grpc.send_count", wrapped.sendCount),
			zap.Duration("grpc.duration", time.Since(startTime)),
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		if ce := logger.Check(grpcLogLevel(code), "gRPC stream"); ce != nil {
			ce.Write(fields...)
		}

		return err
	}
}

// GrpcServerOptions 로깅 인터셉터가 설정된 grpc.ServerOption 목록을 반환합니다.
func GrpcServerOptions(logger *zap.Logger) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.UnaryInterceptor(NewGrpcUnaryServerInterceptor(logger)),
		grpc.StreamInterceptor(NewGrpcStreamServerInterceptor(logger)),
	}
}

// wrappedServerStream 메시지 송수신 횟수를 추적합니다.
type wrappedServerStream struct {
	grpc.ServerStream
	recvCount int
	sendCount int
}

func (w *wrappedServerStream) RecvMsg(m interface{}) error {
	err := w.ServerStream.RecvMsg(m)
	if err == nil {
		w.recvCount++
	}
	return err
}

func (w *wrappedServerStream) SendMsg(m interface{}) error {
	err := w.ServerStream.SendMsg(m)
	if err == nil {
		w.sendCount++
	}
	return err
}
