package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/nagabus/internal/common"
)

// Metadata keys read from incoming calls.
const (
	MetadataRequestID  = "x-request-id"
	MetadataCustomerID = "x-customer-id"
)

// UnaryInterceptor tags the context with the request and customer ids, logs each call
// and turns application errors into gRPC statuses.
func UnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		md, _ := metadata.FromIncomingContext(ctx)
		reqID := first(md, MetadataRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx = common.WithRequestID(ctx, reqID)
		if customer := first(md, MetadataCustomerID); customer != "" {
			ctx = common.WithCustomerID(ctx, customer)
		}

		resp, err := handler(ctx, req)
		elapsed := time.Since(start).Milliseconds()
		if err != nil {
			st := common.ToGRPCStatus(err)
			code := status.Code(st)
			logger.WarnContext(ctx, "grpc.call.failed", "method", info.FullMethod, "code", code.String(), "error", err, "elapsed_ms", elapsed)
			return nil, st
		}
		logger.InfoContext(ctx, "grpc.call.ok", "method", info.FullMethod, "elapsed_ms", elapsed)
		return resp, nil
	}
}

func first(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}
