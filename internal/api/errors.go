package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/smsync/internal/block"
	"github.com/matheus3301/smsync/internal/contacts"
	"github.com/matheus3301/smsync/internal/conversation"
	"github.com/matheus3301/smsync/internal/outbox"
	"github.com/matheus3301/smsync/internal/provider"
	"github.com/matheus3301/smsync/internal/schedule"
)

var errorCodes = []struct {
	err  error
	code codes.Code
}{
	{outbox.ErrNotFound, codes.NotFound},
	{schedule.ErrNotFound, codes.NotFound},
	{outbox.ErrInvalidAddress, codes.InvalidArgument},
	{outbox.ErrEmptyMessage, codes.InvalidArgument},
	{block.ErrInvalidNumber, codes.InvalidArgument},
	{contacts.ErrInvalidAddress, codes.InvalidArgument},
	{conversation.ErrInvalidThread, codes.InvalidArgument},
	{schedule.ErrInvalid, codes.InvalidArgument},
	{outbox.ErrNotFailed, codes.FailedPrecondition},
	{outbox.ErrNoMultimedia, codes.FailedPrecondition},
	{schedule.ErrNotPending, codes.FailedPrecondition},
	{outbox.ErrDeliveryFailed, codes.Aborted},
	{provider.ErrSourceUnavailable, codes.Unavailable},
	{context.Canceled, codes.Canceled},
	{context.DeadlineExceeded, codes.DeadlineExceeded},
}

// toStatus maps err to a gRPC status error. Errors that already carry a
// status pass through.
func toStatus(err error) error {
	if _, ok := grpcstatus.FromError(err); ok {
		return err
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return grpcstatus.Error(ec.code, err.Error())
		}
	}
	return grpcstatus.Error(codes.Internal, err.Error())
}
