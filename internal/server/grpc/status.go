package grpc

import (
	"errors"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps service errors to gRPC status errors. Unrecognised errors
// become Internal without their text.
func toStatus(err error) error {
	if err == nil {
		return nil
	}

	var code codes.Code
	switch {
	case errors.Is(err, common.ErrValidationFailed), errors.Is(err, common.ErrInvalidHandleSeed):
		code = codes.InvalidArgument
	case errors.Is(err, common.ErrDuplicateIdentity):
		code = codes.AlreadyExists
	case errors.Is(err, common.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, common.ErrAccountLocked):
		code = codes.PermissionDenied
	case errors.Is(err, common.ErrInvalidCredential),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		code = codes.Unauthenticated
	case errors.Is(err, common.ErrMigrationInProgress):
		code = codes.Aborted
	case errors.Is(err, common.ErrCleanupNotForced), errors.Is(err, common.ErrNothingMigrated):
		code = codes.FailedPrecondition
	default:
		return status.Error(codes.Internal, common.ErrInternal.Error())
	}

	return status.Error(code, err.Error())
}
