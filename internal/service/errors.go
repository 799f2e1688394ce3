package service

import (
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

// storageFailure logs an infrastructure error with the entity ids involved
// and returns the opaque internal error surfaced to callers.
func storageFailure(logger *zap.Logger, err error, message string, fields ...zap.Field) error {
	logger.Error(message, append(fields, zap.Error(err))...)
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
