// Package services contains the server-side business logic: token issuance
// and rotation, sign-in, first-run setup and user management.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fastid/fastid/internal/common"
)

var tracer = otel.Tracer("github.com/fastid/fastid/internal/server/services")

// PasswordHasher is the credential hasher used by the services.
// *cryptox.Hasher implements it.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, encoded string) (bool, error)
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err on span unless it is an expected domain outcome.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, common.ErrStorageFailure) || errors.Is(err, common.ErrHashingFailure) || errors.Is(err, common.ErrInternal) {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

// storageErr wraps a repository failure. Domain sentinels pass through.
func storageErr(op string, err error) error {
	if errors.Is(err, common.ErrConflict) || errors.Is(err, common.ErrStorageFailure) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, common.ErrStorageFailure, err)
}

// txErr classifies an error returned by dbx.WithTx. Outcomes decided inside
// the transaction pass through; begin and commit failures become storage
// failures.
func txErr(op string, err error) error {
	for _, target := range []error{
		common.ErrInvalidToken,
		common.ErrExpiredToken,
		common.ErrAlreadySetup,
		common.ErrInternal,
	} {
		if errors.Is(err, target) {
			return err
		}
	}
	return storageErr(op, err)
}

// NormalizeEmail trims and lowercases email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password string) error {
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: email is not valid", common.ErrInvalidArgument)
	}
	if password == "" {
		return fmt.Errorf("%w: password must not be empty", common.ErrInvalidArgument)
	}
	return nil
}
