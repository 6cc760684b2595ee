package database

import (
	"context"
	"errors"
	"net"

	"profile-registry/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the repositories care about.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
	codeInvalidText         = "22P02"
	codeSerialization       = "40001"
	codeDeadlock            = "40P01"
	codeAdminShutdown       = "57P01"
	codeCannotConnectNow    = "57P03"
)

// ConstraintMessages gives user-facing text for named constraints.
var ConstraintMessages = map[string]string{}

// ClassifyError translates a pgx error into an AppError kind. AppErrors pass
// through unchanged; nil stays nil. pgx.ErrNoRows is left for the caller,
// which knows what was not found.
func ClassifyError(err error) error {
	if err == nil || errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeUniqueViolation:
			msg, ok := ConstraintMessages[pgErr.ConstraintName]
			if !ok {
				msg = "uniqueness constraint violated"
			}
			e := apperror.Conflict(pgErr.ConstraintName, msg)
			e.Err = err
			return e
		case pgErr.Code == codeForeignKeyViolation, pgErr.Code == codeCheckViolation,
			pgErr.Code == codeNotNullViolation, pgErr.Code == codeInvalidText:
			e := apperror.Validation(pgErr.ColumnName, pgErr.Message)
			e.Constraint = pgErr.ConstraintName
			e.Err = err
			return e
		case pgErr.Code == codeSerialization, pgErr.Code == codeDeadlock,
			pgErr.Code == codeAdminShutdown, pgErr.Code == codeCannotConnectNow,
			len(pgErr.Code) == 5 && pgErr.Code[:2] == "08":
			return apperror.StorageUnavailable(err)
		}
		return apperror.Internal(err)
	}

	if isTransient(err) {
		return apperror.StorageUnavailable(err)
	}
	return apperror.Internal(err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
