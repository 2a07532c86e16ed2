package couchdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-kivik/kivik/v4"

	"versioned-notes-server/internal/domain"
)

// mapError converts kivik errors to domain sentinels by HTTP status. Context
// errors pass through; anything unrecognised becomes ErrTransient.
func mapError(err error, entity string, key any) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %v: %w", entity, key, err)
	}

	switch kivik.HTTPStatus(err) {
	case http.StatusNotFound:
		return fmt.Errorf("%s %v: %w", entity, key, domain.ErrNotFound)
	case http.StatusConflict:
		return fmt.Errorf("%s %v: %w", entity, key, domain.ErrConflict)
	case http.StatusBadRequest:
		return fmt.Errorf("%s %v: %w: %w", entity, key, domain.ErrValidation, err)
	}

	return fmt.Errorf("%s %v: %w: %w", entity, key, domain.ErrTransient, err)
}

func isConflict(err error) bool {
	return kivik.HTTPStatus(err) == http.StatusConflict
}

func isNotFound(err error) bool {
	return kivik.HTTPStatus(err) == http.StatusNotFound
}
