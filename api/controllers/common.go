package controllers

import (
	"net/http"

	"github.com/finxan/finxan-backend/api/middleware"
	pkgerrors "github.com/finxan/finxan-backend/pkg/errors"
	"github.com/google/uuid"
)

func requireUser(r *http.Request) (uuid.UUID, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return userID, nil
}

func unavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable")
}
