package controllers

import (
	"net/http"

	"github.com/Thangvh29/WEB-tmdt-sub001/api/middleware"
	"github.com/Thangvh29/WEB-tmdt-sub001/internal/authz"
	pkgerrors "github.com/Thangvh29/WEB-tmdt-sub001/pkg/errors"
)

func requireActor(r *http.Request) (authz.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return authz.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return actor, nil
}
