package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"tokenaudit/internal/api/handlers"
	"tokenaudit/internal/api/middleware"
)

type Dependencies struct {
	HealthHandler  *handlers.HealthHandler
	MetricsHandler *handlers.MetricsHandler
	RunsHandler    *handlers.RunsHandler
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	router.GET("/health", chain(deps.HealthHandler.Check, middleware.Recover))
	router.GET("/metrics", chain(deps.MetricsHandler.Export, middleware.Recover))

	router.GET("/api/v1/runs",
		chain(deps.RunsHandler.List, middleware.Recover, middleware.Logging))
	router.GET("/api/v1/runs/latest",
		chain(deps.RunsHandler.Latest, middleware.Recover, middleware.Logging))

	return router
}

func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// wrap adapts an http.HandlerFunc. None of the worker routes take params.
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		handler(w, r)
	}
}
