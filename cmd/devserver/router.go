package main

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 1 << 20

// proxyHandler is the Lambda entry point the router forwards to.
type proxyHandler interface {
	Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)
}

func newRouter(h proxyHandler, timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(timeout))

	proxy := toProxy(h)
	r.Get("/healthz", proxy)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ship-fee/answer", proxy)
		r.Post("/ship-fee/reset", proxy)
		r.Get("/orders/by-conversation", proxy)
	})
	return r
}

// toProxy adapts a net/http request onto the API Gateway proxy event shape.
func toProxy(h proxyHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, `{"error":"INVALID_INPUT"}`, http.StatusBadRequest)
			return
		}

		req := events.APIGatewayProxyRequest{
			HTTPMethod:            r.Method,
			Path:                  r.URL.Path,
			Headers:               map[string]string{},
			QueryStringParameters: map[string]string{},
			Body:                  string(body),
		}
		for k := range r.Header {
			req.Headers[k] = r.Header.Get(k)
		}
		if req.Headers["X-Correlation-Id"] == "" {
			if id := chimiddleware.GetReqID(r.Context()); id != "" {
				req.Headers["X-Correlation-Id"] = id
			}
		}
		for k := range r.URL.Query() {
			req.QueryStringParameters[k] = r.URL.Query().Get(k)
		}

		resp, err := h.Handle(r.Context(), req)
		if err != nil {
			http.Error(w, `{"error":"INTERNAL_ERROR"}`, http.StatusInternalServerError)
			return
		}
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.WriteString(w, resp.Body)
	}
}
