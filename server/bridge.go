package server

import (
	"net/http"

	"game-bid-war/server/config"
	"go.uber.org/zap"
)

// RequestHandler represents an request handler.
type RequestHandler func(*config.ServerConfig, http.ResponseWriter, *http.Request)

// Middleware wraps a RequestHandler.
type Middleware = func(next RequestHandler) RequestHandler

type HttpHandler func(http.ResponseWriter, *http.Request)

// Bridge turns a RequestHandler into a plain http handler bound to the
// server configuration.
type Bridge = func(RequestHandler) HttpHandler

// BridgeBuilder is used to build a Bridge.
type BridgeBuilder struct {
	config          *config.ServerConfig
	postMiddlewares []Middleware
}

func NewBridgeBuilder(c *config.ServerConfig) *BridgeBuilder {
	return &BridgeBuilder{config: c}
}

// WithPostMiddlewares sets the Middleware's applied after the Bridge, in
// the order given.
func (b *BridgeBuilder) WithPostMiddlewares(middlewares ...Middleware) *BridgeBuilder {
	b.postMiddlewares = middlewares
	return b
}

// Build and return the Bridge configured by this BridgeBuilder.
func (b *BridgeBuilder) Build() Bridge {
	return func(next RequestHandler) HttpHandler {
		for i := len(b.postMiddlewares) - 1; i >= 0; i-- {
			next = b.postMiddlewares[i](next)
		}

		return func(w http.ResponseWriter, r *http.Request) {
			b.config.Logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote", r.RemoteAddr))
			next(b.config, w, r)
		}
	}
}
