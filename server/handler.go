package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"game-bid-war/server/config"
	"game-bid-war/server/constant"
	"game-bid-war/server/response"
	"github.com/asaskevich/govalidator"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewHTTPServer(lifecycle fx.Lifecycle, mux *http.ServeMux, c *config.ServerConfig, gateway *Gateway) *http.Server {
	options := cors.New(cors.Options{
		AllowCredentials: true,
		AllowedOrigins:   c.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "X-CSRF-Token"},
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", c.Config.Server.Port), Handler: options.Handler(mux)}
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}

			c.Logger.Info("starting HTTP server", zap.String("addr", srv.Addr))
			go srv.Serve(ln)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			err := srv.Shutdown(ctx)
			gateway.CloseAll()
			return err
		},
	})
	return srv
}

// RequireAuth verifies the bearer token and passes its subject on in the
// HeaderCustomSubject header.
func RequireAuth(next RequestHandler) RequestHandler {
	return func(c *config.ServerConfig, w http.ResponseWriter, r *http.Request) {
		claims, err := c.Verifier.Verify(requestToken(r))
		if err != nil {
			c.Logger.Debug("unauthorized request", zap.String("path", r.URL.Path), zap.Error(err))
			response.Unauthorized(w)
			return
		}

		r.Header.Set(constant.HeaderCustomSubject, claims.Subject)
		next(c, w, r)
	}
}

// requestToken looks in the Authorization header, then the token query
// parameter, then the token cookie.
func requestToken(r *http.Request) string {
	if header := r.Header.Get(constant.HeaderAuthorization); strings.HasPrefix(header, constant.BearerPrefix) {
		return strings.TrimPrefix(header, constant.BearerPrefix)
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if cookie, err := r.Cookie("token"); err == nil {
		return cookie.Value
	}
	return ""
}

func NewServeMux(mux *http.ServeMux, c *config.ServerConfig, gateway *Gateway) {

	middlewareAPI := NewBridgeBuilder(c).Build()
	middlewareAuth := NewBridgeBuilder(c).WithPostMiddlewares(RequireAuth).Build()

	mux.HandleFunc("GET /ws", middlewareAPI(gateway.handlerSocketConnection))

	mux.HandleFunc("POST /api/game", middlewareAuth(handlerCreateGame))
	mux.HandleFunc("GET /api/game", middlewareAPI(handlerGetGame))
	mux.HandleFunc("POST /api/game/end", middlewareAuth(handlerEndGame))
	mux.HandleFunc("GET /api/games", middlewareAPI(handlerListGames))
	mux.HandleFunc("POST /api/bid", middlewareAuth(handlerPlaceBid))
	mux.HandleFunc("PUT /api/bid", middlewareAuth(handlerLateBid))
	mux.HandleFunc("GET /api/gameid", middlewareAPI(handlerGameID))
	mux.HandleFunc("GET /api/dashboard", middlewareAuth(handlerDashboard))

	if c.Config.Metrics.Enabled && c.Gatherer != nil {
		mux.Handle("GET "+c.Config.Metrics.Path, promhttp.HandlerFor(c.Gatherer, promhttp.HandlerOpts{}))
	}
}

// ParseBody parse the request body into the type of value.
func ParseBody(r io.Reader, value any) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return constant.NewError(constant.ValidationError, "read body: %v", err)
	}

	if err = json.Unmarshal(body, value); err != nil {
		return constant.NewError(constant.ValidationError, "unable to parse body: %v", err)
	}
	return Validate(value)
}

// Validate runs the govalidator tags of value.
func Validate(value any) error {
	valid, err := govalidator.ValidateStruct(value)
	if err != nil {
		return constant.NewError(constant.ValidationError, "%v", err)
	}
	if !valid {
		return constant.NewError(constant.ValidationError, "body is not valid")
	}
	return nil
}
