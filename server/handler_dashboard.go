package server

import (
	"net/http"

	"game-bid-war/server/config"
	"game-bid-war/server/constant"
	"game-bid-war/server/response"
	"go.uber.org/zap"
)

func handlerDashboard(c *config.ServerConfig, w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(constant.HeaderCustomSubject)

	dashboard, err := c.Dashboard.Get(r.Context(), userID)
	if err != nil {
		c.Logger.Error("load dashboard", zap.String("userId", userID), zap.Error(err))
		response.Error(err, w)
		return
	}
	response.SuccessWithData(dashboard, w)
}
