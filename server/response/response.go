package response

import (
	"encoding/json"
	"net/http"

	"game-bid-war/server/constant"
)

// Response is the envelope of every HTTP reply. The HTTP status is always
// 200; Code carries the outcome.
type Response struct {
	Code    int    `json:"code"`
	Data    any    `json:"data"`
	Message string `json:"message"`
	Retry   bool   `json:"retry,omitempty"`
}

func Write(resp Response, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	marshal, _ := json.Marshal(resp)
	w.Write(marshal)
}

func Success(w http.ResponseWriter) {
	Write(Response{Code: constant.Code10000, Message: constant.OK}, w)
}

func SuccessWithData(data any, w http.ResponseWriter) {
	Write(Response{Code: constant.Code10000, Data: data, Message: constant.OK}, w)
}

func SuccessWithDataMsg(data any, msg string, w http.ResponseWriter) {
	Write(Response{Code: constant.Code10000, Data: data, Message: msg}, w)
}

func Fail(code int, message string, w http.ResponseWriter) {
	Write(Response{Code: code, Message: message}, w)
}

// Error replies with the code of err's taxonomy member.
func Error(err error, w http.ResponseWriter) {
	Write(Response{
		Code:    constant.CodeOf(err),
		Message: err.Error(),
		Retry:   constant.IsRetryable(err),
	}, w)
}

func ParamError(w http.ResponseWriter) {
	Fail(constant.Code10001, constant.ParamError, w)
}

func Unauthorized(w http.ResponseWriter) {
	Fail(constant.Code10012, constant.Unauthorized, w)
}

func SystemError(w http.ResponseWriter) {
	Fail(constant.Code99999, constant.Error, w)
}
