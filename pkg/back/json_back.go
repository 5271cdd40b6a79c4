package back

import (
	"errors"
	"net/http"

	"TubeSage/pkg/xerr"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Kind    string      `json:"kind,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Result 统一返回入口
func Result(c *gin.Context, data interface{}, err error) {
	if err == nil {
		Success(c, data)
		return
	}

	// 判断是否为自定义错误
	var ce *xerr.CodeError
	if errors.As(err, &ce) {
		Error(c, ce.Code, string(ce.Kind), ce.Message)
		return
	}

	// 默认为系统错误
	Error(c, xerr.ErrServerError.Code, string(xerr.KindInternal), xerr.ErrServerError.Message)
}

// Success 成功返回
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    xerr.OK,
		Message: "Success",
		Data:    data,
	})
}

// Error 错误返回
func Error(c *gin.Context, code int, kind string, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Kind:    kind,
		Message: message,
	})
}
