package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                 = 0
	CodeBadRequest         = 40000
	CodeUsernameExists     = 40001
	CodeCollectionExists   = 40002
	CodeInvalidFileType    = 40003
	CodeUnreadablePDF      = 40004
	CodeUnknownBackend     = 40005
	CodeUnauthorized       = 40100
	CodeInvalidCredentials = 40101
	CodeForbidden          = 40300
	CodeNotFound           = 40400
	CodeSessionNotFound    = 40401
	CodeCollectionNotFound = 40402
	CodePromptNotFound     = 40403
	CodeRequestTooLarge    = 41300
	CodeInternalServer     = 50000
	CodeIngestFailed       = 50001
	CodeBackendFailed      = 50201
	CodeServiceUnavailable = 50300
	CodeMaintenance        = 50301
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// ErrorWithData is Error with a payload, used when a failed request still
// produced partial results.
func ErrorWithData(c *gin.Context, httpStatus, code int, message string, data interface{}) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}
