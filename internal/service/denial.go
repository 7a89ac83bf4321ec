package service

import (
	"net/http"

	"github.com/inkstone/internal/constants"
)

// Denial 鉴权拒绝结果。
// 拒绝是状态机的正常出口而非异常：原因可枚举，HTTP 层据此返回对应状态码。
type Denial struct {
	Reason string `json:"reason"`
	Status int    `json:"status"`
}

// denialStatus 拒绝原因到 HTTP 状态码的固定映射
var denialStatus = map[string]int{
	constants.DenyReasonAPILimit:          http.StatusTooManyRequests,
	constants.DenyReasonTokenVerification: http.StatusForbidden,
	constants.DenyReasonTokenDenied:       http.StatusForbidden,
	constants.DenyReasonTokenExpired:      http.StatusUnauthorized,
	constants.DenyReasonTokenMismatch:     http.StatusForbidden,
	constants.DenyReasonUnauthorized:      http.StatusUnauthorized,
}

// Deny 按原因构造拒绝结果
func Deny(reason string) *Denial {
	status, ok := denialStatus[reason]
	if !ok {
		status = http.StatusUnauthorized
	}
	return &Denial{Reason: reason, Status: status}
}
