package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	verifyCodeTTL          = 10 * time.Minute
	verifyCodeSendInterval = 60 * time.Second
)

type verifyCodeEntry struct {
	Code   string `json:"code"`
	SentAt int64  `json:"sent_at"`
}

func verifyCodeKey(email string) string {
	return fmt.Sprintf("verify:email:%s", email)
}

// SetVerifyCode 写入邮箱验证码，返回是否允许发送。
// 上一条验证码发出不足 60 秒时拒绝重发。
func SetVerifyCode(ctx context.Context, email, code string) (bool, error) {
	var existing verifyCodeEntry
	hit, err := GetJSON(ctx, verifyCodeKey(email), &existing)
	if err != nil {
		return false, err
	}
	now := time.Now()
	if hit && now.Unix()-existing.SentAt < int64(verifyCodeSendInterval.Seconds()) {
		return false, nil
	}
	entry := verifyCodeEntry{Code: code, SentAt: now.Unix()}
	if err := SetJSON(ctx, verifyCodeKey(email), entry, verifyCodeTTL); err != nil {
		return false, err
	}
	return true, nil
}

// GetVerifyCode 读取邮箱验证码
func GetVerifyCode(ctx context.Context, email string) (string, bool, error) {
	var entry verifyCodeEntry
	hit, err := GetJSON(ctx, verifyCodeKey(email), &entry)
	if err != nil || !hit {
		return "", hit, err
	}
	return entry.Code, true, nil
}

// DelVerifyCode 删除邮箱验证码
func DelVerifyCode(ctx context.Context, email string) error {
	return Del(ctx, verifyCodeKey(email))
}
