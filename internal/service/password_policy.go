package service

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/inkstone/internal/config"
)

// ErrWeakPassword 密码不满足强度策略
var ErrWeakPassword = errors.New("密码强度不足")

type passwordPolicyError struct {
	message string
}

func (e passwordPolicyError) Error() string {
	return e.message
}

func (e passwordPolicyError) Is(target error) bool {
	return target == ErrWeakPassword
}

func validatePassword(policy config.PasswordPolicyConfig, password string) error {
	if policy.MinLength <= 0 &&
		!policy.RequireUpper &&
		!policy.RequireLower &&
		!policy.RequireNumber {
		return nil
	}

	if policy.MinLength > 0 {
		if len([]rune(password)) < policy.MinLength {
			return passwordPolicyError{message: fmt.Sprintf("密码长度至少 %d 位", policy.MinLength)}
		}
	}

	var hasUpper, hasLower, hasNumber bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasNumber = true
		}
	}

	if policy.RequireUpper && !hasUpper {
		return passwordPolicyError{message: "密码需包含大写字母"}
	}
	if policy.RequireLower && !hasLower {
		return passwordPolicyError{message: "密码需包含小写字母"}
	}
	if policy.RequireNumber && !hasNumber {
		return passwordPolicyError{message: "密码需包含数字"}
	}

	return nil
}
