package public

import (
	"github.com/inkstone/internal/http/handlers/shared"
	"github.com/inkstone/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetImageCaptcha 获取图片验证码挑战
func (h *Handler) GetImageCaptcha(c *gin.Context) {
	if h.CaptchaService == nil || !h.CaptchaService.Enabled() {
		response.Success(c, gin.H{"enabled": false})
		return
	}

	challenge, err := h.CaptchaService.GenerateImageChallenge()
	if err != nil {
		shared.RespondError(c, response.CodeInternal, "验证码生成失败", err)
		return
	}

	response.Success(c, gin.H{
		"enabled":      true,
		"captcha_id":   challenge.CaptchaID,
		"image_base64": challenge.ImageBase64,
	})
}
