package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"soomhub/market/internal/captcha"
)

// CaptchaHeader carries the Cloudflare Turnstile response token.
const CaptchaHeader = "X-C-V"

// CaptchaMiddleware rejects requests whose Turnstile token does not verify.
// The verifier passes every request when no secret is configured.
func CaptchaMiddleware(verifier captcha.ITurnstileVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		verified, err := verifier.Verify(c.Request.Context(), c.GetHeader(CaptchaHeader), c.ClientIP())
		if err != nil {
			log.Printf("Error verifying Turnstile token: %v", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Captcha verification unavailable"})
			return
		}
		if !verified {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Captcha verification failed"})
			return
		}
		c.Next()
	}
}
