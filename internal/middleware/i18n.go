// internal/middleware/i18n.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

func I18nMiddleware(defaultLang string) gin.HandlerFunc {
	if defaultLang == "" {
		defaultLang = "en"
	}
	return func(c *gin.Context) {
		c.Set("lang", resolveLanguage(c.GetHeader("Accept-Language"), defaultLang))
		c.Next()
	}
}

// resolveLanguage picks the first supported tag of an Accept-Language
// header such as "zh-TW,zh;q=0.9,en;q=0.8".
func resolveLanguage(header, fallback string) string {
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.Split(part, ";")[0])
		switch strings.ToLower(tag) {
		case "zh-tw", "zh-hant", "zh_tw", "zh":
			return "zh_TW"
		case "en", "en-us", "en-gb":
			return "en"
		}
	}
	return fallback
}
