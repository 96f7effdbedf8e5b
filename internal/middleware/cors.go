// 包 middleware：跨域与限流中间件
package middleware

import (
	"log/slog"
	"net/http"
	"strings"
)

// 预检时对外声明的方法集合（允许全部方法）
const allowMethods = "DELETE, GET, HEAD, OPTIONS, PATCH, POST, PUT"

// 文档注释：跨域白名单
// 背景：仅允许配置的来源携带凭证访问；方法与请求头不做限制，预检时回显请求头。
// 约束：来源按完整字符串精确匹配（协议+主机+端口）；非白名单来源的普通请求照常处理但不附加 CORS 头。
type CORS struct {
	l       *slog.Logger
	origins map[string]struct{}
}

func NewCORS(origins []string, l *slog.Logger) *CORS {
	c := &CORS{l: l, origins: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			c.origins[o] = struct{}{}
		}
	}
	return c
}

func (c *CORS) allowed(origin string) bool {
	_, ok := c.origins[origin]
	return ok
}

// Wrap：生成 http.Handler 中间件
func (c *CORS) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}
		h := w.Header()
		h.Add("Vary", "Origin")
		preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
		if !c.allowed(origin) {
			if preflight {
				c.l.Debug("cors_block", "origin", origin)
				h.Set("content-type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte("Disallowed CORS origin"))
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		if preflight {
			h.Set("Access-Control-Allow-Methods", allowMethods)
			if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
				h.Set("Access-Control-Allow-Headers", reqHeaders)
			}
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
