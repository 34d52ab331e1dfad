package handler

import (
	"net/http"
	"strconv"
	"time"

	"nft_auction/service"
	"nft_auction/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	HeaderCaller    = "X-Caller-Address"
	HeaderSignature = "X-Caller-Signature"
	HeaderTimestamp = "X-Caller-Timestamp"

	// 签名时间戳允许的最大偏差
	signatureMaxSkew = 5 * time.Minute

	callerKey = "caller"
)

// SignedMessage 调用方需要签名的内容
func SignedMessage(method, path, timestamp string) string {
	return method + " " + path + " " + timestamp
}

// CallerAuth 解析调用方地址；requireSig为true时校验钱包签名
func CallerAuth(requireSig bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		addr, err := service.NormalizeAddress(c.GetHeader(HeaderCaller))
		if err != nil {
			fail(c, http.StatusUnauthorized, "missing or invalid "+HeaderCaller)
			return
		}

		if requireSig {
			ts := c.GetHeader(HeaderTimestamp)
			sec, err := strconv.ParseInt(ts, 10, 64)
			if err != nil {
				fail(c, http.StatusUnauthorized, "missing or invalid "+HeaderTimestamp)
				return
			}
			skew := time.Since(time.Unix(sec, 0))
			if skew > signatureMaxSkew || skew < -signatureMaxSkew {
				fail(c, http.StatusUnauthorized, "signature expired")
				return
			}
			msg := SignedMessage(c.Request.Method, c.Request.URL.Path, ts)
			if !utils.VerifySignature(addr, msg, c.GetHeader(HeaderSignature)) {
				utils.Logger.Warn("签名校验失败", zap.String("caller", addr), zap.String("path", c.Request.URL.Path))
				fail(c, http.StatusUnauthorized, "invalid signature")
				return
			}
		}

		c.Set(callerKey, addr)
		c.Next()
	}
}

// callerOf 取出已认证的调用方地址
func callerOf(c *gin.Context) string {
	return c.GetString(callerKey)
}

// RequestLogger 访问日志
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		utils.Logger.Info("http",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
