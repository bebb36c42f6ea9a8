package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// ErrorReporter forwards errors attached with c.Error to the request's
// New Relic transaction. It is a no-op when the agent is disabled.
func ErrorReporter() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		txn := nrgin.Transaction(c)
		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
