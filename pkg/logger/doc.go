// Package logger provides leveled, timestamped logging for invasoras.
//
// It wraps zerolog behind a small Logger interface so components can take a
// logger in their constructors and tests can swap in a TestLogger that
// records every message:
//
//	log := logger.GetLogger().WithField("component", "relay")
//	log.ErrorWithFields("relay request failed", map[string]interface{}{
//	    "url":    target,
//	    "status": resp.StatusCode,
//	})
package logger
