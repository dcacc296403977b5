// Package audit records which NAV employee looked up which person.
package audit

import (
	"strings"

	"go.uber.org/zap"
)

type Logger interface {
	// Lookup records that navIdent read the varsler of the person identified by fnr.
	Lookup(navIdent string, fnr string, path string)
}

// ZapLogger writes audit entries to a dedicated named zap logger so they can be
// routed separately from application logs.
type ZapLogger struct {
	logger *zap.Logger
}

func NewZapLogger(logger *zap.Logger) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLogger{logger: logger.Named("auditLogger")}
}

func (l *ZapLogger) Lookup(navIdent string, fnr string, path string) {
	navIdent = strings.TrimSpace(navIdent)
	if navIdent == "" {
		navIdent = "UKJENT"
	}

	l.logger.Info("NAV-ansatt har hentet varsler for en person",
		zap.String("action", "access"),
		zap.String("suid", navIdent),
		zap.String("duid", fnr),
		zap.String("request", path),
	)
}
