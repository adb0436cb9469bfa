package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// =============================================================================
// ACTION JOURNAL
// =============================================================================

// AuditEventType names one journal record kind.
type AuditEventType string

const (
	AuditRunStart       AuditEventType = "run_start"
	AuditRunEnd         AuditEventType = "run_end"
	AuditEntityStart    AuditEventType = "entity_start"
	AuditEntityComplete AuditEventType = "entity_complete"
	AuditActionDispatch AuditEventType = "action_dispatch"
	AuditActionError    AuditEventType = "action_error"
)

// AuditEvent is one JSON line of the action journal.
type AuditEvent struct {
	EventType AuditEventType
	RunID     string
	Entity    string
	Action    string
	Target    string
	Success   bool
	Error     string
}

// AuditLogger writes the action journal. The zero value discards.
type AuditLogger struct {
	logger *zap.Logger
	runID  string
}

var (
	auditMu     sync.RWMutex
	auditLogger *zap.Logger
)

// initAudit opens the journal file; an empty path disables the journal.
func initAudit(path string) error {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditLogger != nil {
		_ = auditLogger.Sync()
		auditLogger = nil
	}
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit journal: %w", err)
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.MessageKey = "event"
	encCfg.EncodeTime = zapcore.EpochMillisTimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), zapcore.InfoLevel)
	auditLogger = zap.New(core)
	return nil
}

func syncAudit() {
	auditMu.RLock()
	defer auditMu.RUnlock()
	if auditLogger != nil {
		_ = auditLogger.Sync()
	}
}

// Audit returns the journal writer for one run.
func Audit(runID string) *AuditLogger {
	auditMu.RLock()
	defer auditMu.RUnlock()
	return &AuditLogger{logger: auditLogger, runID: runID}
}

// Log writes one event.
func (a *AuditLogger) Log(event AuditEvent) {
	if a == nil || a.logger == nil {
		return
	}
	if event.RunID == "" {
		event.RunID = a.runID
	}
	fields := []zap.Field{
		zap.String("run", event.RunID),
		zap.Bool("success", event.Success),
	}
	if event.Entity != "" {
		fields = append(fields, zap.String("entity", event.Entity))
	}
	if event.Action != "" {
		fields = append(fields, zap.String("action", event.Action))
	}
	if event.Target != "" {
		fields = append(fields, zap.String("target", event.Target))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	a.logger.Info(string(event.EventType), fields...)
}

// ActionDispatched records one dispatch and its outcome.
func (a *AuditLogger) ActionDispatched(entity, action, target string, err error) {
	ev := AuditEvent{EventType: AuditActionDispatch, Entity: entity, Action: action, Target: target, Success: err == nil}
	if err != nil {
		ev.EventType = AuditActionError
		ev.Error = err.Error()
	}
	a.Log(ev)
}

// RunStart records the beginning of a run.
func (a *AuditLogger) RunStart(mode string) {
	a.Log(AuditEvent{EventType: AuditRunStart, Target: mode, Success: true})
}

// RunEnd records the terminal outcome of a run.
func (a *AuditLogger) RunEnd(outcome string, err error) {
	ev := AuditEvent{EventType: AuditRunEnd, Target: outcome, Success: err == nil}
	if err != nil {
		ev.Error = err.Error()
	}
	a.Log(ev)
}

// EntityEvent records an entity boundary.
func (a *AuditLogger) EntityEvent(eventType AuditEventType, entity string, success bool) {
	a.Log(AuditEvent{EventType: eventType, Entity: entity, Success: success})
}
