package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus with structured key-value logging for the vault services
type Logger struct {
	entry *logrus.Entry
}

// New creates a new logger instance for the named service
func New(service, level string) *Logger {
	log := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	log.SetOutput(os.Stdout)

	return &Logger{entry: log.WithField("service", service)}
}

// WithField creates a derived logger carrying an extra field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithComponent creates a derived logger for a named component
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithField("component", component)
}

// Debug logs a debug message with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fields(keysAndValues)).Debug(msg)
}

// Info logs an info message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fields(keysAndValues)).Info(msg)
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fields(keysAndValues)).Warn(msg)
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fields(keysAndValues)).Error(msg)
}

// Fatal logs a fatal message with key-value pairs and exits
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fields(keysAndValues)).Fatal(msg)
}

// Audit logs audit events with structured format
func (l *Logger) Audit(subjectID, action, resource string, success bool) {
	entry := l.entry.WithFields(logrus.Fields{
		"audit":      true,
		"subject_id": subjectID,
		"action":     action,
		"resource":   resource,
		"success":    success,
	})

	if success {
		entry.Info("Audit event")
	} else {
		entry.Warn("Audit event failed")
	}
}

// ReportAccess logs report access decisions with the sensitivity marker
func (l *Logger) ReportAccess(subjectID, role, reportID, action string, allowed bool) {
	entry := l.entry.WithFields(logrus.Fields{
		"report_access": true,
		"subject_id":    subjectID,
		"role":          role,
		"report_id":     reportID,
		"action":        action,
		"allowed":       allowed,
		"sensitive":     true,
	})

	if allowed {
		entry.Info("Report access granted")
	} else {
		entry.Warn("Report access denied")
	}
}

// AnchorTransaction logs anchor ledger commit attempts
func (l *Logger) AnchorTransaction(ownerID, contentHash, txID string, success bool) {
	entry := l.entry.WithFields(logrus.Fields{
		"anchor":       true,
		"owner_id":     ownerID,
		"content_hash": contentHash,
		"tx_id":        txID,
		"success":      success,
	})

	if success {
		entry.Info("Anchor transaction completed")
	} else {
		entry.Error("Anchor transaction failed")
	}
}

// fields converts alternating key-value pairs into logrus fields.
// A trailing key without a value is recorded under "extra".
func fields(keysAndValues []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		f[key] = keysAndValues[i+1]
	}
	if len(keysAndValues)%2 == 1 {
		f["extra"] = keysAndValues[len(keysAndValues)-1]
	}
	return f
}
