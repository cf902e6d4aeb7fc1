package gorbac

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Audit event types emitted by the engine.
const (
	auditSignup            = "signup"
	auditLogin             = "login"
	auditLoginTwoFactor    = "login.two_factor_required"
	auditTwoFactorLogin    = "login.two_factor"
	auditPasswordlessSend  = "login.passwordless.send"
	auditPasswordlessLogin = "login.passwordless.verify"
	auditLogout            = "logout"
	auditLogoutAll         = "logout.all"
	auditRefresh           = "refresh"
	auditPasswordForgot    = "password.forgot"
	auditPasswordReset     = "password.reset"
	auditPasswordChange    = "password.change"
	auditEmailVerifySend   = "email.verify.send"
	auditEmailVerify       = "email.verify"
	auditEmailChange       = "email.change"
	auditTwoFactorBegin    = "two_factor.enroll.begin"
	auditTwoFactorConfirm  = "two_factor.enroll.confirm"
	auditTwoFactorDisable  = "two_factor.disable"
	auditRoleAssign        = "role.assign"
	auditBlockSet          = "account.block"
	auditDeactivate        = "account.deactivate"
)

// AuditEvent is one security-relevant occurrence. Events never carry
// raw secrets; Error holds a short classification string, not the full
// error chain.
type AuditEvent struct {
	Time    time.Time         `json:"time"`
	Type    string            `json:"type"`
	Success bool              `json:"success"`
	UserID  string            `json:"userId,omitempty"`
	Error   string            `json:"error,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// AuditSink consumes audit events from the dispatcher. Write must be
// safe for concurrent use and should not block; slow sinks cause event
// drops when the dispatcher buffer fills.
type AuditSink interface {
	Write(ev AuditEvent)
}

// NoOpSink discards all events.
type NoOpSink struct{}

// Write implements AuditSink.
func (NoOpSink) Write(AuditEvent) {}

// ChannelSink forwards events to a channel, dropping when the channel
// is full.
type ChannelSink struct {
	C chan AuditEvent
}

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{C: make(chan AuditEvent, buffer)}
}

// Write implements AuditSink.
func (s *ChannelSink) Write(ev AuditEvent) {
	select {
	case s.C <- ev:
	default:
	}
}

// JSONWriterSink writes one JSON object per line to an io.Writer.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONWriterSink returns a JSONWriterSink writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

// Write implements AuditSink.
func (s *JSONWriterSink) Write(ev AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(ev)
}
