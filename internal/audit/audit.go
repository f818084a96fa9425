// Package audit records who changed inventory and when.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Action constants.
const (
	ActionCreate   = "CREATE"
	ActionUpdate   = "UPDATE"
	ActionDelete   = "DELETE"
	ActionCheckout = "CHECKOUT"
	ActionExport   = "EXPORT"
	ActionLogin    = "LOGIN"
)

// Entry is one row of the audit log.
type Entry struct {
	ID          int    `json:"id" db:"id"`
	Username    string `json:"username" db:"username"`
	Action      string `json:"action" db:"action"`
	Module      string `json:"module" db:"module"`
	RecordID    string `json:"recordId" db:"record_id"`
	Summary     string `json:"summary" db:"summary"`
	BeforeValue string `json:"beforeValue,omitempty" db:"before_value"`
	AfterValue  string `json:"afterValue,omitempty" db:"after_value"`
	IPAddress   string `json:"ipAddress,omitempty" db:"ip_address"`
	CreatedAt   string `json:"createdAt" db:"created_at"`
}

// Options contains all fields for an audit entry.
type Options struct {
	Username    string
	Action      string
	Module      string
	RecordID    string
	Summary     string
	BeforeValue interface{}
	AfterValue  interface{}
	IPAddress   string
	UserAgent   string
}

// GetClientIP extracts the real client IP from the request (handles proxies).
func GetClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return strings.TrimSpace(xri)
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// FromRequest fills the request-derived fields of an entry.
func FromRequest(r *http.Request, username, action, module, recordID, summary string) Options {
	return Options{
		Username:  username,
		Action:    action,
		Module:    module,
		RecordID:  recordID,
		Summary:   summary,
		IPAddress: GetClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// Log writes an audit entry. Values that cannot be marshalled are stored
// empty rather than failing the write.
func Log(ctx context.Context, db *sqlx.DB, opts Options) error {
	if opts.Username == "" {
		opts.Username = "system"
	}
	before := marshalOrEmpty(opts.BeforeValue)
	after := marshalOrEmpty(opts.AfterValue)

	_, err := db.ExecContext(ctx, `INSERT INTO audit_log
		(username, action, module, record_id, summary, before_value, after_value, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		opts.Username, opts.Action, opts.Module, opts.RecordID, opts.Summary,
		before, after, opts.IPAddress, opts.UserAgent, time.Now().UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return fmt.Errorf("audit log: %w", err)
	}
	return nil
}

func marshalOrEmpty(v interface{}) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// List returns the newest entries first, optionally restricted to module.
func List(ctx context.Context, db *sqlx.DB, module string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT id, username, action, module, record_id, COALESCE(summary,'') AS summary,
		COALESCE(before_value,'') AS before_value, COALESCE(after_value,'') AS after_value,
		COALESCE(ip_address,'') AS ip_address, created_at FROM audit_log`
	var args []interface{}
	if module != "" {
		query += " WHERE module = ?"
		args = append(args, module)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	entries := []Entry{}
	if err := db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	return entries, nil
}

// CleanupOld deletes audit log entries older than retentionDays.
func CleanupOld(ctx context.Context, db *sqlx.DB, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format("2006-01-02 15:04:05")
	result, err := db.ExecContext(ctx, "DELETE FROM audit_log WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
