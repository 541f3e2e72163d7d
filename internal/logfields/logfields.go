package logfields

import (
	"log/slog"
	"strings"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRequestID  = "request_id"
	KeyAssemblyID = "assembly_id"
	KeyModule     = "module"
	KeySelection  = "selection"
	KeyModules    = "modules"
	KeyEntries    = "entries"
	KeyBytes      = "bytes"
	KeyLimit      = "limit_bytes"
	KeyPath       = "path"
	KeyName       = "name"
	KeyURL        = "url"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyUserAgent  = "user_agent"
	KeyRemoteAddr = "remote_addr"
	KeyResponseSz = "response_size"
	KeyDurationMS = "duration_ms"
	KeyCategory   = "category"
	KeyJobName    = "job_name"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RequestID(id string) slog.Attr   { return slog.String(KeyRequestID, id) }
func AssemblyID(id string) slog.Attr  { return slog.String(KeyAssemblyID, id) }
func Module(id string) slog.Attr      { return slog.String(KeyModule, id) }
func Modules(n int) slog.Attr         { return slog.Int(KeyModules, n) }
func Entries(n int) slog.Attr         { return slog.Int(KeyEntries, n) }
func Bytes(n int64) slog.Attr         { return slog.Int64(KeyBytes, n) }
func Limit(n int64) slog.Attr         { return slog.Int64(KeyLimit, n) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Name(n string) slog.Attr         { return slog.String(KeyName, n) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func UserAgent(ua string) slog.Attr   { return slog.String(KeyUserAgent, ua) }
func RemoteAddr(a string) slog.Attr   { return slog.String(KeyRemoteAddr, a) }
func ResponseSize(n int) slog.Attr    { return slog.Int(KeyResponseSz, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Category(c string) slog.Attr     { return slog.String(KeyCategory, c) }
func JobName(n string) slog.Attr      { return slog.String(KeyJobName, n) }

// Selection renders identifiers as one comma separated value.
func Selection(ids []string) slog.Attr { return slog.String(KeySelection, strings.Join(ids, ",")) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
