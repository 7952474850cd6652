package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyCompiler     = "compiler"
	KeyPassID       = "pass_id"
	KeyAsset        = "asset"
	KeyManifestFile = "manifest_file"
	KeyEntries      = "entries"
	KeyMembers      = "members"
	KeyArrived      = "arrived"
	KeyStage        = "stage"
	KeyDurationMS   = "duration_ms"
	KeyPath         = "path"
	KeySubject      = "subject"
	KeyHook         = "hook"
	KeyError        = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Compiler(name string) slog.Attr     { return slog.String(KeyCompiler, name) }
func PassID(id string) slog.Attr         { return slog.String(KeyPassID, id) }
func Asset(name string) slog.Attr        { return slog.String(KeyAsset, name) }
func ManifestFile(name string) slog.Attr { return slog.String(KeyManifestFile, name) }
func Entries(n int) slog.Attr            { return slog.Int(KeyEntries, n) }
func Members(n int) slog.Attr            { return slog.Int(KeyMembers, n) }
func Arrived(n int) slog.Attr            { return slog.Int(KeyArrived, n) }
func Stage(name string) slog.Attr        { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr    { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr            { return slog.String(KeyPath, p) }
func Subject(s string) slog.Attr         { return slog.String(KeySubject, s) }
func Hook(name string) slog.Attr         { return slog.String(KeyHook, name) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
