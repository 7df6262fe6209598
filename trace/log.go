package trace

import (
	"log/slog"

	"github.com/erigontech/erigon-lib/common"
)

// debugLog and warnLog centralize C10's two logged events: frame
// push/pop (Debug level) and a contract whose code hash or creation
// bytecode the artifact manager could not resolve (Warn level,
// deduplicated by cachingArtifactManager per hash). Other recovered paths
// (a PC without a source triple, a failed ABI decode) are not logged. A
// nil *slog.Logger is always valid and logs nothing, matching the
// teacher's noop-tracer idiom of "every method a safe no-op".

func debugLog(l *slog.Logger, msg string, args ...any) {
	if l == nil {
		return
	}
	l.Debug(msg, args...)
}

func warnLog(l *slog.Logger, msg string, args ...any) {
	if l == nil {
		return
	}
	l.Warn(msg, args...)
}

func logFramePush(l *slog.Logger, f Frame, stepIdx int) {
	debugLog(l, "frame push", "kind", f.Kind.String(), "step", stepIdx, "sender", f.Sender.Hex())
}

func logFramePop(l *slog.Logger, f Frame, stepIdx int) {
	debugLog(l, "frame pop", "kind", f.Kind.String(), "step", stepIdx, "startStep", f.StartStep)
}

func logMissingContractInfo(l *slog.Logger, hash common.Hash, creation bool) {
	warnLog(l, "unresolved contract info", "hash", hash.Hex(), "creation", creation)
}
