package receiver

import (
	"strconv"
	"strings"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"

	"github.com/nixlim/po-stats/internal/engine"
)

// EventPrefix is the event name prefix of producer log records. The rest of
// the name is the signal type, e.g. "po_translator.batch-progress".
const EventPrefix = "po_translator."

// Log record attribute keys.
const (
	attrEventName  = "event.name"
	attrEventID    = "event.id"
	attrTaskID     = "task.id"
	attrMode       = "mode"
	attrIndex      = "batch.index"
	attrTotal      = "batch.total"
	attrPercentage = "batch.percentage"
	attrStats      = "stats"
)

// signalsFromRequest extracts the producer signals carried by an OTLP logs
// export. Records that are not producer events are skipped.
func signalsFromRequest(req *collogspb.ExportLogsServiceRequest) []engine.Signal {
	var sigs []engine.Signal
	for _, rl := range req.GetResourceLogs() {
		for _, sl := range rl.GetScopeLogs() {
			for _, lr := range sl.GetLogRecords() {
				if sig, ok := signalFromRecord(lr); ok {
					sigs = append(sigs, sig)
				}
			}
		}
	}
	return sigs
}

func signalFromRecord(lr *logspb.LogRecord) (engine.Signal, bool) {
	attrs := kvListToMap(lr.GetAttributes())

	name := lr.GetEventName()
	if name == "" {
		name = stringAttr(attrs, attrEventName)
	}
	if name == "" {
		name = lr.GetBody().GetStringValue()
	}
	name = strings.TrimSpace(name)
	if !strings.HasPrefix(name, EventPrefix) {
		return engine.Signal{}, false
	}

	// Unknown signal names are kept so the engine rejects and audits them.
	typ, _ := engine.ParseSignalType(strings.TrimPrefix(name, EventPrefix))
	sig := engine.Signal{
		Type:       typ,
		EventID:    stringAttr(attrs, attrEventID),
		TaskID:     stringAttr(attrs, attrTaskID),
		Mode:       engine.Mode(stringAttr(attrs, attrMode)),
		Index:      int(intAttr(attrs, attrIndex)),
		Total:      int(intAttr(attrs, attrTotal)),
		Percentage: floatAttr(attrs, attrPercentage),
		Timestamp:  recordMillis(lr),
	}

	if raw, ok := attrs[attrStats]; ok && raw != nil {
		sig.Stats = raw
	} else if kv := lr.GetBody().GetKvlistValue(); kv != nil {
		sig.Stats = kvListToMap(kv.GetValues())
	}
	return sig, true
}

func recordMillis(lr *logspb.LogRecord) int64 {
	ns := lr.GetTimeUnixNano()
	if ns == 0 {
		ns = lr.GetObservedTimeUnixNano()
	}
	return int64(ns / 1e6)
}

// anyValueToGo converts an OTLP AnyValue into the shapes encoding/json
// would produce, so the stats normalizer can read it.
func anyValueToGo(v *commonpb.AnyValue) any {
	switch x := v.GetValue().(type) {
	case *commonpb.AnyValue_StringValue:
		return x.StringValue
	case *commonpb.AnyValue_BoolValue:
		return x.BoolValue
	case *commonpb.AnyValue_IntValue:
		return x.IntValue
	case *commonpb.AnyValue_DoubleValue:
		return x.DoubleValue
	case *commonpb.AnyValue_BytesValue:
		return string(x.BytesValue)
	case *commonpb.AnyValue_ArrayValue:
		vals := x.ArrayValue.GetValues()
		out := make([]any, len(vals))
		for i, e := range vals {
			out[i] = anyValueToGo(e)
		}
		return out
	case *commonpb.AnyValue_KvlistValue:
		return kvListToMap(x.KvlistValue.GetValues())
	default:
		return nil
	}
}

func kvListToMap(kvs []*commonpb.KeyValue) map[string]any {
	m := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		m[kv.GetKey()] = anyValueToGo(kv.GetValue())
	}
	return m
}

func stringAttr(attrs map[string]any, key string) string {
	switch v := attrs[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

func intAttr(attrs map[string]any, key string) int64 {
	switch v := attrs[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n
	default:
		return 0
	}
}

func floatAttr(attrs map[string]any, key string) float64 {
	switch v := attrs[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f
	default:
		return 0
	}
}
