package log

import (
	"fmt"
	"log/slog"
)

// EvidenceValue is a string pulled from a description header (case number, examiner, notes, ...) that should be
// tagged as evidentiary data wherever it ends up in a log line.
type EvidenceValue string

func (e EvidenceValue) LogValue() slog.Value {
	return slog.StringValue(fmt.Sprintf("<evidence>%s</evidence>", e))
}

// Evidence returns an Attr for a description-header value that should be tagged as evidentiary data.
func Evidence(key, value string) slog.Attr {
	return slog.Attr{Key: key, Value: EvidenceValue(value).LogValue()}
}
