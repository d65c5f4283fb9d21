package orchestrator

import (
	"fmt"
	"strings"

	"github.com/loomworks/loom/pkg/store"
)

// flushAnnotations appends the accumulated warnings and errors to the stored
// message content as out-of-band tags, so they survive independent of any
// live UI session and stay visible on review without breaking the original
// tag stream. Runs on every exit path, including fatal aborts. Silent report
// entries are excluded on purpose.
func (o *Orchestrator) flushAnnotations(msg *store.Message, st *runState) {
	var b strings.Builder
	for _, e := range st.report.Errors {
		b.WriteString(renderAnnotation("error", e))
	}
	for _, w := range st.report.Warnings {
		b.WriteString(renderAnnotation("warning", w))
	}
	if b.Len() == 0 {
		return
	}

	content := strings.TrimRight(msg.Content, "\n") + "\n\n" + b.String()
	if err := o.Store.UpdateMessageContent(msg.ID, content); err != nil {
		o.Log.LogError(fmt.Errorf("failed to flush annotations to message %s: %w", msg.ID, err))
	}
}

func renderAnnotation(kind, message string) string {
	escaped := strings.ReplaceAll(message, "\"", "&quot;")
	escaped = strings.ReplaceAll(escaped, "\n", " ")
	return fmt.Sprintf("<loom-output type=\"%s\" message=\"%s\"></loom-output>\n", kind, escaped)
}
