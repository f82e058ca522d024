package prompt

import (
	"fmt"

	"github.com/edgard/murailochat/internal/database"
)

// Attachment summary texts.
const (
	AttachmentNotFound = "Archivo adjunto no encontrado."
	AnalysisInProgress = "[Analizando...]"
	AnalysisFailed     = "Error al analizar el archivo."
)

// DescribeAttachment returns the summary line of att for the attachments
// block. It is total over the analysis states and a missing attachment.
func DescribeAttachment(att *database.Attachment) string {
	if att == nil {
		return AttachmentNotFound
	}

	label := att.Filename
	if att.MimeType != "" {
		label = fmt.Sprintf("%s (%s)", att.Filename, att.MimeType)
	}

	switch att.Status() {
	case database.AnalysisCompleted:
		analysis := att.Analysis()
		if analysis == "" {
			analysis = "sin descripción"
		}
		return fmt.Sprintf("%s: %s", label, analysis)
	case database.AnalysisPending:
		return fmt.Sprintf("%s: %s", label, AnalysisInProgress)
	case database.AnalysisError:
		return fmt.Sprintf("%s: %s", label, AnalysisFailed)
	default:
		return fmt.Sprintf("El usuario adjuntó el archivo %s, sin análisis disponible.", label)
	}
}
