package escalation

import (
	"fmt"

	"github.com/txdxai/sophia/pkg/models"
)

const userMessageTemplate = `🎫 **Este caso requiere intervención de VictorIA**

Su solicitud ha sido escalada para revisión manual:
- **Ticket ID**: %s
- **Severidad**: %s
- **Tiempo estimado de respuesta**: %s

VictorIA revisará su solicitud y tomará las acciones necesarias. Recibirá una notificación cuando se complete.

💡 **Nota**: Las acciones de seguridad críticas requieren aprobación manual para garantizar la seguridad del sistema.`

// UserMessage renders the reply shown after an escalation.
func UserMessage(ticketID string, severity models.Severity, responseTime string) string {
	if responseTime == "" {
		responseTime = DefaultResponseTime
	}
	return fmt.Sprintf(userMessageTemplate, ticketID, severity, responseTime)
}
