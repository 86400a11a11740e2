package intent

// actionKeywords signal that the user wants something done (English and Spanish).
var actionKeywords = newSet(
	"block", "quarantine", "isolate", "shutdown", "disable", "remove",
	"delete", "terminate", "kill", "stop", "ban", "restrict",
	"execute", "run", "deploy", "configure", "change", "modify",
	"bloquea", "bloquear", "cuarentena", "aisla", "aislar", "apaga", "apagar",
	"deshabilita", "deshabilitar", "elimina", "eliminar", "detén", "detener",
	"ejecuta", "ejecutar", "despliega", "desplegar", "configura", "configurar",
	"cambia", "cambiar", "modifica", "modificar", "borra", "borrar",
)

// queryKeywords signal an informational request (English and Spanish).
var queryKeywords = newSet(
	"show", "list", "get", "display", "what", "when", "where", "how",
	"status", "check", "see", "view", "tell", "explain", "describe",
	"muestra", "mostrar", "lista", "listar", "obtén", "obtener", "qué", "cuándo",
	"dónde", "cómo", "estado", "verifica", "verificar", "ve", "ver", "dime",
	"explica", "explicar", "describir", "hay", "cuáles", "cuál",
)

// highRiskActions always require manual approval.
var highRiskActions = newSet(
	"block_ip", "quarantine_device", "shutdown_system", "delete_user",
	"disable_firewall", "emergency_response", "isolate_network",
)

// actionRule maps a phrase pattern to an action type. Every group must have
// at least one substring present in the lower-cased message.
type actionRule struct {
	actionType string
	groups     [][]string
}

// actionRules are evaluated in order; the first match wins.
var actionRules = []actionRule{
	{"block_ip", [][]string{{"block", "bloque"}, {"ip"}}},
	{"quarantine_device", [][]string{{"quarantine", "isolate", "cuarentena", "aisla"}}},
	{"shutdown_system", [][]string{{"shutdown", "shut down", "apaga"}}},
	{"delete_user", [][]string{{"delete", "elimina", "borra"}, {"user", "usuario"}}},
	{"disable_firewall", [][]string{{"disable", "deshabilita"}, {"firewall"}}},
	{"emergency_response", [][]string{{"emergency", "emergencia"}}},
	{"block_resource", [][]string{{"block", "bloque"}}},
	{"configuration_change", [][]string{{"configure", "change", "configura", "cambia"}}},
}

// deviceMarkers precede a device name in free text.
var deviceMarkers = newSet("device", "host", "server", "dispositivo", "servidor")

type set map[string]struct{}

func newSet(words ...string) set {
	s := make(set, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

func (s set) has(w string) bool {
	_, ok := s[w]
	return ok
}

// IsHighRisk reports whether actionType belongs to the catalogue of actions
// that always require manual approval.
func IsHighRisk(actionType string) bool {
	return highRiskActions.has(actionType)
}
