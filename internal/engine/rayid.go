package engine

// rayid.go — extracción del Ray ID de Cloudflare desde cuerpos de error
// en texto libre. Un no-match significa "bloqueo desconocido", nunca un
// error.

import (
	"regexp"
	"strings"
)

var (
	rayIDStrong = regexp.MustCompile(`Cloudflare Ray ID:\s*<strong[^>]*>([^<]+)</strong>`)
	rayIDBare   = regexp.MustCompile(`Cloudflare Ray ID:\s*([A-Za-z0-9]+)`)
)

// ExtractRayID busca el identificador de traza de Cloudflare en el texto
// de un error HTTP: primero la variante HTML (envuelta en <strong>), luego
// el token alfanumérico desnudo tras el marcador. Devuelve "" si no hay
// match.
func ExtractRayID(errText string) string {
	if m := rayIDStrong.FindStringSubmatch(errText); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := rayIDBare.FindStringSubmatch(errText); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
