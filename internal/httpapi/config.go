package httpapi

// statusPageEnabled controls whether GET /hub/ serves the HTML status page.
var statusPageEnabled bool

// SetStatusPageEnabled toggles the embedded status page.
func SetStatusPageEnabled(enabled bool) { statusPageEnabled = enabled }

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
