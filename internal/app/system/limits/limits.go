// internal/app/system/limits/limits.go
package limits

// Request body size limits for the JSON endpoints.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxJSONBody bounds signup, drop and capacity requests.
	MaxJSONBody = 16 << 10 // 16 KB

	// MaxTopicBody bounds topic create/update requests, which carry an HTML description.
	MaxTopicBody = 256 << 10 // 256 KB
)
