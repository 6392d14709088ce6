package logger

import "strings"

var secretKeys = []string{"token", "secret", "password", "credentials", "private_key", "api_key", "apikey"}

// RedactSecret masks values whose key names a credential.
// ("access_token", "ya29.abc") → "***"
// Keys that are not secret-looking are returned unchanged.
func RedactSecret(key, val string) string {
	k := strings.ToLower(key)
	for _, s := range secretKeys {
		if strings.Contains(k, s) {
			if val == "" {
				return val
			}
			return "***"
		}
	}
	return val
}
