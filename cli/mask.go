package cli

import "net/url"

// maskConnectionString hides the password in a database URL for logging.
func maskConnectionString(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil {
		return connStr
	}
	return u.Redacted()
}
