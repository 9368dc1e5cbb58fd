// internal/config/database.go
package config

import (
	"fmt"
	"strings"
)

// DSN renders the libpq keyword/value connection string. Key order is
// irrelevant to the driver.
func (d *DatabaseConfig) DSN() string {
	pairs := []string{
		fmt.Sprintf("host=%s", d.Host),
		fmt.Sprintf("port=%s", d.Port),
		fmt.Sprintf("user=%s", d.User),
		fmt.Sprintf("password=%s", d.Password),
		fmt.Sprintf("dbname=%s", d.Database),
		fmt.Sprintf("sslmode=%s", d.SSLMode),
	}
	return strings.Join(pairs, " ")
}
