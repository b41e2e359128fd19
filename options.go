package pgcore

import (
	"log/slog"
)

// OptionFn configures a connection before the startup handshake.
type OptionFn func(*Conn)

// WithLogger sets the logger used for protocol tracing and backend notices.
func WithLogger(logger *slog.Logger) OptionFn {
	return func(c *Conn) {
		c.logger = logger
	}
}

// WithParameters sets the session parameters announced inside the startup
// packet, such as user, database and application_name.
func WithParameters(parameters map[string]string) OptionFn {
	return func(c *Conn) {
		for name, value := range parameters {
			c.startup[name] = value
		}
	}
}

// WithUser sets the user announced inside the startup packet.
func WithUser(user string) OptionFn {
	return func(c *Conn) {
		c.startup["user"] = user
	}
}

// WithDatabase sets the database announced inside the startup packet.
func WithDatabase(database string) OptionFn {
	return func(c *Conn) {
		c.startup["database"] = database
	}
}

// WithRegistry sets the converter registry backing the connection
// transformer. The default registry covers the built-in Postgres types.
func WithRegistry(registry *Registry) OptionFn {
	return func(c *Conn) {
		c.registry = registry
	}
}
