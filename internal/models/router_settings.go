package models

import (
	"net"
	"strconv"
	"time"
)

// DefaultAPIPort is the binary API port of the router
const DefaultAPIPort = 8728

// RouterSettings holds connection details of the managed router. Only one
// row exists.
type RouterSettings struct {
	ID        int       `json:"id" db:"id"`
	Host      string    `json:"host" db:"host" validate:"required,hostname_rfc1123|ip"`
	Port      int       `json:"port" db:"port" validate:"omitempty,min=1,max=65535"`
	Username  string    `json:"username" db:"username" validate:"required"`
	Password  string    `json:"password,omitempty" db:"password"`
	SSL       bool      `json:"ssl" db:"ssl"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// APIAddress returns host:port of the binary API
func (s *RouterSettings) APIAddress() string {
	port := s.Port
	if port == 0 {
		port = DefaultAPIPort
	}
	return net.JoinHostPort(s.Host, strconv.Itoa(port))
}

// Redacted returns a copy safe to return to clients
func (s *RouterSettings) Redacted() *RouterSettings {
	out := *s
	out.Password = ""
	return &out
}
