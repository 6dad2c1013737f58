package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/netbill/netbill-server/internal/models"
)

// Client exposes router operations as typed calls. Each call is one batch:
// a session is opened, used and closed.
type Client struct {
	gw        *Gateway
	wanMarker string
}

// NewClient creates a client. wanMarker is an extra interface name
// fragment that identifies the uplink.
func NewClient(gw *Gateway, wanMarker string) *Client {
	return &Client{gw: gw, wanMarker: wanMarker}
}

// Gateway returns the underlying gateway
func (c *Client) Gateway() *Gateway { return c.gw }

// findFirst prints path filtered by key=value and returns the first row
func findFirst(ctx context.Context, exec Executor, path, key, value string) (Row, error) {
	rows, err := exec.Execute(ctx, Print(path, key, value))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s %s=%q", ErrNotFound, path, key, value)
	}
	return rows[0], nil
}

func retID(rows []Row) string {
	for _, row := range rows {
		if id := row["ret"]; id != "" {
			return id
		}
	}
	return ""
}

func checkService(service models.ServiceType) error {
	if !service.Valid() {
		return fmt.Errorf("%w: unknown service %q", ErrInvalid, service)
	}
	return nil
}

// GetSystemResource reads resource usage, identity and temperature
func (c *Client) GetSystemResource(ctx context.Context) (*SystemResource, error) {
	return Run(ctx, c.gw, systemResource)
}

func systemResource(ctx context.Context, exec Executor) (*SystemResource, error) {
	resource, err := exec.Execute(ctx, Print(pathSystemResource))
	if err != nil {
		return nil, err
	}
	if len(resource) == 0 {
		return nil, &ProtocolError{Transport: "router", Command: pathSystemResource + "/print", Err: fmt.Errorf("empty reply")}
	}

	identity, err := exec.Execute(ctx, Print(pathSystemIdentity))
	if err != nil {
		return nil, err
	}
	var id Row
	if len(identity) > 0 {
		id = identity[0]
	}

	// health is missing on some boards and virtual routers
	var temperature *float64
	if health, err := exec.Execute(ctx, Print(pathSystemHealth)); err == nil {
		temperature = healthTemperature(health)
	} else if ctx.Err() != nil {
		return nil, ctx.Err()
	} else {
		log.Debug().Err(err).Msg("System health unavailable")
	}

	return toSystemResource(resource[0], id, temperature), nil
}

// ListActiveSessions merges online PPP and Hotspot users
func (c *Client) ListActiveSessions(ctx context.Context) ([]ActiveSession, error) {
	return Run(ctx, c.gw, func(ctx context.Context, exec Executor) ([]ActiveSession, error) {
		ppp, err := exec.Execute(ctx, Print(pathPPPActive))
		if err != nil {
			return nil, err
		}
		hotspot, err := exec.Execute(ctx, Print(pathHotspotActive))
		if err != nil {
			if Kind(err) != KindProtocol {
				return nil, err
			}
			// routers without the hotspot package reject the menu
			log.Warn().Err(err).Msg("Hotspot sessions unavailable, listing PPP sessions only")
			hotspot = nil
		}

		sessions := make([]ActiveSession, 0, len(ppp)+len(hotspot))
		for _, row := range ppp {
			sessions = append(sessions, toPPPActive(row))
		}
		for _, row := range hotspot {
			sessions = append(sessions, toHotspotActive(row))
		}
		return sessions, nil
	})
}

// GetInterfaces lists interfaces with byte counters
func (c *Client) GetInterfaces(ctx context.Context) ([]Interface, error) {
	return Run(ctx, c.gw, func(ctx context.Context, exec Executor) ([]Interface, error) {
		rows, err := exec.Execute(ctx, Print(pathInterface))
		if err != nil {
			return nil, err
		}
		out := make([]Interface, 0, len(rows))
		for _, row := range rows {
			out = append(out, toInterface(row))
		}
		return out, nil
	})
}

// SelectWAN picks the uplink interface
func (c *Client) SelectWAN(ifaces []Interface) *Interface {
	return SelectWAN(ifaces, c.wanMarker)
}

// SelectWAN picks the interface whose name contains "wan" or marker, else
// the first ethernet interface, else the first one. It returns nil for an
// empty list.
func SelectWAN(ifaces []Interface, marker string) *Interface {
	if len(ifaces) == 0 {
		return nil
	}
	marker = strings.ToLower(marker)
	for i := range ifaces {
		name := strings.ToLower(ifaces[i].Name)
		if strings.Contains(name, "wan") || (marker != "" && strings.Contains(name, marker)) {
			return &ifaces[i]
		}
	}
	for i := range ifaces {
		if ifaces[i].Type == "ether" {
			return &ifaces[i]
		}
	}
	return &ifaces[0]
}

// FindInterface returns the interface called name
func FindInterface(ifaces []Interface, name string) *Interface {
	for i := range ifaces {
		if ifaces[i].Name == name {
			return &ifaces[i]
		}
	}
	return nil
}

// CreateSecret adds a PPP secret or Hotspot user and, when pkg is given,
// the simple queue limiting it.
func (c *Client) CreateSecret(ctx context.Context, spec SecretSpec, pkg *models.Package) (*CreateResult, error) {
	if spec.Username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalid)
	}
	if err := checkService(spec.Service); err != nil {
		return nil, err
	}

	return Run(ctx, c.gw, func(ctx context.Context, exec Executor) (*CreateResult, error) {
		rows, err := exec.Execute(ctx, Add(secretPath(spec.Service), secretAttrs(spec)))
		if err != nil {
			return nil, err
		}
		result := &CreateResult{SecretID: retID(rows)}

		if pkg != nil {
			queue := QueueRuleFor(spec.Username, pkg)
			rows, err := exec.Execute(ctx, Add(pathQueueSimple, queueAttrs(queue)))
			if err != nil {
				return nil, err
			}
			result.QueueID = retID(rows)
			result.Queue = &queue
		}

		return result, nil
	})
}

// UpdateSecret overwrites the attributes of an existing secret. When
// spec.CurrentName is set the secret is renamed and its queue follows.
func (c *Client) UpdateSecret(ctx context.Context, spec SecretSpec) error {
	if err := checkService(spec.Service); err != nil {
		return err
	}

	_, err := c.gw.Do(ctx, func(ctx context.Context, exec Executor) error {
		path := secretPath(spec.Service)
		current := spec.lookupName()
		row, err := findFirst(ctx, exec, path, "name", current)
		if err != nil {
			return err
		}
		if _, err := exec.Execute(ctx, Set(path, row[".id"], secretAttrs(spec))); err != nil {
			return err
		}
		if current == spec.Username {
			return nil
		}

		queues, err := exec.Execute(ctx, Print(pathQueueSimple, "name", QueueName(current)))
		if err != nil || len(queues) == 0 {
			return err
		}
		_, err = exec.Execute(ctx, Set(pathQueueSimple, queues[0][".id"], map[string]string{
			"name":   QueueName(spec.Username),
			"target": spec.Username,
		}))
		return err
	})
	return err
}

// ToggleSecret enables or disables a secret
func (c *Client) ToggleSecret(ctx context.Context, username string, service models.ServiceType, enable bool) error {
	if err := checkService(service); err != nil {
		return err
	}

	_, err := c.gw.Do(ctx, func(ctx context.Context, exec Executor) error {
		path := secretPath(service)
		row, err := findFirst(ctx, exec, path, "name", username)
		if err != nil {
			return err
		}
		_, err = exec.Execute(ctx, Set(path, row[".id"], map[string]string{"disabled": formatBool(!enable)}))
		return err
	})
	return err
}

// DeleteSecret removes a secret and its queue when one exists
func (c *Client) DeleteSecret(ctx context.Context, username string, service models.ServiceType) error {
	if err := checkService(service); err != nil {
		return err
	}

	_, err := c.gw.Do(ctx, func(ctx context.Context, exec Executor) error {
		path := secretPath(service)
		row, err := findFirst(ctx, exec, path, "name", username)
		if err != nil {
			return err
		}
		if _, err := exec.Execute(ctx, Remove(path, row[".id"])); err != nil {
			return err
		}

		queues, err := exec.Execute(ctx, Print(pathQueueSimple, "name", QueueName(username)))
		if err != nil {
			return err
		}
		if len(queues) > 0 {
			_, err = exec.Execute(ctx, Remove(pathQueueSimple, queues[0][".id"]))
		}
		return err
	})
	return err
}

// DisconnectActiveSession drops the live session of a user
func (c *Client) DisconnectActiveSession(ctx context.Context, username string, service models.ServiceType) error {
	if err := checkService(service); err != nil {
		return err
	}

	_, err := c.gw.Do(ctx, func(ctx context.Context, exec Executor) error {
		path, key := activePath(service)
		row, err := findFirst(ctx, exec, path, key, username)
		if err != nil {
			return err
		}
		_, err = exec.Execute(ctx, Remove(path, row[".id"]))
		return err
	})
	return err
}

// ListSecrets reads PPP secrets or Hotspot users
func (c *Client) ListSecrets(ctx context.Context, service models.ServiceType) ([]RemoteSecret, error) {
	if err := checkService(service); err != nil {
		return nil, err
	}

	return Run(ctx, c.gw, func(ctx context.Context, exec Executor) ([]RemoteSecret, error) {
		rows, err := exec.Execute(ctx, Print(secretPath(service)))
		if err != nil {
			return nil, err
		}
		out := make([]RemoteSecret, 0, len(rows))
		for _, row := range rows {
			out = append(out, toRemoteSecret(row, service))
		}
		return out, nil
	})
}

// GetUserDetail returns the live session of a user with its stored
// profile. An offline user is ErrNotFound.
func (c *Client) GetUserDetail(ctx context.Context, username string, service models.ServiceType) (*UserDetail, error) {
	if err := checkService(service); err != nil {
		return nil, err
	}

	return Run(ctx, c.gw, func(ctx context.Context, exec Executor) (*UserDetail, error) {
		path, key := activePath(service)
		active, err := findFirst(ctx, exec, path, key, username)
		if err != nil {
			return nil, err
		}

		stored, err := exec.Execute(ctx, Print(secretPath(service), "name", username))
		if err != nil {
			return nil, err
		}
		var profile Row
		if len(stored) > 0 {
			profile = stored[0]
		}

		return toUserDetail(username, service, active, profile), nil
	})
}

// TestConnection reads the system resource and reports which transport
// answered.
func (c *Client) TestConnection(ctx context.Context) (*ConnectionReport, error) {
	var resource *SystemResource
	name, err := c.gw.Do(ctx, func(ctx context.Context, exec Executor) error {
		r, err := systemResource(ctx, exec)
		if err != nil {
			return err
		}
		resource = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &ConnectionReport{
		Connected: true,
		Transport: name,
		Message:   "Connection successful via " + name,
		System:    resource,
	}, nil
}

// SyncPackage creates or updates the router profile carrying the package
// rate limit.
func (c *Client) SyncPackage(ctx context.Context, pkg *models.Package) (*PackageSyncResult, error) {
	if err := checkService(pkg.Type); err != nil {
		return nil, err
	}

	return Run(ctx, c.gw, func(ctx context.Context, exec Executor) (*PackageSyncResult, error) {
		path := profilePath(pkg.Type)
		name := pkg.ProfileName()
		attrs := map[string]string{"name": name, "rate-limit": pkg.Bandwidth}

		rows, err := exec.Execute(ctx, Print(path, "name", name))
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			if _, err := exec.Execute(ctx, Set(path, rows[0][".id"], attrs)); err != nil {
				return nil, err
			}
			return &PackageSyncResult{Profile: name}, nil
		}

		if _, err := exec.Execute(ctx, Add(path, attrs)); err != nil {
			return nil, err
		}
		return &PackageSyncResult{Profile: name, Created: true}, nil
	})
}
