package router

import (
	"github.com/netbill/netbill-server/internal/models"
)

// Verb is the action applied to a menu
type Verb string

const (
	VerbPrint  Verb = "print"
	VerbAdd    Verb = "add"
	VerbSet    Verb = "set"
	VerbRemove Verb = "remove"
)

// Row is one record returned by the router, attribute name to value
type Row map[string]string

// Command addresses one menu, for example Path "/ppp/secret" with VerbPrint
type Command struct {
	Path  string
	Verb  Verb
	ID    string
	Attrs map[string]string
	Query map[string]string
}

// Print builds a print command filtered by query pairs k1, v1, k2, v2...
func Print(path string, query ...string) Command {
	cmd := Command{Path: path, Verb: VerbPrint}
	if len(query) > 0 {
		cmd.Query = make(map[string]string, len(query)/2)
		for i := 0; i+1 < len(query); i += 2 {
			cmd.Query[query[i]] = query[i+1]
		}
	}
	return cmd
}

// Add builds an add command
func Add(path string, attrs map[string]string) Command {
	return Command{Path: path, Verb: VerbAdd, Attrs: attrs}
}

// Set builds a set command for the row with id
func Set(path, id string, attrs map[string]string) Command {
	return Command{Path: path, Verb: VerbSet, ID: id, Attrs: attrs}
}

// Remove builds a remove command for the row with id
func Remove(path, id string) Command {
	return Command{Path: path, Verb: VerbRemove, ID: id}
}

// String returns the binary command word, for logs
func (c Command) String() string {
	return c.Path + "/" + string(c.Verb)
}

// Menu paths
const (
	pathPPPSecret      = "/ppp/secret"
	pathPPPActive      = "/ppp/active"
	pathPPPProfile     = "/ppp/profile"
	pathHotspotUser    = "/ip/hotspot/user"
	pathHotspotActive  = "/ip/hotspot/active"
	pathHotspotProfile = "/ip/hotspot/user/profile"
	pathQueueSimple    = "/queue/simple"
	pathInterface      = "/interface"
	pathSystemResource = "/system/resource"
	pathSystemIdentity = "/system/identity"
	pathSystemHealth   = "/system/health"
)

func secretPath(service models.ServiceType) string {
	if service == models.ServiceHotspot {
		return pathHotspotUser
	}
	return pathPPPSecret
}

// activePath returns the active sessions menu and the attribute holding
// the user name in it
func activePath(service models.ServiceType) (string, string) {
	if service == models.ServiceHotspot {
		return pathHotspotActive, "user"
	}
	return pathPPPActive, "name"
}

func profilePath(service models.ServiceType) string {
	if service == models.ServiceHotspot {
		return pathHotspotProfile
	}
	return pathPPPProfile
}

// QueueName returns the simple queue name bound to a user
func QueueName(username string) string {
	return username + "-queue"
}

// SystemResource is a snapshot of router health
type SystemResource struct {
	CPULoad            int      `json:"cpuLoad"`
	TotalMemory        uint64   `json:"totalMemory"`
	FreeMemory         uint64   `json:"freeMemory"`
	MemoryUsagePercent int      `json:"memoryUsagePercent"`
	UptimeSeconds      int64    `json:"uptimeSeconds"`
	Uptime             string   `json:"uptime"`
	Version            string   `json:"version"`
	BoardName          string   `json:"boardName"`
	Architecture       string   `json:"architecture,omitempty"`
	Identity           string   `json:"identity"`
	Temperature        *float64 `json:"temperature"`
}

// ActiveSession is one online PPP or Hotspot user
type ActiveSession struct {
	ID            string             `json:"id"`
	Username      string             `json:"username"`
	Type          models.ServiceType `json:"type"`
	Address       string             `json:"address"`
	MACAddress    string             `json:"macAddress"`
	Uptime        string             `json:"uptime"`
	UptimeSeconds int64              `json:"uptimeSeconds"`
	RxBytes       uint64             `json:"rxBytes"`
	TxBytes       uint64             `json:"txBytes"`
	RxRate        *float64           `json:"rxRate"`
	TxRate        *float64           `json:"txRate"`
}

// Interface is a router network interface with its byte counters
type Interface struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	MACAddress string `json:"macAddress,omitempty"`
	Comment    string `json:"comment,omitempty"`
	Running    bool   `json:"running"`
	Disabled   bool   `json:"disabled"`
	RxBytes    uint64 `json:"rxBytes"`
	TxBytes    uint64 `json:"txBytes"`
}

// SecretSpec describes a credential to push to the router
type SecretSpec struct {
	Username      string
	Password      string
	Service       models.ServiceType
	Profile       string
	LocalAddress  string
	RemoteAddress string
	Comment       string
	Disabled      bool
	// CurrentName is the name on the router when it differs from Username,
	// as during a rename
	CurrentName string
}

// lookupName returns the name the router knows the secret by
func (s SecretSpec) lookupName() string {
	if s.CurrentName != "" {
		return s.CurrentName
	}
	return s.Username
}

// SpecFromSecret builds a SecretSpec from a stored secret
func SpecFromSecret(s *models.Secret) SecretSpec {
	return SecretSpec{
		Username:      s.Username,
		Password:      s.Password,
		Service:       s.Service,
		Profile:       s.Profile,
		LocalAddress:  s.LocalAddress,
		RemoteAddress: s.RemoteAddress,
		Comment:       s.Comment,
		Disabled:      s.Disabled,
	}
}

// QueueRule is a simple queue limiting one user
type QueueRule struct {
	Name       string `json:"name"`
	Target     string `json:"target"`
	MaxLimit   string `json:"maxLimit"`
	BurstLimit string `json:"burstLimit"`
	Priority   int    `json:"priority"`
}

// QueueRuleFor derives the queue of username from a package
func QueueRuleFor(username string, pkg *models.Package) QueueRule {
	return QueueRule{
		Name:       QueueName(username),
		Target:     username,
		MaxLimit:   pkg.Bandwidth,
		BurstLimit: pkg.BurstLimit(),
		Priority:   pkg.QueuePriority(),
	}
}

// CreateResult reports the rows added by CreateSecret
type CreateResult struct {
	SecretID string     `json:"secretId"`
	QueueID  string     `json:"queueId,omitempty"`
	Queue    *QueueRule `json:"queue,omitempty"`
}

// RemoteSecret is a PPP secret or Hotspot user as read from the router
type RemoteSecret struct {
	ID            string             `json:"id"`
	Username      string             `json:"username"`
	Password      string             `json:"-"`
	Service       models.ServiceType `json:"service"`
	Profile       string             `json:"profile"`
	LocalAddress  string             `json:"localAddress,omitempty"`
	RemoteAddress string             `json:"remoteAddress,omitempty"`
	Comment       string             `json:"comment,omitempty"`
	Disabled      bool               `json:"disabled"`
}

// UserDetail combines the live session of a user with its stored profile
type UserDetail struct {
	Username  string         `json:"username"`
	Type      string         `json:"type"`
	Session   SessionDetail  `json:"session"`
	Bandwidth BandwidthUsage `json:"bandwidth"`
	Profile   *ProfileDetail `json:"profile"`
}

// SessionDetail describes the live session
type SessionDetail struct {
	ID         string `json:"id"`
	Address    string `json:"address"`
	MACAddress string `json:"macAddress"`
	Uptime     string `json:"uptime"`
	Encoding   string `json:"encoding"`
	Service    string `json:"service"`
}

// BandwidthUsage holds human formatted counters
type BandwidthUsage struct {
	RxRate    string `json:"rxRate"`
	TxRate    string `json:"txRate"`
	RxBytes   string `json:"rxBytes"`
	TxBytes   string `json:"txBytes"`
	RxPackets string `json:"rxPackets"`
	TxPackets string `json:"txPackets"`
}

// ProfileDetail is the stored credential side of a user
type ProfileDetail struct {
	Profile  string `json:"profile"`
	Service  string `json:"service"`
	LimitAt  string `json:"limitAt"`
	MaxLimit string `json:"maxLimit"`
	Comment  string `json:"comment"`
}

// ConnectionReport is the outcome of TestConnection
type ConnectionReport struct {
	Connected bool            `json:"connected"`
	Transport string          `json:"transport"`
	Message   string          `json:"message"`
	System    *SystemResource `json:"system,omitempty"`
}

// PackageSyncResult reports what SyncPackage changed
type PackageSyncResult struct {
	Profile string `json:"profile"`
	Created bool   `json:"created"`
}
