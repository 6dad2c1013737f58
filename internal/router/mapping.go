package router

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/netbill/netbill-server/internal/models"
)

// decodeRows turns a REST response body into rows. Menus holding a single
// item (such as /system/resource) answer with an object instead of an array.
func decodeRows(body []byte) ([]Row, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid json body")
	}

	result := gjson.ParseBytes(body)
	switch {
	case result.IsArray():
		var rows []Row
		for _, item := range result.Array() {
			if !item.IsObject() {
				return nil, fmt.Errorf("unexpected %s in result array", item.Type)
			}
			rows = append(rows, objectRow(item))
		}
		return rows, nil
	case result.IsObject():
		return []Row{objectRow(result)}, nil
	case result.Type == gjson.Null, strings.TrimSpace(string(body)) == "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected %s body", result.Type)
	}
}

func objectRow(obj gjson.Result) Row {
	row := make(Row)
	obj.ForEach(func(key, value gjson.Result) bool {
		row[key.String()] = value.String()
		return true
	})
	return row
}

// restErrorMessage extracts the router's message from an error body
func restErrorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"detail", "message"} {
			if v := gjson.GetBytes(body, path); v.Exists() && v.String() != "" {
				return v.String()
			}
		}
	}
	return strings.TrimSpace(string(body))
}

func parseUint(s string) uint64 {
	n, _ := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	return n
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes":
		return true
	default:
		return false
	}
}

func formatBool(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// optionalFloat parses s, returning nil when the value is absent
func optionalFloat(row Row, key string) *float64 {
	v, ok := row[key]
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

// ParseUptime converts a duration such as "1w2d3h4m5s" or the older
// "2d03:04:05" into seconds.
func ParseUptime(s string) int64 {
	s = strings.TrimSpace(s)
	var total, n int64
	var digits bool

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			n = n*10 + int64(c-'0')
			digits = true
			continue
		case c == ':':
			return total + parseClock(s[i-countDigits(s[:i]):])
		}

		if !digits {
			continue
		}
		switch c {
		case 'w':
			total += n * 7 * 86400
		case 'd':
			total += n * 86400
		case 'h':
			total += n * 3600
		case 'm':
			if i+1 < len(s) && s[i+1] == 's' {
				i++
			} else {
				total += n * 60
			}
		case 's':
			total += n
		}
		n, digits = 0, false
	}

	return total
}

func countDigits(s string) int {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	return len(s) - i
}

// parseClock parses "hh:mm:ss"
func parseClock(s string) int64 {
	parts := strings.Split(s, ":")
	var total int64
	for _, p := range parts {
		v, _ := strconv.ParseInt(p, 10, 64)
		total = total*60 + v
	}
	return total
}

// FormatUptime renders seconds as "{d}d {h}h {m}m"
func FormatUptime(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	d := seconds / 86400
	h := seconds % 86400 / 3600
	m := seconds % 3600 / 60
	return fmt.Sprintf("%dd %dh %dm", d, h, m)
}

// FormatBytes renders a byte count in binary units with two decimals
func FormatBytes(n uint64) string {
	if n == 0 {
		return "0 B"
	}
	sizes := []string{"B", "KB", "MB", "GB", "TB"}
	v := float64(n)
	i := 0
	for v >= 1024 && i < len(sizes)-1 {
		v /= 1024
		i++
	}
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64) + " " + sizes[i]
}

// formatCount renders n with thousands separators
func formatCount(n uint64) string {
	s := strconv.FormatUint(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// MemoryUsagePercent returns round((total-free)/total*100)
func MemoryUsagePercent(total, free uint64) int {
	if total == 0 || free > total {
		return 0
	}
	return int(math.Round(float64(total-free) / float64(total) * 100))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func toSystemResource(resource, identity Row, temperature *float64) *SystemResource {
	total := parseUint(resource["total-memory"])
	free := parseUint(resource["free-memory"])
	uptime := ParseUptime(resource["uptime"])

	return &SystemResource{
		CPULoad:            parseInt(resource["cpu-load"]),
		TotalMemory:        total,
		FreeMemory:         free,
		MemoryUsagePercent: MemoryUsagePercent(total, free),
		UptimeSeconds:      uptime,
		Uptime:             FormatUptime(uptime),
		Version:            resource["version"],
		BoardName:          resource["board-name"],
		Architecture:       resource["architecture-name"],
		Identity:           orDefault(identity["name"], "Unknown"),
		Temperature:        temperature,
	}
}

// healthTemperature finds the temperature in /system/health rows. Newer
// firmware returns one row per sensor with name and value; older firmware
// returns a single row with a temperature attribute.
func healthTemperature(rows []Row) *float64 {
	for _, row := range rows {
		switch row["name"] {
		case "temperature", "cpu-temperature", "board-temperature1":
			if t := optionalFloat(row, "value"); t != nil {
				return t
			}
		}
		if t := optionalFloat(row, "temperature"); t != nil {
			return t
		}
	}
	return nil
}

func toInterface(row Row) Interface {
	return Interface{
		ID:         row[".id"],
		Name:       row["name"],
		Type:       row["type"],
		MACAddress: row["mac-address"],
		Comment:    row["comment"],
		Running:    parseBool(row["running"]),
		Disabled:   parseBool(row["disabled"]),
		RxBytes:    parseUint(row["rx-byte"]),
		TxBytes:    parseUint(row["tx-byte"]),
	}
}

func toPPPActive(row Row) ActiveSession {
	uptime := ParseUptime(row["uptime"])
	return ActiveSession{
		ID:            row[".id"],
		Username:      row["name"],
		Type:          models.ServicePPPoE,
		Address:       row["address"],
		MACAddress:    row["caller-id"],
		Uptime:        FormatUptime(uptime),
		UptimeSeconds: uptime,
		RxBytes:       parseUint(row["rx-byte"]),
		TxBytes:       parseUint(row["tx-byte"]),
		RxRate:        optionalFloat(row, "rx-rate"),
		TxRate:        optionalFloat(row, "tx-rate"),
	}
}

func toHotspotActive(row Row) ActiveSession {
	uptime := ParseUptime(row["uptime"])
	return ActiveSession{
		ID:            row[".id"],
		Username:      row["user"],
		Type:          models.ServiceHotspot,
		Address:       row["address"],
		MACAddress:    row["mac-address"],
		Uptime:        FormatUptime(uptime),
		UptimeSeconds: uptime,
		RxBytes:       parseUint(row["bytes-in"]),
		TxBytes:       parseUint(row["bytes-out"]),
		RxRate:        optionalFloat(row, "rx-rate"),
		TxRate:        optionalFloat(row, "tx-rate"),
	}
}

func toRemoteSecret(row Row, service models.ServiceType) RemoteSecret {
	remote := row["remote-address"]
	if service == models.ServiceHotspot {
		remote = row["address"]
	}
	return RemoteSecret{
		ID:            row[".id"],
		Username:      row["name"],
		Password:      row["password"],
		Service:       service,
		Profile:       row["profile"],
		LocalAddress:  row["local-address"],
		RemoteAddress: remote,
		Comment:       row["comment"],
		Disabled:      parseBool(row["disabled"]),
	}
}

// secretAttrs builds the attributes written by add and set
func secretAttrs(spec SecretSpec) map[string]string {
	attrs := map[string]string{
		"name":     spec.Username,
		"password": spec.Password,
		"profile":  orDefault(spec.Profile, "default"),
		"comment":  spec.Comment,
		"disabled": formatBool(spec.Disabled),
	}
	if spec.Service != models.ServiceHotspot {
		attrs["service"] = "pppoe"
		if spec.LocalAddress != "" {
			attrs["local-address"] = spec.LocalAddress
		}
		if spec.RemoteAddress != "" {
			attrs["remote-address"] = spec.RemoteAddress
		}
	} else if spec.RemoteAddress != "" {
		attrs["address"] = spec.RemoteAddress
	}
	return attrs
}

func queueAttrs(q QueueRule) map[string]string {
	return map[string]string{
		"name":        q.Name,
		"target":      q.Target,
		"max-limit":   q.MaxLimit,
		"burst-limit": q.BurstLimit,
		"priority":    strconv.Itoa(q.Priority),
	}
}

func toUserDetail(username string, service models.ServiceType, active Row, stored Row) *UserDetail {
	detail := &UserDetail{
		Username: orDefault(orDefault(active["name"], active["user"]), username),
		Type:     string(service),
		Session: SessionDetail{
			ID:         active[".id"],
			Address:    orDefault(active["address"], "N/A"),
			MACAddress: orDefault(orDefault(active["caller-id"], active["mac-address"]), "N/A"),
			Uptime:     FormatUptime(ParseUptime(active["uptime"])),
			Encoding:   orDefault(active["encoding"], "N/A"),
			Service:    orDefault(active["service"], "N/A"),
		},
		Bandwidth: BandwidthUsage{
			RxRate:    FormatBytes(parseUint(active["rx-rate"])),
			TxRate:    FormatBytes(parseUint(active["tx-rate"])),
			RxBytes:   FormatBytes(parseUint(orDefault(active["rx-byte"], active["bytes-in"]))),
			TxBytes:   FormatBytes(parseUint(orDefault(active["tx-byte"], active["bytes-out"]))),
			RxPackets: formatCount(parseUint(orDefault(active["rx-packet"], active["packets-in"]))),
			TxPackets: formatCount(parseUint(orDefault(active["tx-packet"], active["packets-out"]))),
		},
	}

	if stored != nil {
		detail.Profile = &ProfileDetail{
			Profile:  orDefault(orDefault(stored["profile"], stored["local-address"]), "N/A"),
			Service:  orDefault(stored["service"], "N/A"),
			LimitAt:  orDefault(stored["limit-at"], "N/A"),
			MaxLimit: orDefault(stored["max-limit"], "N/A"),
			Comment:  orDefault(stored["comment"], "No comment"),
		}
	}

	return detail
}
