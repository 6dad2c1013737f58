package routerostest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// Device is an in-memory router holding attribute tables keyed by menu path
// (for example "/ppp/secret"). It answers the binary protocol through
// Handler and the REST API through ServeHTTP, so one fake can back both
// transports.
type Device struct {
	Username string
	Password string

	mu         sync.Mutex
	tables     map[string][]map[string]string
	singletons map[string]bool
	rejected   map[string]string
	nextID     int
	calls      []string
}

// NewDevice creates an empty device accepting the given credentials
func NewDevice(username, password string) *Device {
	return &Device{
		Username:   username,
		Password:   password,
		tables:     make(map[string][]map[string]string),
		singletons: make(map[string]bool),
		rejected:   make(map[string]string),
	}
}

// Seed appends rows to the table at path, assigning .id when missing
func (d *Device) Seed(path string, rows ...map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, row := range rows {
		d.insertLocked(path, row)
	}
}

// SeedSingleton sets a one-row menu such as /system/resource. REST answers
// it with a JSON object instead of an array.
func (d *Device) SeedSingleton(path string, row map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.singletons[path] = true
	d.tables[path] = []map[string]string{copyRow(row)}
}

// Reject makes every command on path fail with message, as a router
// without the package providing the menu does
func (d *Device) Reject(path, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rejected[path] = message
}

func (d *Device) rejection(path string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	msg, ok := d.rejected[path]
	return msg, ok
}

// Rows returns a copy of the table at path
func (d *Device) Rows(path string) []map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]map[string]string, 0, len(d.tables[path]))
	for _, row := range d.tables[path] {
		out = append(out, copyRow(row))
	}
	return out
}

// Set overwrites attributes of the row with id at path
func (d *Device) Set(path, id string, attrs map[string]string) error {
	_, err := d.set(path, id, copyRow(attrs))
	return err
}

// Calls returns "binary <command>" and "rest <METHOD> <path>" entries in order
func (d *Device) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	copy(out, d.calls)
	return out
}

func (d *Device) record(call string) {
	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.mu.Unlock()
}

func (d *Device) insertLocked(path string, row map[string]string) string {
	row = copyRow(row)
	if row[".id"] == "" {
		d.nextID++
		row[".id"] = fmt.Sprintf("*%X", d.nextID)
	}
	d.tables[path] = append(d.tables[path], row)
	return row[".id"]
}

func copyRow(row map[string]string) map[string]string {
	out := make(map[string]string, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

type deviceError struct {
	status  int
	message string
}

func (e *deviceError) Error() string { return e.message }

func (d *Device) print(path string, filter map[string]string) []map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []map[string]string
	for _, row := range d.tables[path] {
		if matches(row, filter) {
			out = append(out, copyRow(row))
		}
	}
	return out
}

func matches(row, filter map[string]string) bool {
	for k, v := range filter {
		if row[k] != v {
			return false
		}
	}
	return true
}

func (d *Device) add(path string, attrs map[string]string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if name := attrs["name"]; name != "" {
		for _, row := range d.tables[path] {
			if row["name"] == name {
				return "", &deviceError{http.StatusBadRequest, "failure: entry with the same name already exists"}
			}
		}
	}
	delete(attrs, ".id")
	return d.insertLocked(path, attrs), nil
}

func (d *Device) set(path, id string, attrs map[string]string) (map[string]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, row := range d.tables[path] {
		if row[".id"] == id {
			for k, v := range attrs {
				if k != ".id" {
					row[k] = v
				}
			}
			return copyRow(row), nil
		}
	}
	return nil, &deviceError{http.StatusNotFound, "no such item"}
}

func (d *Device) remove(path, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows := d.tables[path]
	for i, row := range rows {
		if row[".id"] == id {
			d.tables[path] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return &deviceError{http.StatusNotFound, "no such item"}
}

// Handler answers binary protocol sentences against the tables
func (d *Device) Handler() Handler {
	return func(words []string) [][]string {
		if len(words) == 0 {
			return nil
		}
		command := words[0]
		d.record("binary " + command)

		attrs := make(map[string]string)
		filter := make(map[string]string)
		for _, word := range words[1:] {
			switch {
			case strings.HasPrefix(word, "="):
				k, v, _ := strings.Cut(word[1:], "=")
				attrs[k] = v
			case strings.HasPrefix(word, "?"):
				k, v, _ := strings.Cut(word[1:], "=")
				filter[k] = v
			}
		}

		if command == "/login" {
			if attrs["name"] != d.Username || attrs["password"] != d.Password {
				return [][]string{Trap("invalid user name or password (6)"), Done()}
			}
			return [][]string{Done()}
		}

		i := strings.LastIndexByte(command, '/')
		if i <= 0 {
			return [][]string{Trap("no such command prefix"), Done()}
		}
		path, verb := command[:i], command[i+1:]
		if msg, ok := d.rejection(path); ok {
			return [][]string{Trap(msg), Done()}
		}

		switch verb {
		case "print":
			var out [][]string
			for _, row := range d.print(path, filter) {
				out = append(out, Row(row))
			}
			return append(out, Done())
		case "add":
			id, err := d.add(path, attrs)
			if err != nil {
				return [][]string{Trap(err.Error()), Done()}
			}
			return [][]string{Done("=ret=" + id)}
		case "set":
			if _, err := d.set(path, attrs[".id"], attrs); err != nil {
				return [][]string{Trap(err.Error()), Done()}
			}
			return [][]string{Done()}
		case "remove":
			if err := d.remove(path, attrs[".id"]); err != nil {
				return [][]string{Trap(err.Error()), Done()}
			}
			return [][]string{Done()}
		default:
			return [][]string{Trap("no such command"), Done()}
		}
	}
}

// ServeHTTP answers the REST resource API under /rest
func (d *Device) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.record("rest " + r.Method + " " + strings.TrimPrefix(r.URL.Path, "/rest"))

	user, pass, ok := r.BasicAuth()
	if !ok || user != d.Username || pass != d.Password {
		writeRESTError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	path := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/rest"), "/")
	for _, suffix := range []string{"/add", "/remove"} {
		if msg, ok := d.rejection(strings.TrimSuffix(path, suffix)); ok {
			writeRESTError(w, http.StatusBadRequest, msg)
			return
		}
	}

	switch r.Method {
	case http.MethodGet:
		filter := make(map[string]string)
		for k, v := range r.URL.Query() {
			filter[k] = v[0]
		}
		rows := d.print(path, filter)

		d.mu.Lock()
		singleton := d.singletons[path]
		d.mu.Unlock()
		if singleton {
			if len(rows) == 0 {
				writeRESTError(w, http.StatusNotFound, "no such command or directory")
				return
			}
			writeJSON(w, http.StatusOK, rows[0])
			return
		}
		if rows == nil {
			rows = []map[string]string{}
		}
		writeJSON(w, http.StatusOK, rows)

	case http.MethodPost:
		body, err := decodeBody(r)
		if err != nil {
			writeRESTError(w, http.StatusBadRequest, err.Error())
			return
		}
		switch {
		case strings.HasSuffix(path, "/add"):
			id, err := d.add(strings.TrimSuffix(path, "/add"), body)
			if err != nil {
				writeDeviceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"ret": id})
		case strings.HasSuffix(path, "/remove"):
			if err := d.remove(strings.TrimSuffix(path, "/remove"), body[".id"]); err != nil {
				writeDeviceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, []map[string]string{})
		default:
			writeRESTError(w, http.StatusBadRequest, "no such command")
		}

	case http.MethodPatch:
		i := strings.LastIndexByte(path, '/')
		if i <= 0 {
			writeRESTError(w, http.StatusBadRequest, "missing item id")
			return
		}
		body, err := decodeBody(r)
		if err != nil {
			writeRESTError(w, http.StatusBadRequest, err.Error())
			return
		}
		row, err := d.set(path[:i], path[i+1:], body)
		if err != nil {
			writeDeviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, row)

	default:
		writeRESTError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func decodeBody(r *http.Request) (map[string]string, error) {
	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}

	out := make(map[string]string, len(raw))
	for k, value := range raw {
		switch v := value.(type) {
		case string:
			out[k] = v
		case bool:
			if v {
				out[k] = "true"
			} else {
				out[k] = "false"
			}
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out, nil
}

func writeDeviceError(w http.ResponseWriter, err error) {
	if de, ok := err.(*deviceError); ok {
		writeRESTError(w, de.status, de.message)
		return
	}
	writeRESTError(w, http.StatusInternalServerError, err.Error())
}

func writeRESTError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error":   status,
		"message": http.StatusText(status),
		"detail":  message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
