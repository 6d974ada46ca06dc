// Package inventory provides host, group, and alias resolution for omnihost.
package inventory

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Host represents one addressable remote target.
type Host struct {
	Name         string   `yaml:"name"`
	Address      string   `yaml:"address,omitempty"` // Defaults to Name when empty
	User         string   `yaml:"user,omitempty"`
	Port         int      `yaml:"port,omitempty"`
	IdentityFile string   `yaml:"identity_file,omitempty"`
	Tags         []string `yaml:"tags,omitempty"`
}

// Addr returns the dialable host:port address.
func (h Host) Addr() string {
	address := h.Address
	if address == "" {
		address = h.Name
	}
	port := h.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(address, strconv.Itoa(port))
}

// Inventory holds the fleet definition loaded from the inventory file.
type Inventory struct {
	Hosts         []Host              `yaml:"hosts"`
	Groups        map[string][]string `yaml:"groups,omitempty"`
	Aliases       map[string]string   `yaml:"aliases,omitempty"` // command aliases
	DefaultServer string              `yaml:"default_server,omitempty"`
}

// DefaultPath returns the default inventory file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "inventory.yaml"
	}
	return filepath.Join(home, ".omnihost", "inventory.yaml")
}

// Load reads and validates an inventory file.
func Load(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory file '%s': %w", path, err)
	}
	return Parse(data)
}

// Parse parses inventory YAML and validates host entries.
func Parse(data []byte) (*Inventory, error) {
	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("failed to parse inventory: %w", err)
	}

	seen := make(map[string]bool, len(inv.Hosts))
	for i, h := range inv.Hosts {
		if strings.TrimSpace(h.Name) == "" {
			return nil, fmt.Errorf("inventory host %d: name cannot be empty", i+1)
		}
		if seen[h.Name] {
			return nil, fmt.Errorf("inventory host '%s' defined more than once", h.Name)
		}
		seen[h.Name] = true
		if h.Port < 0 || h.Port > 65535 {
			return nil, fmt.Errorf("inventory host '%s': port %d out of valid range (1-65535)", h.Name, h.Port)
		}
	}

	for group, members := range inv.Groups {
		for _, member := range members {
			if !seen[member] {
				return nil, fmt.Errorf("group '%s' references unknown host '%s'", group, member)
			}
		}
	}

	return &inv, nil
}

// lookup returns the host entry with the given name, if defined.
func (inv *Inventory) lookup(name string) (Host, bool) {
	for _, h := range inv.Hosts {
		if h.Name == name {
			return h, true
		}
	}
	return Host{}, false
}

// CommandAlias resolves a stored command alias. The leading '@' marker is
// accepted but not required.
func (inv *Inventory) CommandAlias(name string) (string, bool) {
	name = strings.TrimPrefix(name, "@")
	cmd, ok := inv.Aliases[name]
	return cmd, ok
}

// Resolve expands a target selector into the ordered, de-duplicated host set.
// Supported selectors:
//
//	all             every host, inventory order
//	group:<name>    members of a group (bare group names also match)
//	tag:<name>      every host carrying the tag
//	a,b,c           comma-separated names, groups, tags, or ad-hoc specs
//
// Names not present in the inventory are parsed as ad-hoc "user@host:port"
// specs. First-appearance order is preserved so output ordering is stable.
func (inv *Inventory) Resolve(selector string) ([]Host, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		if inv.DefaultServer != "" {
			selector = inv.DefaultServer
		} else {
			return nil, fmt.Errorf("empty target selector")
		}
	}

	var ordered []Host
	added := make(map[string]bool)
	add := func(h Host) {
		if !added[h.Name] {
			added[h.Name] = true
			ordered = append(ordered, h)
		}
	}

	for _, part := range strings.Split(selector, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		switch {
		case part == "all":
			for _, h := range inv.Hosts {
				add(h)
			}

		case strings.HasPrefix(part, "group:"):
			if err := inv.addGroup(strings.TrimPrefix(part, "group:"), add); err != nil {
				return nil, err
			}

		case strings.HasPrefix(part, "tag:"):
			tag := strings.TrimPrefix(part, "tag:")
			matched := false
			for _, h := range inv.Hosts {
				if hasTag(h, tag) {
					add(h)
					matched = true
				}
			}
			if !matched {
				return nil, fmt.Errorf("no host carries tag '%s'", tag)
			}

		default:
			if _, isGroup := inv.Groups[part]; isGroup {
				if err := inv.addGroup(part, add); err != nil {
					return nil, err
				}
				continue
			}
			if h, ok := inv.lookup(part); ok {
				add(h)
				continue
			}
			h, err := ParseHostSpec(part)
			if err != nil {
				return nil, fmt.Errorf("unknown host '%s': %w", part, err)
			}
			add(h)
		}
	}

	if len(ordered) == 0 {
		return nil, fmt.Errorf("selector '%s' matched no hosts", selector)
	}

	return ordered, nil
}

// addGroup appends the members of a named group in declaration order.
func (inv *Inventory) addGroup(name string, add func(Host)) error {
	members, ok := inv.Groups[name]
	if !ok {
		return fmt.Errorf("unknown group '%s'", name)
	}
	for _, member := range members {
		h, ok := inv.lookup(member)
		if !ok {
			return fmt.Errorf("group '%s' references unknown host '%s'", name, member)
		}
		add(h)
	}
	return nil
}

func hasTag(h Host, tag string) bool {
	for _, t := range h.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// ParseHostSpec parses an ad-hoc host specification in the form
// "user@host:port". The host part may be an IPv6 address in brackets.
func ParseHostSpec(spec string) (Host, error) {
	h := Host{Name: spec, Port: 22}

	if strings.TrimSpace(spec) == "" {
		return h, fmt.Errorf("empty host specification")
	}

	rest := spec
	if strings.Contains(rest, "@") {
		parts := strings.SplitN(rest, "@", 2)
		h.User = parts[0]
		rest = parts[1]
	}

	var host, portStr string
	if strings.HasPrefix(rest, "[") {
		// IPv6 format: [::1]:2222
		closeBracket := strings.Index(rest, "]")
		if closeBracket == -1 {
			return h, fmt.Errorf("invalid IPv6 address format: missing closing bracket")
		}
		host = rest[1:closeBracket]
		remainder := rest[closeBracket+1:]
		if strings.HasPrefix(remainder, ":") {
			portStr = remainder[1:]
		}
	} else if strings.Contains(rest, ":") {
		parts := strings.SplitN(rest, ":", 2)
		host = parts[0]
		portStr = parts[1]
	} else {
		host = rest
	}

	if host == "" {
		return h, fmt.Errorf("host cannot be empty")
	}
	h.Name = host
	h.Address = host

	if portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return h, fmt.Errorf("invalid port number '%s': %w", portStr, err)
		}
		if port < 1 || port > 65535 {
			return h, fmt.Errorf("port number %d out of valid range (1-65535)", port)
		}
		h.Port = port
	}

	return h, nil
}
