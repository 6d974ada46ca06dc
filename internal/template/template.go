// Package template provides per-host command templating for omnihost.
package template

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sagarmemane135/omnihost/internal/inventory"
)

// Context is the data available to command templates.
type Context struct {
	Host    string // Host name from the inventory
	Address string // Dial address (defaults to the name)
	User    string
	Port    int
}

// IsTemplate reports whether a command contains template syntax.
func IsTemplate(command string) bool {
	return strings.Contains(command, "{{") && strings.Contains(command, "}}")
}

// Expand renders a command for one target. Commands without template syntax
// are returned unchanged, so every dispatch path can call this
// unconditionally.
func Expand(command string, host inventory.Host) (string, error) {
	if !IsTemplate(command) {
		return command, nil
	}

	tmpl, err := template.New("command").Funcs(templateFuncs()).Parse(command)
	if err != nil {
		return "", fmt.Errorf("failed to parse command template: %w", err)
	}

	address := host.Address
	if address == "" {
		address = host.Name
	}
	port := host.Port
	if port == 0 {
		port = 22
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, Context{
		Host:    host.Name,
		Address: address,
		User:    host.User,
		Port:    port,
	}); err != nil {
		return "", fmt.Errorf("failed to expand command template for %s: %w", host.Name, err)
	}

	return buf.String(), nil
}

// templateFuncs returns the functions available inside command templates.
func templateFuncs() template.FuncMap {
	titleCaser := cases.Title(language.English)
	return template.FuncMap{
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"title": titleCaser.String,
	}
}
