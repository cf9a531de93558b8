package cache

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

const (
	placeholderCommand    = "{{ COMMAND }}"
	placeholderExpression = "{{ EXPRESSION }}"
)

// CommandRunner executes one purge command given as argv.
type CommandRunner interface {
	Run(ctx context.Context, argv []string) error
}

// ExecRunner runs purge commands as child processes.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("purge: empty command")
	}
	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("purge %s: %w: %s", argv[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// PurgeArgs expands a server template such as
// `varnishadm -T 127.0.0.1:2000 {{ COMMAND }} "{{ EXPRESSION }}"` into argv.
// Placeholders are substituted after splitting, so an expression stays one
// argument and never reaches a shell.
func PurgeArgs(template, command, expression string) []string {
	normalized := strings.NewReplacer(
		placeholderCommand, "\x00c\x00",
		placeholderExpression, "\x00e\x00",
	).Replace(template)
	fields := strings.Fields(normalized)
	argv := make([]string, 0, len(fields))
	for _, field := range fields {
		field = strings.Trim(field, `"'`)
		field = strings.ReplaceAll(field, "\x00c\x00", command)
		field = strings.ReplaceAll(field, "\x00e\x00", expression)
		argv = append(argv, field)
	}
	return argv
}

// HeaderPrefix prefixes the response headers carrying cache keys, which
// purge expressions match on.
const HeaderPrefix = "X-Pagecms-Cache-"

// HeaderName returns the response header carrying a key.
func HeaderName(key string) string {
	return HeaderPrefix + strings.ReplaceAll(key, "_", "-")
}

// PurgeExpression matches responses carrying every key in keys. An empty map
// matches every fragment.
func PurgeExpression(keys Keys) string {
	if len(keys) == 0 {
		return "obj.http." + strings.ToLower(HeaderName("manager")) + " ~ ."
	}
	flat := StringKeys(keys)
	names := make([]string, 0, len(flat))
	for name := range flat {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("obj.http.%s ~ %s", strings.ToLower(HeaderName(name)), flat[name]))
	}
	return strings.Join(parts, " && ")
}
