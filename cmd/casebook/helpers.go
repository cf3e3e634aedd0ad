// Shared helpers for casebook CLI commands.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mesh-intelligence/casebook/internal/paths"
	"github.com/mesh-intelligence/casebook/internal/session"
	"github.com/mesh-intelligence/casebook/pkg/casebook"
	"github.com/mesh-intelligence/casebook/pkg/types"
)

// registry collects the metrics of the last opened repository for
// serve-metrics.
var registry *prometheus.Registry

// openCasebook opens the repository described by the loaded config. The
// caller must Close it.
func openCasebook(ctx context.Context) (*casebook.Casebook, error) {
	registry = prometheus.NewRegistry()
	cb, err := casebook.Open(ctx, appConfig,
		casebook.WithLogger(logger),
		casebook.WithRegisterer(registry),
		casebook.WithOverrides(paths.OverridesFile(configDir)),
	)
	if err != nil {
		return nil, fmt.Errorf("open casebook: %w", err)
	}
	return cb, nil
}

// exitCode maps an error to the process exit status. Errors the user can
// fix by changing the invocation exit with exitUserError.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrValidation),
		errors.Is(err, types.ErrUnknownEntity),
		errors.Is(err, types.ErrInvalidID),
		errors.Is(err, types.ErrInvalidFilter),
		errors.Is(err, session.ErrInvalidCredentials),
		errors.Is(err, session.ErrNoSession),
		errors.Is(err, errUsage):
		return exitUserError
	default:
		return exitSysError
	}
}

var errUsage = errors.New("invalid arguments")

// parseValue interprets a command-line value as JSON when it parses,
// otherwise as a plain string.
func parseValue(raw string) any {
	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return raw
	}
	return parsed
}

// parseFields reads record fields from args. A single argument starting
// with "{" is a JSON object; otherwise every argument is key=value.
func parseFields(args []string) (map[string]any, error) {
	if len(args) == 1 && strings.HasPrefix(strings.TrimSpace(args[0]), "{") {
		var fields map[string]any
		if err := json.Unmarshal([]byte(args[0]), &fields); err != nil {
			return nil, fmt.Errorf("%w: parsing JSON fields: %v", errUsage, err)
		}
		return fields, nil
	}
	fields := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q is not key=value", errUsage, arg)
		}
		fields[key] = parseValue(value)
	}
	return fields, nil
}

// parseFilter reads filter conditions from key=value args. A value with
// commas, or a JSON array, becomes a membership condition.
func parseFilter(args []string) (types.Filter, error) {
	filter := make(types.Filter, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: invalid filter %q (expected key=value)", errUsage, arg)
		}
		switch {
		case strings.HasPrefix(value, "["):
			var list []any
			if err := json.Unmarshal([]byte(value), &list); err != nil {
				return nil, fmt.Errorf("%w: filter %q: %v", errUsage, key, err)
			}
			filter[key] = list
		case strings.Contains(value, ","):
			filter[key] = strings.Split(value, ",")
		default:
			filter[key] = parseValue(value)
		}
	}
	return filter, nil
}

// readFieldsFile reads a JSON array of field objects from path, or from
// stdin when path is "-".
func readFieldsFile(path string) ([]map[string]any, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var items []map[string]any
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", errUsage, path, err)
	}
	return items, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// printRecord writes one record as JSON, or as sorted key: value lines.
func printRecord(w io.Writer, rec types.Record) error {
	if flagJSON {
		return printJSON(w, rec)
	}
	m := rec.Map()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%-18s %s\n", k+":", types.TextOf(m[k]))
	}
	fmt.Fprintf(w, "%-18s %s\n", "source:", rec.Source)
	return nil
}

// printRecords writes records as a JSON array, or one summary line each.
func printRecords(w io.Writer, records []types.Record) error {
	if flagJSON {
		if records == nil {
			records = []types.Record{}
		}
		return printJSON(w, records)
	}
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.ID, rec.Source, rec.Text(types.FieldCreatedAt), label(rec))
	}
	return nil
}

// label picks the field that best names a record in list output.
func label(rec types.Record) string {
	for _, f := range []string{"name", "debtor_name", "email", "activity_type", "user_id", "case_id"} {
		if s := rec.Text(f); s != "" {
			return s
		}
	}
	return ""
}
