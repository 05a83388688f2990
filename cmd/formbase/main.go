// Package main is the command-line front end for the formbase data layer.
// It wires configuration, logging, tracing, the API client, and the store,
// then dispatches one verb against the store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/formbase/formbase-go/internal/client"
	"github.com/formbase/formbase-go/internal/config"
	"github.com/formbase/formbase-go/internal/observability"
	"github.com/formbase/formbase-go/internal/query"
	"github.com/formbase/formbase-go/internal/schema"
	"github.com/formbase/formbase-go/internal/store"
	"github.com/formbase/formbase-go/model"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

const usage = `usage: formbase [-config file] <verb> [args]

verbs:
  forms list
  forms create <name> [description]
  forms update <id> <name> [description]
  forms delete <id>
  fields list <form-id>
  fields create <form-id> <name> <type> [required] [num]
  fields reorder <form-id> <id,id,...>
  records list <form-id> [-filter field:op:value ...] [-join AND|OR]
  records create <form-id> <field=value> ...
  records delete <form-id> <record-id>
`

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "formbase.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	ctx = observability.WithLogger(ctx, logger)

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "formbase", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}
	defer tracingShutdown(context.Background())

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)
	api := client.New(cfg, logger, metrics)
	st := store.New(api, cfg.Records.PageSize, logger, metrics)

	logger.Debug("starting", zap.String("version", version), zap.String("commit", commit))

	args := flag.Args()
	if len(args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	if err := dispatch(ctx, st, metrics, args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func dispatch(ctx context.Context, st *store.Store, metrics *observability.Metrics, args []string) error {
	verb := args[0] + " " + args[1]
	rest := args[2:]

	switch verb {
	case "forms list":
		st.FetchForms(ctx)
		if err := st.Err(); err != nil {
			return err
		}
		return printJSON(st.Forms())

	case "forms create":
		if len(rest) < 1 {
			return fmt.Errorf("forms create needs a name")
		}
		form, err := st.CreateForm(ctx, rest[0], strings.Join(rest[1:], " "))
		if err != nil {
			return err
		}
		return printJSON(form)

	case "forms update":
		if len(rest) < 2 {
			return fmt.Errorf("forms update needs an id and a name")
		}
		id, err := strconv.Atoi(rest[0])
		if err != nil {
			return fmt.Errorf("invalid form id %q", rest[0])
		}
		if err := requireForm(ctx, st, id); err != nil {
			return err
		}
		return st.UpdateForm(ctx, id, rest[1], strings.Join(rest[2:], " "))

	case "forms delete":
		id, err := intArg(rest, 0, "form id")
		if err != nil {
			return err
		}
		if err := requireForm(ctx, st, id); err != nil {
			return err
		}
		return st.DeleteForm(ctx, id)

	case "fields list":
		id, err := intArg(rest, 0, "form id")
		if err != nil {
			return err
		}
		st.FetchFields(ctx, id)
		if err := st.Err(); err != nil {
			return err
		}
		return printJSON(st.Fields(id))

	case "fields create":
		return createField(ctx, st, rest)

	case "fields reorder":
		id, err := intArg(rest, 0, "form id")
		if err != nil {
			return err
		}
		if len(rest) < 2 {
			return fmt.Errorf("fields reorder needs an ordered id list")
		}
		var ids []int
		for _, part := range strings.Split(rest[1], ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return fmt.Errorf("invalid field id %q", part)
			}
			ids = append(ids, n)
		}
		st.FetchFields(ctx, id)
		st.ReorderFields(ctx, id, ids)
		return printJSON(st.Fields(id))

	case "records list":
		return listRecords(ctx, st, rest)

	case "records create":
		return createRecord(ctx, st, metrics, rest)

	case "records delete":
		formID, err := intArg(rest, 0, "form id")
		if err != nil {
			return err
		}
		id, err := intArg(rest, 1, "record id")
		if err != nil {
			return err
		}
		return st.DeleteRecord(ctx, formID, id)
	}

	return fmt.Errorf("unknown verb %q", verb)
}

func createField(ctx context.Context, st *store.Store, rest []string) error {
	if len(rest) < 3 {
		return fmt.Errorf("fields create needs a form id, name, and type")
	}
	formID, err := intArg(rest, 0, "form id")
	if err != nil {
		return err
	}
	fieldType, err := model.ParseFieldType(rest[2])
	if err != nil {
		return err
	}
	in := store.FieldInput{Name: rest[1], Type: fieldType}
	for _, opt := range rest[3:] {
		switch {
		case opt == "required":
			in.Required = true
		case opt == "num":
			in.IsNum = true
		case strings.HasPrefix(opt, "options="):
			in.Options = &model.FieldOptions{
				Dropdown: strings.Split(strings.TrimPrefix(opt, "options="), ","),
			}
		}
	}
	field, err := st.CreateField(ctx, formID, in)
	if err != nil {
		return err
	}
	return printJSON(field)
}

func listRecords(ctx context.Context, st *store.Store, rest []string) error {
	formID, err := intArg(rest, 0, "form id")
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("records list", flag.ContinueOnError)
	var filters multiFlag
	fs.Var(&filters, "filter", "filter as field:op:value (repeatable)")
	join := fs.String("join", "AND", "condition join mode: AND or OR")
	if err := fs.Parse(rest[1:]); err != nil {
		return err
	}

	var conds []model.Condition
	for _, f := range filters {
		parts := strings.SplitN(f, ":", 3)
		if len(parts) != 3 {
			return fmt.Errorf("invalid filter %q, want field:op:value", f)
		}
		op, ok := model.OperatorByCode(parts[1])
		if !ok {
			return fmt.Errorf("unknown operator %q", parts[1])
		}
		conds = append(conds, model.NewCondition(parts[0], op, parts[2], false))
	}

	st.FetchRecords(ctx, formID, store.FetchRecordsOptions{
		Conditions: conds,
		Join:       query.ParseJoin(*join),
	})
	if err := st.Err(); err != nil {
		return err
	}
	return printJSON(st.Records(formID).Items)
}

func createRecord(ctx context.Context, st *store.Store, metrics *observability.Metrics, rest []string) error {
	formID, err := intArg(rest, 0, "form id")
	if err != nil {
		return err
	}

	raw := make(map[string]any, len(rest)-1)
	for _, pair := range rest[1:] {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid value %q, want field=value", pair)
		}
		raw[name] = value
	}

	st.FetchFields(ctx, formID)
	if err := st.Err(); err != nil {
		return err
	}
	fields := st.Fields(formID)

	if errs := schema.Validate(fields, raw); len(errs) > 0 {
		if metrics != nil {
			for _, f := range fields {
				if _, bad := errs[f.Name]; bad {
					metrics.ValidationFailuresTotal.WithLabelValues(string(f.Type)).Inc()
				}
			}
		}
		return fmt.Errorf("validation failed: %v", errs)
	}

	record, err := st.CreateRecord(ctx, formID, schema.DecodeValues(fields, raw))
	if err != nil {
		return err
	}
	return printJSON(record)
}

// requireForm refreshes the form list and rejects ids the backend does not
// know, so a typo'd id fails with NOT_FOUND instead of a silent no-op.
func requireForm(ctx context.Context, st *store.Store, id int) error {
	st.FetchForms(ctx)
	if err := st.Err(); err != nil {
		return err
	}
	for _, f := range st.Forms() {
		if f.ID == id {
			return nil
		}
	}
	return model.NewNotFoundError(fmt.Sprintf("form %d not found", id))
}

func intArg(args []string, i int, what string) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing %s", what)
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, args[i])
	}
	return n, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// multiFlag collects repeated flag values.
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}
