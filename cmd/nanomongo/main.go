// Command nanomongo is a line-oriented REPL standing in for the wire
// framing layer: each line is a single-command JSON document, e.g.
//
//	{"insert": "people", "collection": "people", "documents": [{"_id": 1, "name": "ada"}]}
//
// and is dispatched straight to a database.Database, printing back
// whatever document the dispatcher returns. It exists to exercise the
// command router by hand, not as a production entry point.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/autom8ter/nanomongo"
	"github.com/autom8ter/nanomongo/backend"
	"github.com/autom8ter/nanomongo/database"
	"github.com/autom8ter/nanomongo/document"
)

func main() {
	cmd := rootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		dbName   string
		logLevel string
	)
	cmd := &cobra.Command{
		Use:   "nanomongo",
		Short: "nanomongo is an in-memory document-database command dispatcher",
		RunE: func(_ *cobra.Command, _ []string) error {
			log, err := nanomongo.NewLogger(logLevel, map[string]any{"database": dbName})
			if err != nil {
				return err
			}
			registry := backend.NewRegistry(log)
			db := registry.Open(dbName)
			return repl(db, os.Stdin, os.Stdout)
		},
	}
	cmd.Flags().StringVarP(&dbName, "db", "d", "test", "database name to open")
	cmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
	return cmd
}

// repl reads one JSON command document per line from r, dispatches it
// against db, and writes the result (or error) as a JSON line to w. A
// channel id is minted once per process, matching a single long-lived
// client connection.
func repl(db *database.Database, r io.Reader, w io.Writer) error {
	channel := ksuid.New().String()
	defer db.HandleClose(channel)

	ctx := context.Background()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		name, params, err := parseLine(line)
		if err != nil {
			fmt.Fprintf(w, "%s\n", mustJSON(document.New("ok", 0, "errmsg", err.Error())))
			continue
		}
		resp, err := db.HandleCommand(ctx, channel, name, params)
		if err != nil {
			fmt.Fprintf(w, "%s\n", mustJSON(document.New("ok", 0, "errmsg", err.Error())))
			continue
		}
		fmt.Fprintf(w, "%s\n", mustJSON(resp))
	}
	return scanner.Err()
}

// parseLine decodes a REPL line into a command name and its parameter
// document, taking the command name from the first key of the JSON
// object, mirroring how a mongo shell command document names itself.
func parseLine(line string) (string, document.Doc, error) {
	params, err := document.FromJSON([]byte(line))
	if err != nil {
		return "", nil, err
	}
	keys := params.Keys()
	if len(keys) == 0 {
		return "", nil, fmt.Errorf("empty command")
	}
	return keys[0], params, nil
}

func mustJSON(d document.Doc) string {
	bits, err := d.ToJSON()
	if err != nil {
		return fmt.Sprintf(`{"ok":0,"errmsg":%q}`, err.Error())
	}
	return string(bits)
}
