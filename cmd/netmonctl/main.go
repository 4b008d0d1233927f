// Command netmonctl queries the status API of a running netmon.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hamed0406/netmon/internal/domain"
	"github.com/hamed0406/netmon/internal/status"
)

type client struct {
	base string
	key  string
	http *http.Client
}

func (c *client) get(ctx context.Context, path string, v any) error {
	return c.do(ctx, http.MethodGet, path, v)
}

func (c *client) do(ctx context.Context, method, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.base, "/")+path, nil)
	if err != nil {
		return err
	}
	if c.key != "" {
		req.Header.Set("X-API-Key", c.key)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting API: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &client{http: &http.Client{Timeout: 30 * time.Second}}
	base := os.Getenv("API_BASE")
	if base == "" {
		base = "http://localhost:8080"
	}

	root := &cobra.Command{
		Use:           "netmonctl",
		Short:         "Query a running netmon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.base, "api", base, "status API base URL (API_BASE)")
	root.PersistentFlags().StringVar(&c.key, "key", os.Getenv("API_KEY"), "API key (API_KEY)")

	root.AddCommand(&cobra.Command{
		Use:   "checks",
		Short: "Show the latest status of every check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var rows []domain.StatusRow
			if err := c.get(cmd.Context(), "/api/checks", &rows); err != nil {
				return err
			}
			printChecks(cmd.OutOrStdout(), rows)
			return nil
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "alerts",
		Short: "Show what is escalated right now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap status.Snapshot
			if err := c.get(cmd.Context(), "/api/alerts", &snap); err != nil {
				return err
			}
			printAlerts(cmd.OutOrStdout(), snap.Alerts)
			return nil
		},
	})

	var limit int
	history := &cobra.Command{
		Use:   "history <check-id>",
		Short: "Show recent results of one check",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var samples []domain.Sample
			path := "/api/checks/" + url.PathEscape(args[0]) + "/history?limit=" + strconv.Itoa(limit)
			if err := c.get(cmd.Context(), path, &samples); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CHECKED\tOK\tMS\tREASON")
			for _, s := range samples {
				fmt.Fprintf(tw, "%s\t%v\t%.1f\t%s\n", s.CheckedAt.Local().Format(time.DateTime), s.OK, s.DurationMS, s.Reason)
			}
			return tw.Flush()
		},
	}
	history.Flags().IntVarP(&limit, "limit", "n", 20, "number of results")
	root.AddCommand(history)

	root.AddCommand(&cobra.Command{
		Use:   "cycle",
		Short: "Run a check cycle now (admin key)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var sum map[string]any
			if err := c.do(cmd.Context(), http.MethodPost, "/api/cycles", &sum); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cycle %v: ran %v, failed %v, escalated %v, notified %v\n",
				sum["id"], sum["ran"], sum["failed"], sum["escalations"], sum["notified"])
			return nil
		},
	})
	return root
}

func printChecks(w io.Writer, rows []domain.StatusRow) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tCHECKED\tDETAIL")
	for _, r := range rows {
		state, detail, checked := "OK", r.Description, "never"
		if !r.OK {
			state, detail = "FAIL", r.Reason
		}
		if r.CheckedAt != nil {
			checked = r.CheckedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ProbeID, r.Kind, state, checked, detail)
	}
	tw.Flush()
}

func printAlerts(w io.Writer, alerts []domain.Alert) {
	if len(alerts) == 0 {
		fmt.Fprintln(w, "nothing escalated")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOUNT\tWINDOW\tREASON")
	for _, a := range alerts {
		fmt.Fprintf(tw, "%s\t%d\t%ds\t%s\n", a.ProbeID, a.Count, a.WindowSec, a.Reason)
	}
	tw.Flush()
}
