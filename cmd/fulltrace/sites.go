package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"fulltrace/internal/debugloc"
	"fulltrace/internal/sitemap"
)

var sitesCmd = &cobra.Command{
	Use:   "sites [flags]",
	Short: "List the trace sites recorded in trace-sites.mp",
	Args:  cobra.NoArgs,
	RunE:  runSites,
}

func init() {
	sitesCmd.Flags().String("base-dir", ".", "directory holding trace-sites.mp")
	sitesCmd.Flags().String("format", "table", "output format (table|json)")
	sitesCmd.Flags().String("file", "", "only sites from this source file (basename)")
	sitesCmd.Flags().Int64("id", -1, "only sites with this identifier")
	sitesCmd.Flags().String("func", "", "only sites in this function")
}

type siteFilter struct {
	file string
	id   int64
	fn   string
}

func (f siteFilter) keep(s sitemap.Site) bool {
	if f.file != "" && debugloc.Basename(s.File) != debugloc.Basename(f.file) {
		return false
	}
	if f.id >= 0 && int64(s.ID) != f.id {
		return false
	}
	if f.fn != "" && s.Func != f.fn {
		return false
	}
	return true
}

func runSites(cmd *cobra.Command, args []string) error {
	baseDir, err := cmd.Flags().GetString("base-dir")
	if err != nil {
		return fmt.Errorf("failed to get base-dir flag: %w", err)
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	var filter siteFilter
	if filter.file, err = cmd.Flags().GetString("file"); err != nil {
		return fmt.Errorf("failed to get file flag: %w", err)
	}
	if filter.id, err = cmd.Flags().GetInt64("id"); err != nil {
		return fmt.Errorf("failed to get id flag: %w", err)
	}
	if filter.fn, err = cmd.Flags().GetString("func"); err != nil {
		return fmt.Errorf("failed to get func flag: %w", err)
	}

	all, err := sitemap.ReadFile(baseDir)
	if err != nil {
		return err
	}
	sites := make([]sitemap.Site, 0, len(all))
	for _, s := range all {
		if filter.keep(s) {
			sites = append(sites, s)
		}
	}

	switch format {
	case "json":
		payload := make([]siteJSON, 0, len(sites))
		for _, s := range sites {
			payload = append(payload, siteJSON{
				ID: s.ID, File: s.File, Line: s.Line, Column: s.Column,
				Func: s.Func, Block: s.Block, Role: s.Role.String(), Index: s.Index,
				Type: s.Type, Value: s.Value,
			})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	case "table":
		renderSitesTable(cmd.OutOrStdout(), sites)
		return nil
	default:
		return fmt.Errorf("unsupported format %q (must be table or json)", format)
	}
}

type siteJSON struct {
	ID     uint32 `json:"id"`
	File   string `json:"file"`
	Line   uint32 `json:"line"`
	Column uint32 `json:"column"`
	Func   string `json:"func"`
	Block  string `json:"block"`
	Role   string `json:"role"`
	Index  int    `json:"index"`
	Type   string `json:"type"`
	Value  string `json:"value"`
}

var sitesHeader = []string{"ID", "LOCATION", "FUNC", "BLOCK", "ROLE", "TYPE", "VALUE"}

func renderSitesTable(out io.Writer, sites []sitemap.Site) {
	rows := make([][]string, 0, len(sites)+1)
	rows = append(rows, sitesHeader)
	for _, s := range sites {
		role := s.Role.String()
		if s.Role == sitemap.RoleOperand || s.Role == sitemap.RoleCallArg || s.Role == sitemap.RolePhiIncoming {
			role += "#" + strconv.Itoa(s.Index)
		}
		loc := debugloc.Loc{File: s.File, Line: s.Line, Column: s.Column}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(s.ID), 10),
			loc.String(),
			"@" + s.Func,
			s.Block,
			role,
			s.Type,
			s.Value,
		})
	}

	widths := make([]int, len(sitesHeader))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	for _, row := range rows {
		var b strings.Builder
		for i, cell := range row {
			if i == len(row)-1 {
				b.WriteString(cell)
				break
			}
			b.WriteString(runewidth.FillRight(cell, widths[i]))
			b.WriteString("  ")
		}
		fmt.Fprintln(out, strings.TrimRight(b.String(), " "))
	}
}
