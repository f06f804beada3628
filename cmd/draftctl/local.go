package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/quotewizard/internal/adapters"
	"github.com/odyssey-erp/quotewizard/internal/quote"
)

func validateCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a request or draft payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := parseKind(kind)
			if err != nil {
				return err
			}
			p, err := readPayload(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			res := adapters.Validate(k, p)
			out := cmd.OutOrStdout()
			if res.IsValid {
				fmt.Fprintf(out, "%s payload is valid\n", k)
				return nil
			}
			for _, e := range res.Errors {
				fmt.Fprintf(out, "- %s\n", e)
			}
			return errInvalidPayload
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(adapters.KindRequest), "payload kind: request or draft")
	return cmd
}

func adaptCmd(root *rootOptions) *cobra.Command {
	var kind, output string
	cmd := &cobra.Command{
		Use:   "adapt <file>",
		Short: "Adapt a payload into the wizard form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := parseKind(kind)
			if err != nil {
				return err
			}
			form, err := adaptFile(cmd.InOrStdin(), args[0], k, root.user())
			if err != nil {
				return err
			}
			return writeDocument(cmd.OutOrStdout(), output, form)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(adapters.KindRequest), "payload kind: request or draft")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json or yaml")
	return cmd
}

func optionsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "options <file>",
		Short: "List the priced options of a draft payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			form, err := adaptFile(cmd.InOrStdin(), args[0], adapters.KindDraft, root.user())
			if err != nil {
				return err
			}
			renderOptions(cmd.OutOrStdout(), form.ExistingOptions)
			return nil
		},
	}
	return cmd
}

func (o *rootOptions) user() adapters.UserContext {
	return adapters.UserContext{UserID: o.userID, Name: o.userName, Email: o.userEmail}
}

func parseKind(s string) (adapters.Kind, error) {
	switch k := adapters.Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case adapters.KindRequest, adapters.KindDraft:
		return k, nil
	default:
		return "", fmt.Errorf("unknown kind %q: want request or draft", s)
	}
}

func adaptFile(stdin io.Reader, path string, kind adapters.Kind, user adapters.UserContext) (quote.DraftQuoteForm, error) {
	p, err := readPayload(stdin, path)
	if err != nil {
		return quote.DraftQuoteForm{}, err
	}
	return adapters.Adapt(kind, p, user)
}

func readPayload(stdin io.Reader, path string) (adapters.Payload, error) {
	raw, err := readDocument(stdin, path)
	if err != nil {
		return nil, err
	}
	return adapters.ParsePayload(raw)
}

// readDocument returns the file as JSON. YAML files are converted so that
// every consumer sees the JSON field names.
func readDocument(stdin io.Reader, path string) ([]byte, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yamlToJSON(raw)
	case "":
		if json.Valid(raw) {
			return raw, nil
		}
		return yamlToJSON(raw)
	default:
		return raw, nil
	}
}

func yamlToJSON(raw []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return json.Marshal(doc)
}

func decodeDocument(stdin io.Reader, path string, dest any) error {
	raw, err := readDocument(stdin, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// writeDocument prints v with its JSON field names in either format.
func writeDocument(w io.Writer, format string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	switch strings.ToLower(format) {
	case "json":
		_, err = fmt.Fprintln(w, string(raw))
		return err
	case "yaml", "yml":
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderOptions(w io.Writer, options []quote.QuoteOption) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"#", "Name", "Currency", "Seafreight", "Haulage", "Services", "Total", "Preferred"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	for i, o := range options {
		t := o.Totals()
		preferred := ""
		if o.IsPreferred {
			preferred = "yes"
		}
		tw.AppendRow(table.Row{i + 1, o.Name, o.Currency,
			money(t.Seafreights), money(t.Haulages), money(t.Services), money(t.GrandTotal), preferred})
	}
	if len(options) == 0 {
		tw.AppendRow(table.Row{"", "no options", "", "", "", "", "", ""})
	}
	tw.Render()
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
