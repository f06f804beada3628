package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/quotewizard/internal/adapters"
	"github.com/odyssey-erp/quotewizard/internal/app"
	draftshttp "github.com/odyssey-erp/quotewizard/internal/drafts/http"
	"github.com/odyssey-erp/quotewizard/internal/quote"
	"github.com/odyssey-erp/quotewizard/internal/wizard"
)

const clientTimeout = 15 * time.Second

func showCmd(root *rootOptions) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <draft-id>",
		Short: "Fetch a stored draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			client := draftshttp.NewClient(root.baseURL(cfg), clientTimeout)
			doc, err := client.FetchDraft(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if raw {
				_, err = fmt.Fprintln(out, string(doc))
				return err
			}
			p, err := adapters.ParsePayload(doc)
			if err != nil {
				return err
			}
			form, err := adapters.DraftToForm(p, root.user())
			if err != nil {
				return err
			}
			printSummary(out, args[0], form)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the stored JSON document")
	return cmd
}

// optionSpec is one option of a quote file. Line items use the draft field
// names, e.g. seafreights[].rates[].basePrice.
type optionSpec struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Preferred   bool               `json:"preferred"`
	Seafreights []quote.Seafreight `json:"seafreights"`
	Haulages    []quote.Haulage    `json:"haulages"`
	Services    []quote.Service    `json:"services"`
}

type quoteFile struct {
	Options []optionSpec `json:"options"`
}

func quoteCmd(root *rootOptions) *cobra.Command {
	var (
		requestID, draftID, optionsPath string
		submit                          bool
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Compose a quote for a request from an options file",
		Long: `quote opens a wizard session for --request, resuming --draft when given,
commits every option of --options and saves the draft. With --submit the
draft is submitted once saved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if requestID == "" {
				return errors.New("--request is required")
			}
			var spec quoteFile
			if err := decodeDocument(cmd.InOrStdin(), optionsPath, &spec); err != nil {
				return err
			}
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			logger := app.NewLoggerTo(cfg, cmd.ErrOrStderr())
			client := draftshttp.NewClient(root.baseURL(cfg), clientTimeout)
			loader := wizard.NewLoader(cfg.Wizard(client, logger, nil))

			id, form, err := composeQuote(cmd.Context(), loader, requestID, draftID, root.user(), spec, submit)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), id, form)
			return nil
		},
	}
	cmd.Flags().StringVar(&requestID, "request", "", "request id to quote")
	cmd.Flags().StringVar(&draftID, "draft", "", "existing draft to resume")
	cmd.Flags().StringVar(&optionsPath, "options", "-", "options file (JSON or YAML)")
	cmd.Flags().BoolVar(&submit, "submit", false, "submit the draft once saved")
	return cmd
}

func composeQuote(ctx context.Context, loader *wizard.Loader, requestID, draftID string, user adapters.UserContext, spec quoteFile, submit bool) (string, quote.DraftQuoteForm, error) {
	var (
		s   *wizard.Session
		err error
	)
	if draftID != "" {
		s, err = loader.FromRequestWithDraft(ctx, requestID, draftID, user)
	} else {
		s, err = loader.FromRequest(ctx, requestID, user)
	}
	if err != nil {
		return "", quote.DraftQuoteForm{}, err
	}
	defer s.Close()

	for i, o := range spec.Options {
		_, err := s.UpdateCurrentOption(func(d *quote.OptionDraft) {
			d.Seafreights = o.Seafreights
			d.Haulages = o.Haulages
			d.Services = o.Services
		})
		if err != nil {
			return "", quote.DraftQuoteForm{}, fmt.Errorf("option %d: %w", i+1, err)
		}
		committed, err := s.Commit(ctx, o.Name, o.Description)
		if err != nil {
			return "", quote.DraftQuoteForm{}, fmt.Errorf("option %d: %w", i+1, err)
		}
		if o.Preferred {
			if _, err := s.SetPreferred(ctx, committed.ID); err != nil {
				return "", quote.DraftQuoteForm{}, fmt.Errorf("option %d: %w", i+1, err)
			}
		}
	}

	if err := s.SaveNow(ctx); err != nil {
		return "", quote.DraftQuoteForm{}, err
	}
	id, err := s.EnsureDraft(ctx)
	if err != nil {
		return "", quote.DraftQuoteForm{}, err
	}
	if submit {
		if id, err = s.Submit(ctx); err != nil {
			return "", quote.DraftQuoteForm{}, err
		}
	}
	return id, s.GetCurrentModel(), nil
}

func printSummary(w io.Writer, draftID string, form quote.DraftQuoteForm) {
	b := form.Basics
	fmt.Fprintf(w, "Draft:   %s\n", draftID)
	if form.RequestID != "" {
		fmt.Fprintf(w, "Request: %s\n", form.RequestID)
	}
	fmt.Fprintf(w, "Route:   %s, %s -> %s, %s\n", b.Origin.City, b.Origin.Country, b.Destination.City, b.Destination.Country)
	fmt.Fprintf(w, "Cargo:   %s %s (%s)\n", b.CargoType, b.Incoterm, b.GoodsDescription)
	renderOptions(w, form.ExistingOptions)
}

func (o *rootOptions) baseURL(cfg *app.Config) string {
	if o.apiURL != "" {
		return o.apiURL
	}
	return cfg.DraftAPIURL
}
