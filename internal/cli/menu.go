package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"webinar-certs/internal/models"
	"webinar-certs/internal/pipeline"
)

func newMenuCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "menu <webinar-id>",
		Short: "Run the stages interactively, checking the sheet in between",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				rec, err := a.webinar(ctx, args[0])
				if err != nil {
					return err
				}
				p, err := a.pipeline(ctx, rec)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s, %s %d\n", rec.Title, rec.Dates, rec.Year)
				fmt.Fprintln(cmd.OutOrStdout(), strings.Repeat("=", 40))
				return startMenu(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), p)
			})
		},
	}
}

func startMenu(ctx context.Context, in io.Reader, out io.Writer, p *pipeline.Pipeline) error {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprintln(out, "\nCommands:")
		fmt.Fprintln(out, "  1. Fill certificate worksheet")
		fmt.Fprintln(out, "  2. Show certificate worksheet")
		fmt.Fprintln(out, "  3. Generate certificates")
		fmt.Fprintln(out, "  4. Send certificates")
		fmt.Fprintln(out, "  5. Exit")
		fmt.Fprint(out, "\nEnter command (1-5): ")

		if !scanner.Scan() {
			return scanner.Err()
		}

		var err error
		switch strings.TrimSpace(scanner.Text()) {
		case "1":
			if err = p.Fill(ctx); err == nil {
				fmt.Fprintln(out, "Worksheet filled. Check the names before generating.")
			}
		case "2":
			err = showRows(ctx, out, p)
		case "3":
			if err = p.Generate(ctx); err == nil {
				fmt.Fprintln(out, "Certificates ready. Check them before sending.")
			}
		case "4":
			if err = p.Send(ctx); err == nil {
				fmt.Fprintln(out, "All certificates sent.")
			}
		case "5":
			fmt.Fprintln(out, "Exiting...")
			return nil
		default:
			fmt.Fprintln(out, "Invalid command. Please try again.")
		}

		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}

func showRows(ctx context.Context, out io.Writer, p *pipeline.Pipeline) error {
	rows, err := p.Rows(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "\nCertificate worksheet is empty.")
		return nil
	}

	fmt.Fprintf(out, "\nCertificate worksheet (%d rows):\n", len(rows))
	fmt.Fprintln(out, strings.Repeat("-", 60))
	for _, r := range rows {
		fmt.Fprintf(out, "%s -> %s (%s) %s%s\n", r.FullName, r.InflectedName, r.DisplayName, r.Email, sentMark(r))
	}
	return nil
}

func sentMark(r models.CertificateRow) string {
	if r.Sent {
		return " [sent]"
	}
	return ""
}
