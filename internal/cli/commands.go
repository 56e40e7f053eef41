package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"webinar-certs/internal/contacts"
	"webinar-certs/internal/pipeline"
	"webinar-certs/internal/storage"
)

func newImportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <spreadsheet-url>",
		Short: "Register a webinar from its participants spreadsheet",
		Long: `Reads the webinar dates (A1) and title (A2) from the participants worksheet
and stores the webinar. Importing the same spreadsheet again prints the same id.

The spreadsheet has to be shared with the service account from the key file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				svc, err := a.importer(ctx)
				if err != nil {
					return err
				}
				id, err := svc.ImportFromURL(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
}

func newWebinarsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webinars",
		Short: "List and inspect imported webinars",
	}

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List imported webinars",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				webinars, err := a.store.Webinars().List(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(webinars)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tDATES\tYEAR\tTITLE")
				for _, w := range webinars {
					fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", w.ID, w.Dates, w.Year, w.Title)
				}
				return tw.Flush()
			})
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	show := &cobra.Command{
		Use:   "show <webinar-id>",
		Short: "Show one webinar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				rec, err := a.webinar(ctx, args[0])
				if err != nil {
					return err
				}
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				defer enc.Close()
				return enc.Encode(rec)
			})
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

type stageFunc func(*pipeline.Pipeline, context.Context) error

func newStageCommand(opts *RootOptions, name, short string, stage stageFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <webinar-id>",
		Short: short,
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
				return stage(p, ctx)
			})
		},
	}
}

func newMorphCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "morph",
		Short: "Look up and correct dative forms of names",
	}

	var lookup bool
	get := &cobra.Command{
		Use:   "get <full-name>",
		Short: "Print the stored dative form of a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				inflected, found, err := a.store.NameMorphs().Get(ctx, args[0])
				if err != nil {
					return err
				}
				if !found && lookup {
					resolver, err := a.resolver()
					if err != nil {
						return err
					}
					res, err := resolver.Resolve(ctx, args[0])
					if err != nil {
						return err
					}
					inflected, found = res.Dative, true
				}
				if !found {
					return fmt.Errorf("%w: %q", storage.ErrNotFound, args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), inflected)
				return nil
			})
		},
	}
	get.Flags().BoolVar(&lookup, "lookup", false, "ask the declension service when nothing is stored")

	set := &cobra.Command{
		Use:   "set <full-name> <dative-form>",
		Short: "Store a corrected dative form",
		Long: `Stores the dative form used for a name from now on. A name can be set
only once; a second set for the same name fails.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				err := a.store.NameMorphs().Set(ctx, args[0], args[1])
				if errors.Is(err, storage.ErrDuplicateKey) {
					return &ExitError{Code: ExitFailure, Err: fmt.Errorf("%q already has a dative form: %w", args[0], err)}
				}
				return err
			})
		},
	}

	cmd.AddCommand(get, set)
	return cmd
}

func newContactsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "contacts <webinar-id>",
		Short: "Export participants as a vCard file",
		Long: `Writes the participants of a webinar to <contacts dir>/<group>.vcf, where
group is the first letter of the title, the dates and the year. Import the
file into your address book.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				rec, err := a.webinar(ctx, args[0])
				if err != nil {
					return err
				}
				svc, err := a.importer(ctx)
				if err != nil {
					return err
				}
				_, attendees, err := svc.Open(ctx, rec)
				if err != nil {
					return err
				}
				group := contacts.GroupName(rec)
				path, err := contacts.SaveFile(a.cfg.ContactsDir, attendees, group)
				if err != nil {
					return err
				}
				a.log.Info().Int("contacts", len(attendees)).Str("group", group).Msg("Contacts saved")
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}
}

func newWhatsAppCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whatsapp",
		Short: "WhatsApp session management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "login",
		Short: "Pair this tool with a WhatsApp account by QR code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				wa, err := a.whatsapp(ctx)
				if err != nil {
					return err
				}
				defer wa.Disconnect()
				if err := wa.Login(ctx, cmd.OutOrStdout()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Connected to WhatsApp")
				return nil
			})
		},
	})
	return cmd
}
