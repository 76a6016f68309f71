package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kioku-game/kioku/internal/card"
)

// NewCardsCommand creates the cards command group.
func NewCardsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Corpus tooling",
	}

	cmd.AddCommand(newCardsConvertCommand(rootOpts))
	cmd.AddCommand(newCardsCheckCommand(rootOpts))

	return cmd
}

// CardsConvertOptions holds flags for the cards convert command.
type CardsConvertOptions struct {
	*RootOptions
	Sheet      string
	SkipHeader bool
}

func newCardsConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CardsConvertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "convert <src.xlsx> <dst.tsv>",
		Short: "Convert an XLSX sheet into a corpus TSV",
		Long: `Convert an XLSX sheet into the corpus TSV format. Column A is the
sentence, column B the |-separated meanings.

Example:
  kioku cards convert decks/n5.xlsx corpus.tsv --skip-header`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := card.ConvertXLSX(args[0], args[1], card.ImportConfig{
				SheetName:  opts.Sheet,
				SkipHeader: opts.SkipHeader,
			})
			if err != nil {
				return WrapExitError(ExitCommandError, "conversion failed", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d card(s) to %s.\n", count, args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Sheet, "sheet", "", "sheet name (first sheet when empty)")
	cmd.Flags().BoolVar(&opts.SkipHeader, "skip-header", false, "skip the first row")

	return cmd
}

func newCardsCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [corpus.tsv]",
		Short: "Validate a corpus file",
		Long: `Parse a corpus TSV and report the card count. With no argument the
embedded default corpus is checked.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			corpus, err := card.Load(path)
			if err != nil {
				return WrapExitError(ExitFailure, "corpus invalid", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Corpus OK: %d card(s).\n", corpus.Len())
			return nil
		},
	}

	return cmd
}
