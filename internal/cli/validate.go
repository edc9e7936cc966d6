package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/thereceipt/label-engine/internal/engine"
	"github.com/thereceipt/label-engine/internal/records"
	"github.com/thereceipt/label-engine/internal/resolver"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

func newValidateCmd() *cobra.Command {
	var recordsPath string

	cmd := &cobra.Command{
		Use:   "validate <template>...",
		Short: "Check templates and list the placeholders they use",
		Long: `Parse and validate each template. With --records the placeholders are
checked against the file's columns; missing columns render as an empty string
at export time and are reported as warnings here.`,
		Example: `  labelctl validate badge.json
  labelctl validate badge.json shelf.json --records products.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var set *records.Set
			if recordsPath != "" {
				var err error
				if set, err = records.Load(recordsPath); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				tpl, err := engine.ReadTemplate(path)
				if err != nil {
					failed++
					fmt.Fprintf(out, "❌ %s: %v\n", path, err)
					continue
				}

				tokens := templateTokens(tpl)
				fmt.Fprintf(out, "✓ %s: %d object(s), %.0fx%.0f\n", path, len(tpl.Objects), tpl.DesignWidth, tpl.DesignHeight)
				for _, tok := range tokens {
					if set != nil && !set.HasColumn(tok) {
						fmt.Fprintf(out, "  ⚠️  {{%s}} has no matching column\n", tok)
						continue
					}
					fmt.Fprintf(out, "  {{%s}}\n", tok)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d template(s) invalid", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&recordsPath, "records", "r", "", "Records file to check placeholders against")

	return cmd
}

// templateTokens lists the distinct placeholder names used by the template's text objects
func templateTokens(tpl *labelformat.Template) []string {
	seen := make(map[string]bool)
	for _, obj := range tpl.Objects {
		for _, tok := range resolver.Tokens(obj.Text) {
			seen[tok] = true
		}
	}
	tokens := make([]string, 0, len(seen))
	for tok := range seen {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return tokens
}
