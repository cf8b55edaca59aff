package cli

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ppiankov/chartcode/internal/model"
)

var lookupKind string

var lookupCmd = &cobra.Command{
	Use:   "lookup <term>",
	Short: "Look up a code in RxNorm or ICD-10-CM",
	Long: `Lookup sends one term through the same retrying, rate-limited and cached
client that extraction uses.`,
	Example: `  chartcode lookup --kind medication metformin
  chartcode lookup --kind condition "type 2 diabetes"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(lookupKind)
		if err != nil {
			return err
		}
		term := strings.Join(args, " ")

		svc := newLookups(cfg).For(kind)
		code, found, err := svc.Lookup(cmd.Context(), term)
		if err != nil {
			return eris.Wrapf(err, "lookup %q", term)
		}
		if !found {
			fmt.Printf("%s: no %s code found\n", term, svc.System())
			return nil
		}
		fmt.Printf("%s: %s %s\n", term, svc.System(), code)
		return nil
	},
}

func init() {
	lookupCmd.Flags().StringVar(&lookupKind, "kind", "condition", "fact kind: condition (ICD-10-CM) or medication (RxNorm)")
	rootCmd.AddCommand(lookupCmd)
}

func parseKind(s string) (model.FactKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "condition", "conditions", "icd10", "icd-10":
		return model.FactKindCondition, nil
	case "medication", "medications", "rxnorm":
		return model.FactKindMedication, nil
	default:
		return "", eris.Errorf("unknown kind %q (expected condition or medication)", s)
	}
}
