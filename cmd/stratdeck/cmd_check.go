package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/stratdeck/stratdeck/internal/archetype"
	"github.com/stratdeck/stratdeck/internal/card"
	"github.com/stratdeck/stratdeck/internal/config"
)

func checkCmd() *cobra.Command {
	var typeID string

	cmd := &cobra.Command{
		Use:   "check [slots.json]",
		Short: "Validate a slot payload against an archetype schema",
		Long: `Reads a JSON slot payload from the given file (or stdin) and runs the
full validation pass against the named archetype, printing every issue.
Exits non-zero when the payload has errors.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			reg, err := archetype.LoadCatalog(cfg.Catalog.Path)
			if err != nil {
				return err
			}
			arch, ok := reg.Get(typeID)
			if !ok {
				return fmt.Errorf("unknown archetype: %s", typeID)
			}

			var data []byte
			if len(args) == 1 {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(os.Stdin)
			}
			if err != nil {
				return err
			}
			var slots map[string]interface{}
			if err := json.Unmarshal(data, &slots); err != nil {
				return fmt.Errorf("failed to parse slot payload: %w", err)
			}

			issues := card.NewValidator(reg).Validate(arch, slots)
			if len(issues) == 0 {
				fmt.Println("ok")
				return nil
			}
			for _, msg := range issues.Messages() {
				fmt.Println(msg)
			}
			if issues.HasErrors() {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&typeID, "type", "t", "", "archetype type_id to validate against")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}
