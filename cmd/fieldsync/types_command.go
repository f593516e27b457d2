package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fieldsync/internal/mutation"
)

func newTypesCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "types",
		Short:       "List the mutation types the daemon accepts",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := mutation.DefaultRegistry()
			rows := make([][]string, 0)
			for _, typ := range registry.Types() {
				def, _ := registry.Lookup(typ)
				rows = append(rows, []string{def.Type, def.Method, def.Path})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Type", "Method", "Path"}, rows, nil))
			return nil
		},
	}
}
