package main

import (
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/nebula-columnar/pkg/connector/registry"
	"github.com/ajitpratap0/nebula-columnar/pkg/transport/transports"
)

func newTypesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "types [transport]",
		Short: "Show how source types map to Arrow types",
		Long: `Print the transport tables: for every source type, the Arrow type it is
written as and the conversion policy used (identity, autocast, lossy, owned).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tables := transports.Describe()
			if len(args) == 1 {
				rules, ok := tables[args[0]]
				if !ok {
					return fmt.Errorf("unknown transport %q", args[0])
				}
				tables = map[string][]string{args[0]: rules}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				data, err := json.MarshalIndent(tables, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}

			names := make([]string, 0, len(tables))
			for name := range tables {
				names = append(names, name)
			}
			sort.Strings(names)
			for i, name := range names {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "%s:\n", name)
				for _, rule := range tables[name] {
					fmt.Fprintf(out, "  %s\n", rule)
				}
			}
			fmt.Fprintf(out, "\nSources: %v\n", registry.ListSources())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the tables as JSON")
	return cmd
}
