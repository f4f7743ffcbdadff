package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/moolen/primeline/internal/config"
	"github.com/moolen/primeline/internal/registry"
	"github.com/spf13/cobra"
)

var (
	componentsCatalogPath string
	componentsRelations   string
)

var componentsCmd = &cobra.Command{
	Use:   "components",
	Short: "Manage the component catalog",
	Long: `The component catalog assigns each registered component a stable
matrix index and records its typed dependencies. The adjacency artifact
for a session is derived from it.`,
}

var (
	componentsRegisterType      string
	componentsRegisterSignature string
	componentsRegisterDeps      []string
	componentsRegisterTypedDeps []string
)

var componentsRegisterCmd = &cobra.Command{
	Use:   "register NAME",
	Short: "Register a component or update its entry",
	Run:   runComponentsRegister,
}

var componentsListType string

var componentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the catalog entries",
	Run:   runComponentsList,
}

var componentsAdjOutPath string

var componentsExportAdjCmd = &cobra.Command{
	Use:   "export-adjacency",
	Short: "Write the catalog's adjacency artifact",
	Run:   runComponentsExportAdj,
}

func init() {
	componentsCmd.PersistentFlags().StringVar(&componentsCatalogPath, "catalog", "components.yaml", "Path to the component catalog file")
	componentsCmd.PersistentFlags().StringVar(&componentsRelations, "relations", "", "Relation prime overrides, e.g. sync=2,async=3,rpc=17")

	componentsRegisterCmd.Flags().StringVar(&componentsRegisterType, "type", "", "Component type, e.g. service or database")
	componentsRegisterCmd.Flags().StringVar(&componentsRegisterSignature, "signature", "", "Free-form signature string")
	componentsRegisterCmd.Flags().StringSliceVar(&componentsRegisterDeps, "deps", nil, "Dependencies with the default relation, e.g. db,cache")
	componentsRegisterCmd.Flags().StringSliceVar(&componentsRegisterTypedDeps, "typed-deps", nil, "Typed dependencies as callee:relation, e.g. db:db_query,queue:async")

	componentsListCmd.Flags().StringVar(&componentsListType, "type", "", "Only entries of this type")

	componentsExportAdjCmd.Flags().StringVar(&componentsAdjOutPath, "out", "", "Path for the adjacency artifact (required)")
	componentsExportAdjCmd.MarkFlagRequired("out")

	componentsCmd.AddCommand(componentsRegisterCmd)
	componentsCmd.AddCommand(componentsListCmd)
	componentsCmd.AddCommand(componentsExportAdjCmd)
}

func runComponentsRegister(cmd *cobra.Command, args []string) {
	cfg, logger := setup("components")

	if len(args) != 1 {
		HandleError(fmt.Errorf("exactly one component name is required"), "Invalid arguments")
	}
	name := args[0]

	deps, err := parseDependencyFlags(componentsRegisterDeps, componentsRegisterTypedDeps)
	if err != nil {
		HandleError(err, "Invalid dependencies")
	}

	reg, err := openCatalog(cfg)
	if err != nil {
		HandleError(err, "Failed to open catalog")
	}

	comp, err := reg.Register(name, componentsRegisterType, componentsRegisterSignature, deps...)
	if err != nil {
		HandleError(err, "Registration failed")
	}
	if err := reg.Save(); err != nil {
		HandleError(err, "Failed to save catalog")
	}

	logger.Debug("catalog saved to %s", reg.Path())
	fmt.Printf("registered %s at index %d (%d components total)\n", comp.Name, comp.RegistrationOrder, reg.Len())
}

func runComponentsList(cmd *cobra.Command, args []string) {
	cfg, _ := setup("components")

	reg, err := openCatalog(cfg)
	if err != nil {
		HandleError(err, "Failed to open catalog")
	}

	comps := reg.Components(componentsListType)
	if len(comps) == 0 {
		fmt.Printf("no components in %s\n", reg.Path())
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Index\tName\tType\tDependencies")
	for _, comp := range comps {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			comp.RegistrationOrder,
			comp.Name,
			comp.Type,
			formatDependencies(comp.TypedDependencies))
	}
	w.Flush()

	if missing := reg.MissingDependencies(); len(missing) > 0 {
		fmt.Printf("\nunregistered dependencies: %s\n", strings.Join(missing, ", "))
	}
}

func runComponentsExportAdj(cmd *cobra.Command, args []string) {
	cfg, _ := setup("components")

	reg, err := openCatalog(cfg)
	if err != nil {
		HandleError(err, "Failed to open catalog")
	}
	if err := reg.ExportAdjacency(componentsAdjOutPath); err != nil {
		HandleError(err, "Failed to export adjacency")
	}
	fmt.Printf("adjacency for %d components written to %s\n", reg.Len(), componentsAdjOutPath)
}

// openCatalog opens the catalog with relation primes resolved in
// priority order: --relations flag, config file, built-in defaults.
func openCatalog(cfg *config.Config) (*registry.Registry, error) {
	var opts []registry.Option
	if componentsRelations != "" {
		relations, err := registry.ParseRelationSpec(componentsRelations)
		if err != nil {
			return nil, err
		}
		opts = append(opts, registry.WithRelationPrimes(relations))
	} else if len(cfg.Relations) > 0 {
		opts = append(opts, registry.WithRelationPrimes(cfg.Relations))
	}
	return registry.New(componentsCatalogPath, opts...)
}

// parseDependencyFlags turns --deps and --typed-deps values into typed
// dependencies. Plain deps carry no relation and fall back to the
// catalog default.
func parseDependencyFlags(plain, typed []string) ([]registry.TypedDependency, error) {
	deps := make([]registry.TypedDependency, 0, len(plain)+len(typed))
	for _, callee := range plain {
		deps = append(deps, registry.TypedDependency{Callee: callee})
	}
	for _, spec := range typed {
		callee, relation, found := strings.Cut(spec, ":")
		if !found {
			return nil, fmt.Errorf("typed dependency %q is not of the form callee:relation", spec)
		}
		deps = append(deps, registry.TypedDependency{Callee: callee, Relation: relation})
	}
	return deps, nil
}

func formatDependencies(deps []registry.TypedDependency) string {
	if len(deps) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(deps))
	for _, dep := range deps {
		parts = append(parts, dep.Callee+":"+dep.Relation)
	}
	return strings.Join(parts, ", ")
}
