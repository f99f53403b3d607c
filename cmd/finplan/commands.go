package main

import (
	"fmt"
	"time"

	"github.com/rpgo/finplan/internal/calculation"
	"github.com/rpgo/finplan/internal/config"
	"github.com/rpgo/finplan/internal/domain"
	"github.com/rpgo/finplan/internal/observability"
	"github.com/rpgo/finplan/internal/output"

	"github.com/spf13/cobra"
)

// reportFlags are shared by project and compare.
type reportFlags struct {
	format  string
	account string
	asOf    string
	save    bool
	outDir  string
}

func (f *reportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.format, "format", "f", "console", "output format ("+fmt.Sprint(output.AvailableFormatterNames())+", or all with --save)")
	cmd.Flags().StringVar(&f.account, "account", "", "limit detailed-csv output to one account")
	cmd.Flags().StringVar(&f.asOf, "as-of", "", "projection date (YYYY-MM-DD); defaults to today")
	cmd.Flags().BoolVar(&f.save, "save", false, "write the report to a timestamped file instead of stdout")
	cmd.Flags().StringVar(&f.outDir, "out-dir", ".", "directory for reports written with --save")
}

func (f *reportFlags) asOfDate() (time.Time, error) {
	if f.asOf == "" {
		return calculation.DefaultAsOf(), nil
	}
	t, err := time.Parse("2006-01-02", f.asOf)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of %q: %w", f.asOf, err)
	}
	return t, nil
}

func (f *reportFlags) formatter() (output.Formatter, error) {
	fm, err := output.Lookup(f.format)
	if err != nil {
		return nil, err
	}
	if f.account != "" {
		if fm.Name() != "detailed-csv" {
			return nil, fmt.Errorf("--account only applies to detailed-csv output")
		}
		return output.CSVDetailedExporter{Account: f.account}, nil
	}
	return fm, nil
}

// emit renders the comparison to stdout, or to files when --save is set.
func (f *reportFlags) emit(cmd *cobra.Command, cmp *domain.ScenarioComparison) error {
	if f.save && f.account == "" {
		files, err := output.GenerateReport(cmp, f.format, f.outDir)
		if err != nil {
			return err
		}
		for _, name := range files {
			fmt.Fprintln(cmd.OutOrStdout(), "Report written to", name)
		}
		return nil
	}

	fm, err := f.formatter()
	if err != nil {
		return err
	}
	data, err := fm.Format(cmp)
	if err != nil {
		return err
	}
	if f.save {
		name, err := output.WriteFormatted(fm, cmp, f.outDir)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Report written to", name)
		return nil
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func newEngine(cmd *cobra.Command) *calculation.ProjectionEngine {
	level, _ := cmd.Flags().GetString("log-level")
	engine := calculation.NewProjectionEngine()
	engine.SetLogger(observability.NewLogger(level).Sugar())
	return engine
}

func loadPlan(path string) (*domain.Plan, error) {
	plan, err := config.NewInputParser().LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return plan, nil
}

func newProjectCmd() *cobra.Command {
	var flags reportFlags
	cmd := &cobra.Command{
		Use:   "project <plan.yaml>",
		Short: "Project every scenario of a plan file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := loadPlan(args[0])
			if err != nil {
				return err
			}
			asOf, err := flags.asOfDate()
			if err != nil {
				return err
			}

			cmp, err := newEngine(cmd).RunScenarios(cmd.Context(), *plan, asOf)
			if err != nil {
				return err
			}
			cmp.Assumptions = output.GenerateAssumptions(calculation.ScenarioInputs(*plan, asOf)[0])
			return flags.emit(cmd, cmp)
		},
	}
	flags.register(cmd)
	return cmd
}

func newCompareCmd() *cobra.Command {
	var flags reportFlags
	cmd := &cobra.Command{
		Use:   "compare <current.yaml> <proposed.yaml>",
		Short: "Compare two plan files over a shared horizon",
		Long: "Runs both plans from the same as-of date, extends the shorter horizon to the longer one " +
			"and reports proposed minus current for every age.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := loadPlan(args[0])
			if err != nil {
				return err
			}
			proposed, err := loadPlan(args[1])
			if err != nil {
				return err
			}
			asOf, err := flags.asOfDate()
			if err != nil {
				return err
			}

			currentIn := calculation.NewProjectionInput(*current, asOf)
			proposedIn := calculation.NewProjectionInput(*proposed, asOf)
			cmp, err := newEngine(cmd).RunComparison(cmd.Context(), currentIn, proposedIn)
			if err != nil {
				return err
			}
			cmp.Assumptions = output.GenerateAssumptions(currentIn)
			return flags.emit(cmd, cmp)
		},
	}
	flags.register(cmd)
	return cmd
}

func newExampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "example [file]",
		Short: "Write an example plan file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "example_plan.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			parser := config.NewInputParser()
			if err := parser.WriteToFile(parser.CreateExampleConfiguration(), path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Example plan written to", path)
			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <plan.yaml>",
		Short: "Check a plan file without projecting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := loadPlan(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %d accounts, %d goals, %d scenarios\n",
				args[0], len(plan.Accounts), len(plan.Goals), len(plan.Scenarios))
			return nil
		},
	}
}
