package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/roach88/daokit/internal/addressing"
	"github.com/roach88/daokit/internal/blueprint"
)

// ValidationError is one problem found in a blueprint.
type ValidationError struct {
	File    string `json:"file"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  int               `json:"files"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <blueprint.cue>...",
		Short: "Validate blueprints without deploying",
		Long: `Validate DAO blueprints against the schema and compile them.

Checks CUE syntax, the blueprint schema, role and action references,
step parameters and call arguments. Nothing is submitted.

Exit codes:
  0 - All blueprints are valid
  1 - At least one blueprint is invalid`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	formatter := opts.formatter(cmd)
	env := blueprint.Env{Predictor: addressing.New(cfg.ChainID), Sender: common.Address{}}

	result := ValidationResult{Valid: true, Files: len(paths)}
	for _, path := range paths {
		formatter.VerboseLog("Validating %s", path)
		if verr := validateBlueprint(path, env); verr != nil {
			result.Valid = false
			result.Errors = append(result.Errors, *verr)
		}
	}

	if err := formatter.Success(result, func(w io.Writer) {
		if result.Valid {
			fmt.Fprintf(w, "✓ %d blueprint(s) valid\n", result.Files)
			return
		}
		for _, e := range result.Errors {
			if e.Line > 0 {
				fmt.Fprintf(w, "%s:%d:%d: %s\n", e.File, e.Line, e.Column, e.Message)
			} else {
				fmt.Fprintf(w, "%s: %s\n", e.File, e.Message)
			}
		}
	}); err != nil {
		return err
	}
	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d blueprint(s) invalid", len(result.Errors), result.Files))
	}
	return nil
}

func validateBlueprint(path string, env blueprint.Env) *ValidationError {
	bp, err := blueprint.LoadFile(path)
	if err == nil {
		_, err = blueprint.Compile(bp, env)
	}
	if err == nil {
		return nil
	}

	verr := &ValidationError{File: path, Message: err.Error()}
	var cerr *blueprint.CompileError
	if errors.As(err, &cerr) {
		verr.Field = cerr.Field
		verr.Message = cerr.Message
		if cerr.Pos.IsValid() {
			verr.Line = cerr.Pos.Line()
			verr.Column = cerr.Pos.Column()
		}
	}
	return verr
}
