package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"debt_sustainability/pkg/core/projection"
	"debt_sustainability/pkg/core/utils"
	"debt_sustainability/pkg/core/validate"
	"debt_sustainability/pkg/models"
)

// Payload is the -data argument. check reads Series; project reads Prior
// and Drivers.
type Payload struct {
	Series    models.Series      `json:"series,omitempty"`
	Prior     models.FiscalState `json:"prior"`
	Drivers   projection.Drivers `json:"drivers"`
	Tolerance float64            `json:"tolerance,omitempty"`
}

func main() {
	mode := flag.String("mode", "check", "Mode: check or project")
	dataStr := flag.String("data", "", "JSON data payload")
	flag.Parse()

	if *dataStr == "" {
		fmt.Println("Error: No data provided")
		os.Exit(1)
	}
	if err := run(*mode, *dataStr, os.Stdout); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(mode, data string, w io.Writer) error {
	var p Payload
	if _, err := utils.SmartParse(data, &p); err != nil {
		return fmt.Errorf("unmarshaling data: %w", err)
	}
	if p.Tolerance == 0 {
		p.Tolerance = validate.DefaultTolerance
	}

	switch mode {
	case "check":
		return runChecks(p, w)
	case "project":
		return runProjection(p, w)
	default:
		return fmt.Errorf("unknown mode: %s", mode)
	}
}

// runChecks verifies the borrowing and accumulation identities year by year.
func runChecks(p Payload, w io.Writer) error {
	s := p.Series.Sorted()
	if len(s) < 2 {
		return models.NewFiscalError(models.ErrMissingPredecessor, 0, "series", "need at least two years")
	}
	if err := s.Validate(); err != nil {
		return err
	}
	report := validate.CheckPath(s[0], s[1:], p.Tolerance)
	for _, c := range report.Checks {
		status := "OK"
		if !c.IsBalanced {
			status = "IMBALANCE"
		}
		fmt.Fprintf(w, "%d %-40s %s (diff %.2f)\n", c.Year, c.Identity, status, c.Difference)
	}
	if report.OK() {
		fmt.Fprintln(w, "Success: all identities hold")
		return nil
	}
	return report.Err()
}

// runProjection advances Prior by one year and prints the state as JSON.
func runProjection(p Payload, w io.Writer) error {
	if p.Drivers.Year == 0 {
		p.Drivers.Year = p.Prior.Year + 1
	}
	next, err := projection.ProjectDrivers(p.Prior, p.Drivers)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(models.RowOf(next))
}
