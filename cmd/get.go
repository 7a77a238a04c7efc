package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"smart/pkg/smart"
)

// Get-specific flags
var (
	getPatient       string
	getLaunchPatient bool
)

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [path]",
		Short: "Read a FHIR resource",
		Long: `Read a FHIR resource from the selected server using the stored
authorization. The path is relative to the server's base URL.

Examples:
  smart get metadata                  # Read the CapabilityStatement
  smart get Observation?patient=123   # Search observations
  smart get --patient 123             # Read Patient/123
  smart get --launch-patient          # Read the patient from the launch context`,
		Args: cobra.MaximumNArgs(1),
		RunE: runGet,
	}
	cmd.Flags().StringVar(&getPatient, "patient", "", "read the Patient resource with this ID")
	cmd.Flags().BoolVar(&getLaunchPatient, "launch-patient", false, "read the Patient from the launch context")
	cmd.MarkFlagsMutuallyExclusive("patient", "launch-patient")
	return cmd
}

func runGet(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && getPatient == "" && !getLaunchPatient {
		return fmt.Errorf("a path, --patient or --launch-patient is required")
	}
	if len(args) > 0 && (getPatient != "" || getLaunchPatient) {
		return fmt.Errorf("a path cannot be combined with --patient or --launch-patient")
	}

	cfg, sc, err := loadServerConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), DefaultRequestTimeout)
	defer cancel()

	server, err := connect(ctx, sc, store)
	if err != nil {
		return err
	}

	var body []byte
	switch {
	case getPatient != "":
		patient, err := server.ReadPatient(ctx, getPatient)
		if err != nil {
			return wrapReadError(server, err)
		}
		body, err = json.Marshal(patient)
		if err != nil {
			return err
		}
	case getLaunchPatient:
		patient, err := server.LaunchPatient(ctx)
		if err != nil {
			return wrapReadError(server, err)
		}
		body, err = json.Marshal(patient)
		if err != nil {
			return err
		}
	default:
		body, err = server.Read(ctx, args[0])
		if err != nil {
			return wrapReadError(server, err)
		}
	}

	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		out.Reset()
		out.Write(body)
	}
	out.WriteByte('\n')
	_, err = out.WriteTo(cmd.OutOrStdout())
	return err
}

func wrapReadError(server *smart.Server, err error) error {
	if smart.IsUnauthorized(err) {
		return fmt.Errorf("%w\nRun: smart login --server %s", err, server.Name())
	}
	return err
}
