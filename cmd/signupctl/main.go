package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/navarrastar/newsletter-signup/pkg/models"
	"github.com/navarrastar/newsletter-signup/pkg/signup"
)

var rootCmd = &cobra.Command{
	Use:   "signupctl",
	Short: "signupctl - Newsletter signup service tool",
	Long: `signupctl talks to a running newsletter signup service. Use it to send a
test signup through every provider and inspect the per-provider results.`,
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Send a signup to the subscribe endpoint",
	Long: `Send a signup to the subscribe endpoint and print the aggregated result.

Example:
  signupctl submit --name "Jane Doe" --email jane@example.com --company Acme
  signupctl submit --api-base https://signup.example.com --email jane@example.com --name Jane --company Acme --consent=false`,
	RunE: func(cmd *cobra.Command, args []string) error {
		apiBase, _ := cmd.Flags().GetString("api-base")
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		company, _ := cmd.Flags().GetString("company")
		phone, _ := cmd.Flags().GetString("phone")
		consent, _ := cmd.Flags().GetBool("consent")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		consentJSON, _ := json.Marshal(consent)
		payload := models.SubmissionPayload{
			Name:        name,
			Email:       email,
			CompanyName: company,
			PhoneNumber: phone,
			Consent:     consentJSON,
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		s := spinner.New(spinner.CharSets[14], 120*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " Submitting signup..."
		s.Start()
		result, err := signup.NewClient(apiBase).Submit(ctx, payload)
		s.Stop()
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))

		if !result.OK {
			return fmt.Errorf("one or more providers failed")
		}
		return nil
	},
}

func init() {
	submitCmd.Flags().String("api-base", "http://localhost:8080", "Base URL of the signup service")
	submitCmd.Flags().String("name", "", "Full name")
	submitCmd.Flags().String("email", "", "Email address")
	submitCmd.Flags().String("company", "", "Company name")
	submitCmd.Flags().String("phone", "", "Phone number (optional)")
	submitCmd.Flags().Bool("consent", true, "Whether the subscriber consented")
	submitCmd.Flags().Duration("timeout", 30*time.Second, "Overall request timeout")

	rootCmd.AddCommand(submitCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
