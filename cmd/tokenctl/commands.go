package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/redmonkez12/taskhub-api/internal/config"
	"github.com/redmonkez12/taskhub-api/internal/tokens"
)

// serviceLoader builds the token service from the environment.
type serviceLoader func() (*tokens.Service, error)

func loadService() (*tokens.Service, error) {
	cfg, err := config.LoadTokens()
	if err != nil {
		return nil, err
	}
	return tokens.New(cfg.Keys, tokens.WithRetiredKeys(cfg.RetiredKeys...))
}

func newRootCmd(out io.Writer, load serviceLoader) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "tokenctl",
		Short:        "Manage verification and password reset tokens",
		Long:         "Operator tool for the token keys in TOKEN_SIGNING_KEY, TOKEN_ENCRYPTION_KEY and TOKEN_RETIRED_KEYS.",
		SilenceUsage: true,
	}
	rootCmd.SetOut(out)

	rootCmd.AddCommand(newKeygenCmd(), newIssueCmd(load), newInspectCmd(load))
	return rootCmd
}

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a fresh signing and encryption key pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := tokens.GenerateKeys()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "TOKEN_SIGNING_KEY=%s\n", hex.EncodeToString(keys.SigningKey))
			fmt.Fprintf(cmd.OutOrStdout(), "TOKEN_ENCRYPTION_KEY=%s\n", hex.EncodeToString(keys.EncryptionKey))
			return nil
		},
	}
}

func newIssueCmd(load serviceLoader) *cobra.Command {
	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a token",
	}

	verificationCmd := &cobra.Command{
		Use:   "verification",
		Short: "Issue an email verification token (valid 24h)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := load()
			if err != nil {
				return err
			}
			subject, _ := cmd.Flags().GetString("subject")
			email, _ := cmd.Flags().GetString("email")

			token, err := svc.IssueVerificationToken(subject, email)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Issue a password reset token and its one-time code (valid 5m)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := load()
			if err != nil {
				return err
			}
			subject, _ := cmd.Flags().GetString("subject")
			email, _ := cmd.Flags().GetString("email")

			token, code, err := svc.IssueResetToken(subject, email)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token: %s\ncode:  %s\n", token, code)
			return nil
		},
	}

	for _, c := range []*cobra.Command{verificationCmd, resetCmd} {
		c.Flags().String("subject", "", "Account id")
		c.Flags().String("email", "", "Account email")
		_ = c.MarkFlagRequired("subject")
		_ = c.MarkFlagRequired("email")
	}

	issueCmd.AddCommand(verificationCmd, resetCmd)
	return issueCmd
}

type inspectOutput struct {
	Valid       bool      `json:"valid"`
	Reason      string    `json:"reason,omitempty"`
	SubjectID   string    `json:"subject_id,omitempty"`
	Email       string    `json:"email,omitempty"`
	OneTimeCode string    `json:"one_time_code,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitzero"`
}

func newInspectCmd(load serviceLoader) *cobra.Command {
	inspectCmd := &cobra.Command{
		Use:   "inspect TOKEN",
		Short: "Verify a token and print its payload or the reason it failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kindFlag, _ := cmd.Flags().GetString("kind")
			code, _ := cmd.Flags().GetString("code")

			var kind tokens.Kind
			switch kindFlag {
			case "verification":
				kind = tokens.KindVerification
			case "reset":
				kind = tokens.KindReset
			default:
				return fmt.Errorf("unknown kind %q, want verification or reset", kindFlag)
			}

			svc, err := load()
			if err != nil {
				return err
			}

			var res inspectOutput
			p, err := svc.Inspect(kind, args[0], code)
			if err != nil {
				res.Reason = err.Error()
			} else {
				res = inspectOutput{
					Valid:       true,
					SubjectID:   p.SubjectID,
					Email:       p.Email,
					OneTimeCode: p.OneTimeCode,
					ExpiresAt:   p.ExpiresAt.UTC(),
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	inspectCmd.Flags().String("kind", "verification", "Token kind (verification, reset)")
	inspectCmd.Flags().String("code", "", "One-time code for reset tokens")
	return inspectCmd
}
