package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/driveput/driveput/internal/auth"
	"github.com/driveput/driveput/internal/config"
	"github.com/driveput/driveput/internal/drive"
	"github.com/driveput/driveput/internal/tokenfile"
)

var (
	flagClientFile     string
	flagServiceKeyFile string
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with Google Drive",
		Long:  "Authenticate interactively with an OAuth client descriptor, or non-interactively\nwith a service-account key. The resulting token is saved for later runs.",
		RunE:  runLogin,
	}

	addCredentialFlags(cmd)

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved credential",
		RunE:  runLogout,
	}
}

// addCredentialFlags registers the credential descriptor flags shared by
// login and put.
func addCredentialFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagClientFile, "client-file", "", "path to an OAuth client JSON descriptor")
	cmd.Flags().StringVar(&flagServiceKeyFile, "service-account-file", "", "path to a service-account key JSON file")
}

// credentialOptions assembles auth options from the descriptor flags,
// reading the descriptor files up front so a bad path fails before any flow
// starts.
func credentialOptions(logger *slog.Logger) (auth.Options, error) {
	opts := auth.Options{
		TokenPath: config.TokenPath(),
		OpenURL:   openBrowser,
	}

	if flagClientFile != "" {
		data, err := os.ReadFile(flagClientFile)
		if err != nil {
			return opts, fmt.Errorf("reading client descriptor: %w", err)
		}

		opts.ClientJSON = string(data)
	}

	if flagServiceKeyFile != "" {
		data, err := os.ReadFile(flagServiceKeyFile)
		if err != nil {
			return opts, fmt.Errorf("reading service-account key: %w", err)
		}

		opts.ServiceKeyJSON = string(data)
	}

	if logger != nil {
		logger.Debug("credential options assembled",
			"client_file", flagClientFile, "service_key_file", flagServiceKeyFile)
	}

	return opts, nil
}

// openBrowser launches url in the platform default browser.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

func runLogin(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := context.Background()

	opts, err := credentialOptions(logger)
	if err != nil {
		return err
	}

	opts.Logger = logger

	source, err := auth.Credentials(ctx, opts)
	if err != nil {
		return err
	}

	// Verify the credential actually works and show whose it is.
	client := drive.NewClient("", "", defaultHTTPClient(), auth.Bearer{Source: source}, logger)

	about, err := client.GetAbout(ctx)
	if err != nil {
		return fmt.Errorf("verifying credential: %w", err)
	}

	statusf("Logged in as %s (%s), %s of %s used.\n",
		about.DisplayName, about.EmailAddress,
		humanize.Bytes(uint64(about.QuotaUsed)), humanize.Bytes(uint64(about.QuotaLimit)))
	logger.Info("login successful", "email", about.EmailAddress)

	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	logger := buildLogger()

	if err := tokenfile.Clear(config.TokenPath()); err != nil {
		return fmt.Errorf("removing credential: %w", err)
	}

	logger.Info("logout successful")
	statusf("Logged out.\n")

	return nil
}
