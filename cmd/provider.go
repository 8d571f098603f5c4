package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/logger"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Inspect and manage the job providers",
}

var providerTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Probe each configured provider for availability",
	Run: func(_ *cobra.Command, _ []string) {
		providerTest()
	},
}

var providerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report provider health from the running service",
	Run: func(_ *cobra.Command, _ []string) {
		providerStatus()
	},
}

var providerResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the scraping provider's blocked state on the running service",
	Run: func(_ *cobra.Command, _ []string) {
		providerReset()
	},
}

func init() {
	rootCmd.AddCommand(providerCmd)
	providerCmd.AddCommand(providerTestCmd)
	providerCmd.AddCommand(providerStatusCmd)
	providerCmd.AddCommand(providerResetCmd)
}

// providerTest builds providers locally from the config and probes them.
// Useful for verifying credentials before starting the service.
func providerTest() {
	ctx := context.Background()
	logger, config := providerSetup()

	providers, _, err := buildProviders(config, logger)
	if err != nil {
		logger.Fatal("building providers", zap.Error(err))
	}

	for _, p := range providers {
		result := p.Test(ctx)
		logger.Info("provider probe",
			zap.String("provider", p.Name()),
			zap.Bool("available", result.Available),
			zap.String("message", result.Message),
		)
	}
}

// providerStatus asks the running service; breaker state lives in its
// process, not ours.
func providerStatus() {
	logger, config := providerSetup()

	body, err := callService(config, http.MethodGet, "/providers")
	if err != nil {
		logger.Fatal("querying the service", zap.Error(err))
	}

	fmt.Println(body)
}

// providerReset clears the sticky blocked flag on the running service. It
// asks for confirmation because resetting while the account is still flagged
// burns the credential faster.
func providerReset() {
	logger, config := providerSetup()

	prompt := promptui.Select{
		Label: "Reset the scraping provider's blocked state?",
		Items: []string{PromptYes, PromptNo},
	}

	_, answer, err := prompt.Run()
	if err != nil {
		logger.Fatal("prompt failed", zap.Error(err))
	}

	if answer != PromptYes {
		logger.Info("reset aborted")
		return
	}

	body, err := callService(config, http.MethodPost, "/providers/reset")
	if err != nil {
		logger.Fatal("resetting via the service", zap.Error(err))
	}

	logger.Info("scraping provider reset", zap.String("response", strings.TrimSpace(body)))
}

func callService(config *Config, method, path string) (string, error) {
	addr := config.ListenAddr
	if addr == "" {
		addr = defaultListenAddr
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}

	req, err := http.NewRequest(method, "http://"+addr+path, nil)
	if err != nil {
		return "", err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("is the service running on %s? %w", addr, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return string(body), nil
}

func providerSetup() (*zap.Logger, *Config) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		logger.Fatal("config is required")
	}

	return logger, config
}
