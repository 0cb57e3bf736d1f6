package common

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application startup banner
func PrintBanner(config *Config, logger arbor.ILogger) {
	version := GetVersion()
	build := GetBuild()

	// Service URL
	serviceURL := fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)

	// Create banner with custom styling
	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorGreen).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(80)

	// Visual banner still prints to stdout for startup aesthetics
	fmt.Printf("\n")
	b.PrintTopLine()
	b.PrintCenteredText("INGESTOR")
	b.PrintCenteredText("Documentation Ingestion Engine")
	b.PrintSeparatorLine()
	b.PrintKeyValue("Version", version, 15)
	b.PrintKeyValue("Build", build, 15)
	b.PrintKeyValue("Environment", config.Environment, 15)
	b.PrintKeyValue("Remote Proxy", serviceURL, 15)
	b.PrintBottomLine()
	fmt.Printf("\n")

	// Log structured startup information through Arbor
	logger.Info().
		Str("version", version).
		Str("build", build).
		Str("environment", config.Environment).
		Str("remote_proxy_url", serviceURL).
		Str("config_file", "ingestor.toml").
		Msg("Application started")

	// Print configuration details to console
	fmt.Printf("📋 Configuration:\n")
	fmt.Printf("   • Config File: ingestor.toml\n")
	fmt.Printf("   • Badger Store: %s\n", config.Storage.Badger.Path)
	if config.RemoteProxy.Enabled {
		fmt.Printf("   • Remote Proxy: %s\n", serviceURL)
	}

	// Show log file path if available
	logFilePath := ""
	// Try to get log file path if logger implements GetLogFilePath
	if loggerWithPath, ok := interface{}(logger).(interface{ GetLogFilePath() string }); ok {
		logFilePath = loggerWithPath.GetLogFilePath()
		if logFilePath != "" {
			fmt.Printf("   • Log File: %s\n", logFilePath)
		}
	}
	fmt.Printf("\n")

	// Log configuration through Arbor
	logger.Info().
		Str("log_file", logFilePath).
		Str("badger_path", config.Storage.Badger.Path).
		Int("job_concurrency", config.JobManager.Concurrency).
		Bool("remote_proxy_enabled", config.RemoteProxy.Enabled).
		Bool("recovery_enabled", config.Recovery.Enabled).
		Msg("Configuration loaded")

	// Print capabilities to console
	printCapabilities(config, logger)
	fmt.Printf("\n")
}

// printCapabilities displays the system capabilities
func printCapabilities(config *Config, logger arbor.ILogger) {
	fmt.Printf("🎯 Enabled Features:\n")

	fmt.Printf("   • Web, local-file, GitHub, npm and PyPI source strategies\n")
	fmt.Printf("   • Embedded Badger key-value store (%s)\n", config.Storage.Badger.Path)
	if config.GitHub.Token != "" {
		fmt.Printf("   • GitHub API token configured (higher rate limits)\n")
	}
	if config.Recovery.Enabled {
		fmt.Printf("   • Crash-recovery sweep: RUNNING jobs reset to QUEUED at startup\n")
	}
	if config.RemoteProxy.Enabled {
		fmt.Printf("   • Remote proxy relay enabled\n")
	}

	// Log capabilities through Arbor
	logger.Info().
		Bool("github_token_configured", config.GitHub.Token != "").
		Bool("recovery_enabled", config.Recovery.Enabled).
		Bool("remote_proxy_enabled", config.RemoteProxy.Enabled).
		Msg("System capabilities")
}

// PrintShutdownBanner displays the application shutdown banner
func PrintShutdownBanner(logger arbor.ILogger) {
	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorGreen).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(42)

	// Visual banner to stdout
	b.PrintTopLine()
	b.PrintCenteredText("SHUTTING DOWN")
	b.PrintCenteredText("INGESTOR")
	b.PrintBottomLine()
	fmt.Println()

	// Log shutdown through Arbor
	logger.Info().Msg("Application shutting down")
}

// PrintColorizedMessage prints a message with specified color; it does not log
// (the Print* helpers below log the message themselves)
func PrintColorizedMessage(color, message string, logger arbor.ILogger) {
	fmt.Printf("%s%s%s\n", color, message, banner.ColorReset)
}

// PrintSuccess prints a success message in green and logs it
func PrintSuccess(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorGreen, fmt.Sprintf("✓ %s", message), logger)
	logger.Info().Str("type", "success").Msg(message)
}

// PrintError prints an error message in red and logs it
func PrintError(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorRed, fmt.Sprintf("✗ %s", message), logger)
	logger.Error().Str("type", "error").Msg(message)
}

// PrintWarning prints a warning message in yellow and logs it
func PrintWarning(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorYellow, fmt.Sprintf("⚠ %s", message), logger)
	logger.Warn().Str("type", "warning").Msg(message)
}

// PrintInfo prints an info message in cyan and logs it
func PrintInfo(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorCyan, fmt.Sprintf("ℹ %s", message), logger)
	logger.Info().Str("type", "info").Msg(message)
}
