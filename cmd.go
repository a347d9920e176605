package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "1.0.0" // set during build with -ldflags

var rootCmd = &cobra.Command{
	Use:   "calod",
	Short: "calod - an in-memory cache server with hybrid LRU/LFU/TTL eviction",
	Long: `calod is a RESP-compatible in-memory key/value cache server.

Features:
- RESP wire protocol (PING, ECHO, GET, SET, DELETE)
- Hybrid LRU + LFU + TTL-weighted eviction
- Optional snapshot persistence
- Optional Prometheus metrics`,
	Version: version,
	RunE:    runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	config, v, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fmt.Printf("calod server v%s\n", version)
	fmt.Printf("listening on %s:%d (capacity=%d, eviction=%s)\n",
		config.Host, config.Port, config.CacheCapacity, config.EvictionStrategy)
	fmt.Printf("log level: %s\n", config.LogLevel)
	if config.PersistenceEnabled {
		fmt.Printf("persistence: enabled (snapshot every %v, dir=%s)\n", config.SnapshotInterval, config.DataDir)
	}
	if config.MetricsEnabled {
		fmt.Printf("metrics: enabled on :%d\n", config.MetricsPort)
	}
	fmt.Println(strings.Repeat("=", 51))

	server := NewServer(config)
	WatchHotReload(v, config)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
	case <-sigChan:
		fmt.Println("shutting down calod server...")
		server.Stop()
		fmt.Println("calod server stopped")
	}

	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, _, err := LoadConfig()
		if err != nil {
			return err
		}
		fmt.Println("calod configuration:")
		fmt.Println(strings.Repeat("=", 31))
		fmt.Printf("Host: %s\n", config.Host)
		fmt.Printf("Port: %d\n", config.Port)
		fmt.Printf("Cache Capacity: %d\n", config.CacheCapacity)
		fmt.Printf("Default TTL: %v\n", config.DefaultTTL)
		fmt.Printf("Eviction Strategy: %s\n", config.EvictionStrategy)
		fmt.Printf("Persistence Enabled: %t\n", config.PersistenceEnabled)
		fmt.Printf("Data Directory: %s\n", config.DataDir)
		fmt.Printf("Snapshot Interval: %v\n", config.SnapshotInterval)
		fmt.Printf("Log Level: %s\n", config.LogLevel)
		fmt.Printf("Log File Path: %s\n", config.LogFilePath)
		fmt.Printf("Metrics Enabled: %t\n", config.MetricsEnabled)
		fmt.Printf("Metrics Port: %d\n", config.MetricsPort)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("calod v%s\n", version)
		fmt.Printf("built with %s\n", runtime.Version())
		fmt.Printf("os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

var (
	clientAddr    string
	clientTimeout time.Duration
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Start an interactive RESP client (REPL)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClientREPL(clientAddr, clientTimeout)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("host", "H", "127.0.0.1", "host to bind to")
	rootCmd.PersistentFlags().IntP("port", "p", 8857, "port to listen on")
	rootCmd.PersistentFlags().Int("cache-capacity", 1000, "maximum number of keys the store will hold")
	rootCmd.PersistentFlags().String("eviction-strategy", "hybrid", "eviction strategy (hybrid)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().Bool("persistence-enabled", false, "enable snapshot persistence to disk")
	rootCmd.PersistentFlags().Duration("snapshot-interval", 5*time.Minute, "interval between persistence snapshots")
	rootCmd.PersistentFlags().String("data-dir", "./data", "directory for persistence snapshots")
	rootCmd.PersistentFlags().Bool("metrics-enabled", false, "expose a Prometheus metrics endpoint")
	rootCmd.PersistentFlags().Int("metrics-port", 9857, "port for the metrics endpoint")

	_ = viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	_ = viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("cache_capacity", rootCmd.PersistentFlags().Lookup("cache-capacity"))
	_ = viper.BindPFlag("eviction_strategy", rootCmd.PersistentFlags().Lookup("eviction-strategy"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("persistence_enabled", rootCmd.PersistentFlags().Lookup("persistence-enabled"))
	_ = viper.BindPFlag("snapshot_interval", rootCmd.PersistentFlags().Lookup("snapshot-interval"))
	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("metrics_enabled", rootCmd.PersistentFlags().Lookup("metrics-enabled"))
	_ = viper.BindPFlag("metrics_port", rootCmd.PersistentFlags().Lookup("metrics-port"))

	clientCmd.Flags().StringVarP(&clientAddr, "addr", "a", "127.0.0.1:8857", "server address to connect to")
	clientCmd.Flags().DurationVarP(&clientTimeout, "timeout", "t", 10*time.Second, "per-command round-trip timeout")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(clientCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
}
