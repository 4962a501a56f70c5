package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flagcore/go-server-sdk/pkg/client"
	"github.com/flagcore/go-server-sdk/pkg/logger"
	"github.com/flagcore/go-server-sdk/pkg/model"
)

var (
	configFile      string
	flagIdentifiers []string
	targetID        string
	targetName      string
	targetAttrs     []string
	watch           bool
	refreshInterval time.Duration
	eventsURL       string
	environment     string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate one or more flags for a target",
	Long: `Loads flags and segments from a JSON configuration file and prints the
variation each named flag serves for the constructed target. With --watch the
file is monitored and flags are re-evaluated on every change until SIGINT.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logger.New(viper.GetBool("debug"))
		if err != nil {
			return err
		}

		opts := []client.Option{
			client.WithLogger(log),
			client.WithFileSource(configFile, refreshInterval),
		}
		if eventsURL != "" {
			opts = append(opts,
				client.WithEventsURL(eventsURL),
				client.WithEnvironment(environment),
			)
		} else {
			opts = append(opts, client.WithMetricsDisabled())
		}

		sdk, err := client.New(opts...)
		if err != nil {
			return err
		}
		defer sdk.Close()

		target := &model.Target{
			Identifier: targetID,
			Name:       targetName,
			Attributes: parseAttributes(targetAttrs),
		}

		evaluateAll(sdk, target)

		if watch {
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			ticker := time.NewTicker(refreshInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					evaluateAll(sdk, target)
				case sig := <-sigs:
					log.Infof("received %s, shutting down", sig)
					return nil
				}
			}
		}
		return nil
	},
}

func evaluateAll(sdk *client.Client, target *model.Target) {
	for _, identifier := range flagIdentifiers {
		fc, err := sdk.Store().GetFlag(identifier)
		if err != nil {
			fmt.Printf("%s: flag not found\n", identifier)
			continue
		}
		switch fc.Kind {
		case model.KindBoolean:
			fmt.Printf("%s: %t\n", identifier, sdk.BoolVariation(identifier, target, false))
		case model.KindNumber:
			fmt.Printf("%s: %g\n", identifier, sdk.NumberVariation(identifier, target, 0))
		case model.KindJSON:
			fmt.Printf("%s: %v\n", identifier, sdk.JSONVariation(identifier, target, nil))
		default:
			fmt.Printf("%s: %s\n", identifier, sdk.StringVariation(identifier, target, ""))
		}
	}
}

// parseAttributes turns key=value pairs into a target attribute map.
func parseAttributes(pairs []string) map[string]interface{} {
	attrs := map[string]interface{}{}
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			continue
		}
		attrs[key] = value
	}
	return attrs
}

func init() {
	evaluateCmd.Flags().StringVarP(&configFile, "config", "f", "", "Path to the flag configuration file")
	evaluateCmd.Flags().StringSliceVarP(&flagIdentifiers, "flag", "k", nil, "Flag identifier to evaluate (repeatable)")
	evaluateCmd.Flags().StringVarP(&targetID, "target", "t", "anonymous", "Target identifier")
	evaluateCmd.Flags().StringVar(&targetName, "target-name", "", "Target display name")
	evaluateCmd.Flags().StringSliceVarP(&targetAttrs, "attr", "a", nil, "Target attribute as key=value (repeatable)")
	evaluateCmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep running and re-evaluate periodically")
	evaluateCmd.Flags().DurationVar(&refreshInterval, "interval", 10*time.Second, "Refresh and re-evaluation interval")
	evaluateCmd.Flags().StringVar(&eventsURL, "events-url", "", "Base URL to post usage metrics to")
	evaluateCmd.Flags().StringVar(&environment, "environment", "default", "Environment identifier for metrics")
	_ = evaluateCmd.MarkFlagRequired("config")
	_ = evaluateCmd.MarkFlagRequired("flag")
	rootCmd.AddCommand(evaluateCmd)
}
