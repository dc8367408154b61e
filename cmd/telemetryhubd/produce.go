package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"telemetryhub/internal/priority"
	"telemetryhub/internal/producer"
	"telemetryhub/internal/sample"
	"telemetryhub/internal/task"
)

func buildProduceCmd(configFile, logLevel *string) *cobra.Command {
	var taskType string
	var payload string
	var prioName string
	var maxRetries int
	var fingerprint string
	var sampleValue float64
	var sampleUnit string
	var sampleSeq uint32

	cmd := &cobra.Command{
		Use:   "produce",
		Short: "Submit a single task onto the configured queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(*logLevel)
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			client := newBrokerClient(cfg)
			defer client.Close()

			guard := newDedupGuard(client, cfg)
			prod := producer.New(client, cfg.Queue.Name, queueMode(cfg), guard)

			taskPayload := task.Payload(payload)
			if cmd.Flags().Changed("sample-value") {
				sp, err := task.NewSamplePayload(sample.New(time.Now(), sampleValue, sampleUnit, sampleSeq))
				if err != nil {
					return fmt.Errorf("encode sample payload: %w", err)
				}
				taskPayload = sp
			}

			sub := producer.Submission{
				Type:        taskType,
				Payload:     taskPayload,
				Priority:    priority.Parse(prioName),
				MaxRetries:  maxRetries,
				Fingerprint: fingerprint,
			}

			t, err := prod.Submit(context.Background(), sub)
			if err != nil {
				fmt.Printf("duplicate: task %s not enqueued (%v)\n", t.ID(), err)
				return nil
			}
			fmt.Printf("submitted task %s type=%s priority=%s\n", t.ID(), t.Type(), t.Priority())
			return nil
		},
	}

	cmd.Flags().StringVar(&taskType, "type", "", "task type (required)")
	cmd.Flags().StringVar(&payload, "payload", "{}", "JSON payload")
	cmd.Flags().StringVar(&prioName, "priority", "MEDIUM", "HIGH, MEDIUM, or LOW")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "max retries (0 = task.DefaultMaxRetries)")
	cmd.Flags().StringVar(&fingerprint, "fingerprint", "", "dedup fingerprint (empty skips dedup)")
	cmd.Flags().Float64Var(&sampleValue, "sample-value", 0, "if set, payload becomes an encoded TelemetrySample with this value")
	cmd.Flags().StringVar(&sampleUnit, "sample-unit", "", "TelemetrySample unit (default \"unitless\")")
	cmd.Flags().Uint32Var(&sampleSeq, "sample-seq", 0, "TelemetrySample sequence_id")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}
