package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func buildInspectCmd(configFile, logLevel *string) *cobra.Command {
	var taskID string
	var dlq bool
	var dlqLimit int64

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Read-only broker inspection: queue depth, dedup set size, one task's record, or the dead-letter queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(*logLevel)
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			client := newBrokerClient(cfg)
			defer client.Close()
			ctx := context.Background()

			if taskID != "" {
				body, ok := client.Get(ctx, "task:"+taskID)
				if !ok {
					fmt.Printf("task %s not found\n", taskID)
					return nil
				}
				fmt.Println(body)
				return nil
			}

			if dlq {
				entries := client.LRange(ctx, "dlq:"+cfg.Queue.Name, 0, dlqLimit-1)
				if len(entries) == 0 {
					fmt.Println("dead-letter queue is empty")
					return nil
				}
				for _, body := range entries {
					fmt.Println(body)
				}
				return nil
			}

			fmt.Printf("queue=%s list_depth=%d priority_depth=%d dedup_set_size=%d dlq_depth=%d\n",
				cfg.Queue.Name,
				client.LLen(ctx, "queue:"+cfg.Queue.Name),
				client.ZCard(ctx, "priq:"+cfg.Queue.Name),
				client.SCard(ctx, "dedup:"+cfg.Queue.Name),
				client.LLen(ctx, "dlq:"+cfg.Queue.Name))
			return nil
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "inspect one task by id instead of the queue")
	cmd.Flags().BoolVar(&dlq, "dlq", false, "peek at the queue's dead-letter entries instead of its stats")
	cmd.Flags().Int64Var(&dlqLimit, "dlq-limit", 20, "max dead-letter entries to print with --dlq")
	return cmd
}
