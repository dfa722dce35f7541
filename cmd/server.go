package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tracker/config"
	"tracker/db/pg"
	"tracker/db/rdb"
	"tracker/mq/gcppubsub"
	"tracker/mq/goch"
	"tracker/mq/mq"
	"tracker/mq/rabbit"
	"tracker/web"
)

func serverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the snapshot server",
		Long:  `This command starts the remote snapshot server that clients sync with.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			isDev, _ := cmd.Flags().GetBool("dev")
			port, _ := cmd.Flags().GetString("port")
			storeMode, _ := cmd.Flags().GetString("store")
			mqMode, _ := cmd.Flags().GetString("mq")
			rateLimit, _ := cmd.Flags().GetFloat64("rate")
			rateBurst, _ := cmd.Flags().GetInt("burst")
			if !cmd.Flags().Changed("port") {
				port = cfg.ServerPort
			}
			if !cmd.Flags().Changed("store") {
				storeMode = cfg.StoreMode
			}
			if !cmd.Flags().Changed("mq") {
				mqMode = cfg.MQMode
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stores, closeStores, err := newStoreProvider(storeMode)
			if err != nil {
				return err
			}
			defer closeStores()

			queue, err := newMessageQueue(ctx, mq.Mode(mqMode))
			if err != nil {
				return err
			}
			defer func() {
				if err := queue.Close(); err != nil {
					log.Printf("Error closing message queue: %v", err)
				}
			}()

			log.Printf("Serving snapshots on :%s (store=%s, mq=%s)", port, storeMode, mqMode)
			return web.Serve(ctx, web.ServiceConfig{
				IsDev:     isDev,
				Port:      port,
				Stores:    stores,
				Queue:     queue,
				RateLimit: rateLimit,
				RateBurst: rateBurst,
			})
		},
	}

	cmd.Flags().Bool("dev", true, "Run in development mode")
	cmd.Flags().String("port", "8080", "Port to run the web server on")
	cmd.Flags().String("store", config.StoreMemory, "Snapshot store (memory, postgres, sqlite, redis)")
	cmd.Flags().String("mq", string(mq.ModeGoChan), "Message queue mode (go_chan, rabbitmq, gcp_pub_sub)")
	cmd.Flags().Float64("rate", 20, "Requests per second per client, 0 disables limiting")
	cmd.Flags().Int("burst", 40, "Burst size for the rate limiter")

	return cmd
}

func newStoreProvider(mode string) (web.StoreProvider, func(), error) {
	switch mode {
	case config.StoreMemory:
		return web.NewMemoryStoreProvider(), func() {}, nil
	case config.StorePostgres:
		db, err := pg.InitPostgresGORM(pg.CreateDSN())
		if err != nil {
			return nil, nil, err
		}
		return web.NewGORMStoreProvider(db), func() { pg.CloseGORM(db) }, nil
	case config.StoreSQLite:
		db, err := pg.InitSQLiteGORM(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return web.NewGORMStoreProvider(db), func() { pg.CloseGORM(db) }, nil
	case config.StoreRedis:
		client, err := rdb.NewClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return web.NewRedisStoreProvider(client), func() { _ = client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store mode %q", mode)
}

func newMessageQueue(ctx context.Context, mode mq.Mode) (mq.SnapshotMessageQueue, error) {
	switch mode {
	case mq.ModeGoChan:
		return goch.NewChannelSnapshotMessageQueue(100), nil
	case mq.ModeRabbitMQ:
		addr := cfg.RabbitMQURL
		if addr == "" {
			addr = rabbit.CreateAmqpURL()
		}
		conn, err := rabbit.NewRabbitConnection(addr)
		if err != nil {
			return nil, err
		}
		return rabbit.NewRabbitSnapshotMessageQueue(conn)
	case mq.ModeGCPPubSub:
		projectID := cfg.GCPProjectID
		if projectID == "" {
			projectID = gcppubsub.GetGCPProjectID()
		}
		if projectID == "" {
			return nil, fmt.Errorf("gcp_pub_sub mode needs gcp.project_id or GCP_PROJECT_ID")
		}
		return gcppubsub.NewGCPSnapshotMessageQueue(ctx, projectID)
	}
	return nil, fmt.Errorf("unknown message queue mode %q", mode)
}
