// Command sequencer reads process notifications from a Kinesis stream,
// puts them in protocol order and emits them to a sink.
package main

import (
	"context"
	"expvar"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	sequencer "github.com/alexgridx/notification-sequencer"
	"github.com/alexgridx/notification-sequencer/emitter"
	"github.com/alexgridx/notification-sequencer/emitter/mysql"
	"github.com/alexgridx/notification-sequencer/emitter/postgres"
	redisemitter "github.com/alexgridx/notification-sequencer/emitter/redis"
	"github.com/alexgridx/notification-sequencer/listener"
	"github.com/alexgridx/notification-sequencer/relay"
	"github.com/alexgridx/notification-sequencer/store/ddb"
	memory "github.com/alexgridx/notification-sequencer/store/memory"
	mysqlstore "github.com/alexgridx/notification-sequencer/store/mysql"
	pgstore "github.com/alexgridx/notification-sequencer/store/postgres"
	redisstore "github.com/alexgridx/notification-sequencer/store/redis"
)

var (
	applicationName  = flag.String("app", "sequencer", "Application name, used to namespace checkpoints and keys")
	kinesisStream    = flag.String("kinesis.stream", "", "Stream name")
	kinesisAWSRegion = flag.String("kinesis.region", "us-west-2", "AWS Region")
	kinesisEndpoint  = flag.String("kinesis.endpoint", "", "Kinesis endpoint, empty for the AWS default")
	checkpointKind   = flag.String("checkpoint", "memory", "Checkpoint store: memory, redis, ddb, postgres or mysql")
	checkpointTable  = flag.String("checkpoint.table", "checkpoints", "SQL table holding checkpoints")
	redisAddr        = flag.String("redis.addr", "", "Redis address, defaults to REDIS_URL or localhost")
	ddbTable         = flag.String("ddb.table", "", "DynamoDB checkpoint table")
	ddbEndpoint      = flag.String("ddb.endpoint", "", "DynamoDB endpoint, empty for the AWS default")
	emitterKind      = flag.String("emitter", "stdout", "Emitter: stdout, redis, postgres or mysql")
	postgresDSN      = flag.String("postgres.dsn", "", "Postgres connection string")
	mysqlDSN         = flag.String("mysql.dsn", "", "MySQL DSN")
	tableName        = flag.String("table", "notifications", "SQL table receiving emitted notifications")
	relayInterval    = flag.Duration("relay.interval", time.Second, "Time between two drains")
	relayEvict       = flag.Bool("relay.evict", false, "Evict processes once their final notification was emitted; redelivered notifications then start them over")
	metricsAddr      = flag.String("metrics.addr", ":8080", "Address serving /metrics and /debug/vars, empty to disable")
	verbose          = flag.Bool("v", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger); err != nil {
		logger.Error("sequencer error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	if *kinesisStream == "" {
		return errors.New("-kinesis.stream is required")
	}

	// use cancel func to signal shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var redisClient *goredis.Client
	if *checkpointKind == "redis" || *emitterKind == "redis" {
		redisClient = newRedisClient()
		defer redisClient.Close()
	}

	store, shutdown, err := newStore(redisClient, logger)
	if err != nil {
		return errors.Wrap(err, "checkpoint store")
	}
	defer func() {
		if err := shutdown(); err != nil {
			logger.Error("checkpoint shutdown", slog.String("error", err.Error()))
		}
	}()

	sink, closeSink, err := newEmitter(redisClient)
	if err != nil {
		return errors.Wrap(err, "emitter")
	}
	defer closeSink()

	seq := sequencer.New(
		sequencer.WithLogger(logger),
		sequencer.WithCounter(expvar.NewMap("sequencer")),
		sequencer.WithEvictHandler(func(id string, st sequencer.Status) {
			logger.Debug("evicted",
				slog.String("process_id", id),
				slog.Int("received", st.Received),
				slog.Int("emitted", st.Emitted),
			)
		}),
	)

	client, err := newKinesisClient(ctx)
	if err != nil {
		return err
	}

	l, err := listener.New(
		*kinesisStream,
		seq,
		listener.WithClient(client),
		listener.WithStore(store),
		listener.WithLogger(logger),
		listener.WithCounter(expvar.NewMap("listener")),
	)
	if err != nil {
		return errors.Wrap(err, "listener")
	}

	r := relay.New(seq, sink,
		relay.WithInterval(*relayInterval),
		relay.WithLogger(logger),
		relay.WithEvictOnFinish(*relayEvict),
	)

	if *metricsAddr != "" {
		go serveMetrics(logger)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// stop the relay once the stream is done
		defer cancel()
		return l.Scan(ctx)
	})
	g.Go(func() error {
		return r.Run(ctx)
	})
	return g.Wait()
}

// newKinesisClient uses static credentials against a local endpoint and the
// default AWS config chain otherwise.
func newKinesisClient(ctx context.Context) (*kinesis.Client, error) {
	if *kinesisEndpoint != "" {
		return kinesis.New(kinesis.Options{
			BaseEndpoint: kinesisEndpoint,
			Region:       *kinesisAWSRegion,
			Credentials:  credentials.NewStaticCredentialsProvider("user", "pass", "token"),
		}), nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(*kinesisAWSRegion))
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	return kinesis.NewFromConfig(cfg), nil
}

func newRedisClient() *goredis.Client {
	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_URL")
	}
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	return goredis.NewClient(&goredis.Options{Addr: addr})
}

func newStore(client *goredis.Client, logger *slog.Logger) (listener.Store, func() error, error) {
	noop := func() error { return nil }

	switch *checkpointKind {
	case "memory":
		return memory.New(), noop, nil
	case "redis":
		s, err := redisstore.New(*applicationName, redisstore.WithClient(client))
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case "ddb":
		if *ddbTable == "" {
			return nil, nil, errors.New("-ddb.table is required")
		}
		opts := []ddb.Option{ddb.WithLogger(logger)}
		if *ddbEndpoint != "" {
			opts = append(opts, ddb.WithDynamoClient(dynamodb.New(dynamodb.Options{
				BaseEndpoint: ddbEndpoint,
				Region:       *kinesisAWSRegion,
				Credentials:  credentials.NewStaticCredentialsProvider("user", "pass", "token"),
			})))
		}
		s, err := ddb.New(*applicationName, *ddbTable, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Shutdown, nil
	case "postgres":
		s, err := pgstore.Open(*applicationName, *checkpointTable, *postgresDSN, pgstore.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Shutdown, nil
	case "mysql":
		s, err := mysqlstore.Open(*applicationName, *checkpointTable, *mysqlDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown checkpoint store %q", *checkpointKind)
	}
}

func newEmitter(client *goredis.Client) (emitter.Emitter, func() error, error) {
	noop := func() error { return nil }

	switch *emitterKind {
	case "stdout":
		return emitter.NewWriter(os.Stdout), noop, nil
	case "redis":
		e, err := redisemitter.New(*applicationName, client)
		if err != nil {
			return nil, nil, err
		}
		return e, noop, nil
	case "postgres":
		e, err := postgres.Open(*postgresDSN, *tableName)
		if err != nil {
			return nil, nil, err
		}
		return e, e.Close, nil
	case "mysql":
		e, err := mysql.Open(*mysqlDSN, *tableName)
		if err != nil {
			return nil, nil, err
		}
		return e, e.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown emitter %q", *emitterKind)
	}
}

// serveMetrics exposes the prometheus collectors on /metrics and the expvar
// counters on /debug/vars.
func serveMetrics(logger *slog.Logger) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(sequencer.Collectors()...)
	reg.MustRegister(listener.Collectors()...)
	reg.MustRegister(relay.Collectors()...)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/debug/vars", expvar.Handler())

	logger.Info("serving metrics", slog.String("addr", *metricsAddr))
	if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
		logger.Error("metrics server", slog.String("error", err.Error()))
	}
}
